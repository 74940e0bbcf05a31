package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/org/barrel/internal/auth"
	"github.com/org/barrel/pkg/models"
	"github.com/rs/zerolog/log"
)

// requestIDMiddleware attaches a UUID request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := newRequestID()
		w.Header().Set("X-Request-ID", id)
		ctx := withRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	return newUUID()
}

// bearerMiddleware inspects the Authorization header. Requests without one
// pass through anonymously; the handlers decide whether anonymous access is
// acceptable. A header that is present but does not verify as a token halts
// the request with 400. A valid renewal token also passes through
// anonymously, since its only power is the renew endpoint, which re-parses
// the header itself. Login routes are registered outside this middleware.
func bearerMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokens.HasBearer(r) {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := tokens.BearerFromRequest(r)
			if !ok {
				tokenVerificationsTotal.WithLabelValues("invalid").Inc()
				writeError(w, http.StatusBadRequest, "authorization header is not a bearer token")
				return
			}
			tok, err := tokens.Verify(r.Context(), raw)
			if err != nil {
				tokenVerificationsTotal.WithLabelValues("invalid").Inc()
				log.Debug().Err(err).Msg("bearer token rejected")
				writeError(w, http.StatusBadRequest, "invalid token")
				return
			}
			switch t := tok.(type) {
			case *auth.RenewalToken:
				tokenVerificationsTotal.WithLabelValues("renewal").Inc()
				log.Info().Str("subject", t.Principal.Name).Msg("renewal token presented, continuing anonymously")
				next.ServeHTTP(w, r)
			case *auth.AccessToken:
				tokenVerificationsTotal.WithLabelValues("access").Inc()
				ctx := withPrincipal(r.Context(), t.Principal)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// auditMiddleware records every request + response code to the audit log.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

func auditMiddleware(auditor AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			// the principal is attached further down the chain on a derived
			// context; the holder carries it back out to this layer
			ctx, holder := withPrincipalHolder(r.Context())
			r = r.WithContext(ctx)
			next.ServeHTTP(rr, r)

			username := ""
			if holder.p != nil {
				username = holder.p.Name
			}

			entry := &models.AuditEntry{
				RequestID:      requestIDFromCtx(r.Context()),
				Username:       username,
				Operation:      r.Method,
				Path:           r.URL.Path,
				ResponseCode:   rr.statusCode,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				ClientIP:       r.RemoteAddr,
			}
			auditor.LogRequest(r.Context(), entry)
		})
	}
}

// rateLimiter is a simple per-IP token bucket rate limiter.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int // requests per second
	burst   int
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

func newRateLimiter(rps, burst int) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rps,
		burst:   burst,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastCheck: time.Now()}
		rl.buckets[ip] = b
	}
	now := time.Now()
	elapsed := now.Sub(b.lastCheck).Seconds()
	b.tokens += elapsed * float64(rl.rate)
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastCheck = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			log.Warn().Str("ip", ip).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// helpers

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"errors":[%q]}`, msg)
}

func newUUID() string {
	return newUUIDImpl()
}
