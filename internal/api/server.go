package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/barrel/internal/auth"
	"github.com/org/barrel/internal/authz"
	"github.com/org/barrel/internal/storage"
	"github.com/org/barrel/pkg/models"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	TLSCertFile string
	TLSKeyFile  string
	LoginPath   string
	Realm       string
}

// Directory is the interface the server needs from the LDAP client.
type Directory interface {
	Authenticate(ctx context.Context, username, password string) (*auth.Principal, error)
	ChangePasswordChecked(ctx context.Context, username, oldPassword, newPassword string) (bool, error)
	ChangePasswordUnchecked(ctx context.Context, username, newPassword string) error
	MemberByUsername(ctx context.Context, username string) (*models.Member, error)
	Registers(ctx context.Context) ([]*models.Register, error)
}

// AuditLogger is the interface the server needs from an audit logger.
type AuditLogger interface {
	LogRequest(ctx context.Context, entry *models.AuditEntry)
	Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error)
}

// Server is the API server.
type Server struct {
	store   storage.Backend
	dir     Directory
	tokens  *auth.TokenService
	roles   authz.RoleMap
	auditor AuditLogger
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a fully wired Server.
func NewServer(store storage.Backend, dir Directory, tokens *auth.TokenService, roles authz.RoleMap, auditor AuditLogger, cfg Config) *Server {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/selfservice/login"
	}
	if cfg.Realm == "" {
		cfg.Realm = "Barrel"
	}
	return &Server{
		store:   store,
		dir:     dir,
		tokens:  tokens,
		roles:   roles,
		auditor: auditor,
		cfg:     cfg,
	}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(newRateLimiter(100, 200).middleware)
	r.Use(auditMiddleware(s.auditor))

	// Prometheus metrics (unauthenticated)
	r.Handle("/metrics", MetricsHandler())

	// Public routes, not subject to bearer handling
	r.Group(func(r chi.Router) {
		r.Get("/healthz", s.HealthHandler)
		r.Get(s.cfg.LoginPath, s.LoginHandler)
		r.Post(s.cfg.LoginPath, s.LoginHandler)
	})

	// Everything else passes the bearer middleware. Requests without a
	// token arrive anonymously; each handler enforces its own requirement.
	r.Group(func(r chi.Router) {
		r.Use(bearerMiddleware(s.tokens))

		// Self service
		r.Get("/selfservice/info", s.InfoHandler)
		r.Get("/selfservice/renew", s.RenewHandler)
		r.Post("/selfservice/password", s.PasswordHandler)
		r.Post("/selfservice/password/{username}", s.PasswordForHandler)

		// Directory
		r.Get("/api/groupedmembers", s.GroupedMembersHandler)

		// Archive
		r.Get("/api/scores", s.ScoreListHandler)
		r.Get("/api/scores/{id}", s.ScoreGetHandler)
		r.Post("/api/scores", s.ScoreCreateHandler)
		r.Put("/api/scores/{id}", s.ScoreUpdateHandler)
		r.Delete("/api/scores/{id}", s.ScoreDeleteHandler)

		r.Get("/api/authors", s.AuthorListHandler)
		r.Post("/api/authors", s.AuthorCreateHandler)
		r.Delete("/api/authors/{id}", s.AuthorDeleteHandler)

		r.Get("/api/genres", s.GenreListHandler)
		r.Post("/api/genres", s.GenreCreateHandler)
		r.Delete("/api/genres/{id}", s.GenreDeleteHandler)

		r.Get("/api/books", s.BookListHandler)
		r.Post("/api/books", s.BookCreateHandler)
		r.Delete("/api/books/{id}", s.BookDeleteHandler)

		// Audit trail
		r.Get("/api/audit-log", s.AuditLogHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		s.httpSrv.TLSConfig = tlsCfg
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
