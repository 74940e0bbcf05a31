package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/org/barrel/internal/authz"
	"github.com/org/barrel/internal/directory"
	"github.com/rs/zerolog/log"
)

// LoginHandler handles GET/POST on the configured login path. Credentials
// arrive via HTTP Basic auth. On success the response carries a fresh access
// token in the Authorization header and a renewal token as the body.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.cfg.Realm))
		writeError(w, http.StatusUnauthorized, "credentials required")
		return
	}
	username, password, ok := r.BasicAuth()
	if !ok {
		writeError(w, http.StatusUnauthorized, "malformed credentials")
		return
	}

	principal, err := s.dir.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, directory.ErrBadCredentials) {
			loginsTotal.WithLabelValues("denied").Inc()
			log.Info().Str("username", username).Msg("login denied")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		loginsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("username", username).Msg("login failed against directory")
		writeError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}

	access, err := s.tokens.IssueAccess(principal)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "issuing token")
		return
	}
	renewal, err := s.tokens.IssueRenewal(principal)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "issuing token")
		return
	}

	loginsTotal.WithLabelValues("success").Inc()
	log.Info().Str("username", principal.Name).Msg("login succeeded")
	// login runs outside the bearer middleware, so the audit layer learns
	// the acting user from the holder instead of the principal context key
	fillPrincipalHolder(r.Context(), principal)
	w.Header().Set("Authorization", s.tokens.Prefix()+" "+access)
	w.Header().Set("Content-Type", "application/jwt")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, renewal) //nolint:errcheck
}

// RenewHandler handles GET /selfservice/renew. The bearer middleware lets
// renewal tokens through anonymously, so the header is parsed again here
// with the renewal class required.
func (s *Server) RenewHandler(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.tokens.BearerFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "renewal token required")
		return
	}
	renewal, err := s.tokens.VerifyRenewal(r.Context(), raw)
	if err != nil {
		log.Debug().Err(err).Msg("renewal rejected")
		writeError(w, http.StatusBadRequest, "invalid renewal token")
		return
	}

	access, err := s.tokens.IssueAccess(renewal.Principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issuing token")
		return
	}
	log.Info().Str("username", renewal.Principal.Name).Msg("access token renewed")
	w.Header().Set("Authorization", s.tokens.Prefix()+" "+access)
	w.WriteHeader(http.StatusOK)
}

// InfoHandler handles GET /selfservice/info
func (s *Server) InfoHandler(w http.ResponseWriter, r *http.Request) {
	principal := principalFromCtx(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":    principal.Name,
		"authorities": principal.Authorities,
	})
}

// PasswordHandler handles POST /selfservice/password. The caller changes
// their own password; the directory checks the old one.
func (s *Server) PasswordHandler(w http.ResponseWriter, r *http.Request) {
	principal := principalFromCtx(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "new password must not be empty")
		return
	}

	changed, err := s.dir.ChangePasswordChecked(r.Context(), principal.Name, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, directory.ErrUnknownUser) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		writeError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}
	if !changed {
		writeError(w, http.StatusUnauthorized, "old password rejected")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PasswordForHandler handles POST /selfservice/password/{username}, the
// administrative reset. The target user's old password is not checked.
func (s *Server) PasswordForHandler(w http.ResponseWriter, r *http.Request) {
	principal := principalFromCtx(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !authz.Allowed(principal, s.roles.MemberManager) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	username := chi.URLParam(r, "username")
	if username == principal.Name {
		// self resets go through the checked endpoint
		writeError(w, http.StatusForbidden, "use the self-service password change")
		return
	}
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "new password must not be empty")
		return
	}

	if err := s.dir.ChangePasswordUnchecked(r.Context(), username, req.NewPassword); err != nil {
		if errors.Is(err, directory.ErrUnknownUser) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		writeError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}
	log.Info().Str("by", principal.Name).Str("username", username).Msg("password reset")
	w.WriteHeader(http.StatusNoContent)
}
