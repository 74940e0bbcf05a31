package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/org/barrel/internal/authz"
	"github.com/org/barrel/internal/storage"
)

// AuditLogHandler handles GET /api/audit-log
func (s *Server) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	principal := principalFromCtx(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !authz.Allowed(principal, s.roles.MemberManager) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	q := r.URL.Query()
	filter := storage.AuditFilter{
		Username: q.Get("username"),
		Path:     q.Get("path"),
		Limit:    100,
	}

	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err == nil {
			filter.Since = &t
		}
	}

	entries, err := s.auditor.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
