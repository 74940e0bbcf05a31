package audit

import (
	"context"
	"time"

	"github.com/org/barrel/internal/storage"
	"github.com/org/barrel/pkg/models"
)

// Logger writes structured audit entries.
type Logger struct {
	store storage.Backend
}

// NewLogger creates an audit Logger.
func NewLogger(store storage.Backend) *Logger {
	return &Logger{store: store}
}

// LogRequest records an API request to the audit log. Credentials and token
// values must never be passed here, only request metadata.
func (l *Logger) LogRequest(ctx context.Context, entry *models.AuditEntry) {
	entry.Timestamp = time.Now().UTC()
	// fire and forget; a failed audit write must not fail the request
	_ = l.store.WriteAuditEntry(ctx, entry)
}

// Query retrieves paginated audit log entries.
func (l *Logger) Query(ctx context.Context, filter storage.AuditFilter) ([]*models.AuditEntry, error) {
	return l.store.QueryAuditLog(ctx, filter)
}
