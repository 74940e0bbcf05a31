package models

import "time"

// AuditEntry records one API request. Credentials and token bodies are never
// stored here; Username is the authenticated subject, if any.
type AuditEntry struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	Username       string    `json:"username,omitempty"`
	Operation      string    `json:"operation"`
	Path           string    `json:"path"`
	ResponseCode   int       `json:"response_code"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	ClientIP       string    `json:"client_ip"`
	Timestamp      time.Time `json:"timestamp"`
}
