package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/barrel/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when trying to create a resource that already exists.
var ErrAlreadyExists = errors.New("already exists")

// Backend defines the persistence interface for the score archive and the
// audit trail. Members and registers live in the directory, not here.
type Backend interface {
	// Scores
	ListScores(ctx context.Context) ([]*models.Score, error)
	GetScore(ctx context.Context, id int64) (*models.Score, error)
	CreateScore(ctx context.Context, score *models.Score) error
	UpdateScore(ctx context.Context, score *models.Score) error
	DeleteScore(ctx context.Context, id int64) error

	// Authors
	ListAuthors(ctx context.Context) ([]*models.Author, error)
	CreateAuthor(ctx context.Context, author *models.Author) error
	DeleteAuthor(ctx context.Context, id int64) error

	// Genres
	ListGenres(ctx context.Context) ([]*models.Genre, error)
	CreateGenre(ctx context.Context, genre *models.Genre) error
	DeleteGenre(ctx context.Context, id int64) error

	// Books
	ListBooks(ctx context.Context) ([]*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, id int64) error

	// Audit
	WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error)

	// Lifecycle
	Close()
}

// AuditFilter specifies query parameters for audit log retrieval.
type AuditFilter struct {
	Username string
	Path     string
	Since    *time.Time
	Limit    int
	Offset   int
}
