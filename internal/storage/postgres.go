package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/barrel/pkg/models"
)

// PostgresBackend is a Backend backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

// --- Scores ---

func (p *PostgresBackend) ListScores(ctx context.Context) ([]*models.Score, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, alias, sub_titles, annotation, publisher, conductor_score,
		        book_id, created_at, updated_at
		 FROM scores ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*models.Score
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range scores {
		if err := p.loadScoreLinks(ctx, s); err != nil {
			return nil, err
		}
	}
	return scores, nil
}

func (p *PostgresBackend) GetScore(ctx context.Context, id int64) (*models.Score, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, title, alias, sub_titles, annotation, publisher, conductor_score,
		        book_id, created_at, updated_at
		 FROM scores WHERE id = $1`, id)
	s, err := scanScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := p.loadScoreLinks(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*models.Score, error) {
	s := &models.Score{}
	err := row.Scan(&s.ID, &s.Title, &s.Alias, &s.SubTitles, &s.Annotation, &s.Publisher,
		&s.ConductorScore, &s.BookID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresBackend) loadScoreLinks(ctx context.Context, s *models.Score) error {
	var err error
	if s.GenreIDs, err = p.linkedIDs(ctx, `SELECT genre_id FROM score_genres WHERE score_id = $1 ORDER BY genre_id`, s.ID); err != nil {
		return err
	}
	if s.ComposerIDs, err = p.linkedIDs(ctx, `SELECT author_id FROM score_composers WHERE score_id = $1 ORDER BY author_id`, s.ID); err != nil {
		return err
	}
	if s.ArrangerIDs, err = p.linkedIDs(ctx, `SELECT author_id FROM score_arrangers WHERE score_id = $1 ORDER BY author_id`, s.ID); err != nil {
		return err
	}
	return nil
}

func (p *PostgresBackend) linkedIDs(ctx context.Context, query string, scoreID int64) ([]int64, error) {
	rows, err := p.pool.Query(ctx, query, scoreID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PostgresBackend) CreateScore(ctx context.Context, score *models.Score) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	score.CreatedAt = now
	score.UpdatedAt = now
	err = tx.QueryRow(ctx,
		`INSERT INTO scores (title, alias, sub_titles, annotation, publisher, conductor_score, book_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		score.Title, score.Alias, score.SubTitles, score.Annotation, score.Publisher,
		score.ConductorScore, score.BookID, score.CreatedAt, score.UpdatedAt,
	).Scan(&score.ID)
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	if err := writeScoreLinks(ctx, tx, score); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresBackend) UpdateScore(ctx context.Context, score *models.Score) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	score.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE scores SET title = $2, alias = $3, sub_titles = $4, annotation = $5,
		        publisher = $6, conductor_score = $7, book_id = $8, updated_at = $9
		 WHERE id = $1`,
		score.ID, score.Title, score.Alias, score.SubTitles, score.Annotation,
		score.Publisher, score.ConductorScore, score.BookID, score.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"score_genres", "score_composers", "score_arrangers"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE score_id = $1`, score.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := writeScoreLinks(ctx, tx, score); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func writeScoreLinks(ctx context.Context, tx pgx.Tx, score *models.Score) error {
	for _, id := range score.GenreIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO score_genres (score_id, genre_id) VALUES ($1, $2)`, score.ID, id); err != nil {
			return fmt.Errorf("linking genre %d: %w", id, err)
		}
	}
	for _, id := range score.ComposerIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO score_composers (score_id, author_id) VALUES ($1, $2)`, score.ID, id); err != nil {
			return fmt.Errorf("linking composer %d: %w", id, err)
		}
	}
	for _, id := range score.ArrangerIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO score_arrangers (score_id, author_id) VALUES ($1, $2)`, score.ID, id); err != nil {
			return fmt.Errorf("linking arranger %d: %w", id, err)
		}
	}
	return nil
}

func (p *PostgresBackend) DeleteScore(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM scores WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Authors ---

func (p *PostgresBackend) ListAuthors(ctx context.Context) ([]*models.Author, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM authors ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var authors []*models.Author
	for rows.Next() {
		a := &models.Author{}
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

func (p *PostgresBackend) CreateAuthor(ctx context.Context, author *models.Author) error {
	return p.pool.QueryRow(ctx,
		`INSERT INTO authors (name) VALUES ($1) RETURNING id`, author.Name,
	).Scan(&author.ID)
}

func (p *PostgresBackend) DeleteAuthor(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Genres ---

func (p *PostgresBackend) ListGenres(ctx context.Context) ([]*models.Genre, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM genres ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var genres []*models.Genre
	for rows.Next() {
		g := &models.Genre{}
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

func (p *PostgresBackend) CreateGenre(ctx context.Context, genre *models.Genre) error {
	return p.pool.QueryRow(ctx,
		`INSERT INTO genres (name) VALUES ($1) RETURNING id`, genre.Name,
	).Scan(&genre.ID)
}

func (p *PostgresBackend) DeleteGenre(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM genres WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Books ---

func (p *PostgresBackend) ListBooks(ctx context.Context) ([]*models.Book, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, annotation FROM books ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []*models.Book
	for rows.Next() {
		b := &models.Book{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Annotation); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (p *PostgresBackend) CreateBook(ctx context.Context, book *models.Book) error {
	return p.pool.QueryRow(ctx,
		`INSERT INTO books (name, annotation) VALUES ($1, $2) RETURNING id`,
		book.Name, book.Annotation,
	).Scan(&book.ID)
}

func (p *PostgresBackend) DeleteBook(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Audit ---

func (p *PostgresBackend) WriteAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO audit_log (request_id, username, operation, path, response_code, response_time_ms, client_ip, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.RequestID, entry.Username, entry.Operation, entry.Path,
		entry.ResponseCode, entry.ResponseTimeMs, entry.ClientIP, entry.Timestamp)
	return err
}

func (p *PostgresBackend) QueryAuditLog(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	query := `SELECT id, request_id, username, operation, path, response_code, response_time_ms, client_ip, ts
	          FROM audit_log WHERE 1=1`
	args := []any{}
	n := 0
	if filter.Username != "" {
		n++
		query += fmt.Sprintf(" AND username = $%d", n)
		args = append(args, filter.Username)
	}
	if filter.Path != "" {
		n++
		query += fmt.Sprintf(" AND path = $%d", n)
		args = append(args, filter.Path)
	}
	if filter.Since != nil {
		n++
		query += fmt.Sprintf(" AND ts >= $%d", n)
		args = append(args, *filter.Since)
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Username, &e.Operation, &e.Path,
			&e.ResponseCode, &e.ResponseTimeMs, &e.ClientIP, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
