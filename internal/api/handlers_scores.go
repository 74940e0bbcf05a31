package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/org/barrel/internal/authz"
	"github.com/org/barrel/internal/storage"
	"github.com/org/barrel/pkg/models"
)

// requireArchivist gates the archive mutations. Reports whether the caller
// carries the archive role; on false the error response is already written.
func (s *Server) requireArchivist(w http.ResponseWriter, r *http.Request) bool {
	principal := principalFromCtx(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if !authz.Allowed(principal, s.roles.Archive) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// requireUser reports whether the request carries any authenticated
// principal; on false the error response is already written.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) bool {
	if principalFromCtx(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// ScoreListHandler handles GET /api/scores
func (s *Server) ScoreListHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	scores, err := s.store.ListScores(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

// ScoreGetHandler handles GET /api/scores/{id}
func (s *Server) ScoreGetHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	score, err := s.store.GetScore(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "score not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// ScoreCreateHandler handles POST /api/scores
func (s *Server) ScoreCreateHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	var score models.Score
	if err := decodeJSON(r, &score); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if score.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.store.CreateScore(r.Context(), &score); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, score)
}

// ScoreUpdateHandler handles PUT /api/scores/{id}
func (s *Server) ScoreUpdateHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var score models.Score
	if err := decodeJSON(r, &score); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	score.ID = id
	if err := s.store.UpdateScore(r.Context(), &score); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "score not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// ScoreDeleteHandler handles DELETE /api/scores/{id}
func (s *Server) ScoreDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteScore(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "score not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthorListHandler handles GET /api/authors
func (s *Server) AuthorListHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	authors, err := s.store.ListAuthors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authors": authors})
}

// AuthorCreateHandler handles POST /api/authors
func (s *Server) AuthorCreateHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	var author models.Author
	if err := decodeJSON(r, &author); err != nil || author.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateAuthor(r.Context(), &author); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, author)
}

// AuthorDeleteHandler handles DELETE /api/authors/{id}
func (s *Server) AuthorDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteAuthor(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "author not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenreListHandler handles GET /api/genres
func (s *Server) GenreListHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	genres, err := s.store.ListGenres(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

// GenreCreateHandler handles POST /api/genres
func (s *Server) GenreCreateHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	var genre models.Genre
	if err := decodeJSON(r, &genre); err != nil || genre.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateGenre(r.Context(), &genre); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, genre)
}

// GenreDeleteHandler handles DELETE /api/genres/{id}
func (s *Server) GenreDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteGenre(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "genre not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BookListHandler handles GET /api/books
func (s *Server) BookListHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	books, err := s.store.ListBooks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

// BookCreateHandler handles POST /api/books
func (s *Server) BookCreateHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	var book models.Book
	if err := decodeJSON(r, &book); err != nil || book.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateBook(r.Context(), &book); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// BookDeleteHandler handles DELETE /api/books/{id}
func (s *Server) BookDeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireArchivist(w, r) {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteBook(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
