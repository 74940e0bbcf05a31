package models

import "time"

// Score is a musical score in the archive.
type Score struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Alias          string    `json:"alias,omitempty"`
	SubTitles      string    `json:"subTitles,omitempty"`
	Annotation     string    `json:"annotation,omitempty"`
	Publisher      string    `json:"publisher,omitempty"`
	ConductorScore bool      `json:"conductorScore"`
	GenreIDs       []int64   `json:"genreIds,omitempty"`
	ComposerIDs    []int64   `json:"composerIds,omitempty"`
	ArrangerIDs    []int64   `json:"arrangerIds,omitempty"`
	BookID         *int64    `json:"bookId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Author of scores; may appear as composer, arranger, or both.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Genre classifies scores.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Book is a bound collection of scores.
type Book struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Annotation string `json:"annotation,omitempty"`
}
