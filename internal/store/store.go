// Package store defines storage interfaces for watchlist holdings and the
// users that own them, a SQLite implementation of both, and a Parquet
// exporter for rendered tables.
package store

import (
	"context"
	"errors"
	"strings"

	"stockscope/internal/domain"
)

var (
	// ErrExists is returned when an insert collides with an existing row.
	ErrExists = errors.New("store: already exists")
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("store: not found")
)

// DefaultPageSize is used when a Query does not name a size.
const DefaultPageSize = 10

// MaxPageSize caps Query.Size.
const MaxPageSize = 100

// Query selects one page of a user's holdings.
type Query struct {
	// Search matches tickers containing the text, case-insensitively.
	Search string
	// Filters are exact matches keyed by field name. Supported keys are
	// "ticker" and "frequency"; others are ignored.
	Filters map[string]string
	// Page is zero-based.
	Page int
	Size int
}

// Normalize clamps the paging fields into range.
func (q Query) Normalize() Query {
	if q.Page < 0 {
		q.Page = 0
	}
	switch {
	case q.Size <= 0:
		q.Size = DefaultPageSize
	case q.Size > MaxPageSize:
		q.Size = MaxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Pages returns the number of pages needed for total rows of the given size.
// An empty result still has one page.
func Pages(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// PortfolioStore persists watchlist holdings.
type PortfolioStore interface {
	// List returns one page of the user's holdings ordered by ticker, and the
	// number of holdings matching q across all pages.
	List(ctx context.Context, userID string, q Query) ([]domain.Holding, int, error)

	// Add inserts h and fills in its ID and CreatedAt. A second holding of
	// the same ticker for the same user fails with ErrExists.
	Add(ctx context.Context, h *domain.Holding) error

	// UpdateFrequency changes the frequency of one holding.
	UpdateFrequency(ctx context.Context, userID, ticker string, f domain.Frequency) error

	// Delete removes one holding.
	Delete(ctx context.Context, userID, ticker string) error
}

// UserStore persists accounts.
type UserStore interface {
	// CreateUser inserts u, assigning an ID when it has none. Emails are
	// unique; a duplicate fails with ErrExists.
	CreateUser(ctx context.Context, u *domain.User) error

	UserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UserByToken resolves a bearer token to its user.
	UserByToken(ctx context.Context, token string) (*domain.User, error)
}
