package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockscope/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ PortfolioStore = (*SQLiteStore)(nil)
var _ UserStore = (*SQLiteStore)(nil)

// migrations run in order on every open; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		nickname      TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		ticker     TEXT NOT NULL,
		frequency  TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (user_id, ticker)
	)`,
	`CREATE INDEX IF NOT EXISTS holdings_user ON holdings (user_id, ticker)`,
}

// filterColumns maps Query.Filters keys to holdings columns.
var filterColumns = map[string]string{
	"ticker":    "ticker",
	"frequency": "frequency",
}

// SQLiteStore implements PortfolioStore and UserStore backed by a SQLite
// database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// PortfolioStore implementation
// ---------------------------------------------------------------------------

// List returns one page of the user's holdings and the matching total.
func (s *SQLiteStore) List(ctx context.Context, userID string, q Query) ([]domain.Holding, int, error) {
	q = q.Normalize()

	where := []string{"user_id = ?"}
	args := []any{userID}
	if q.Search != "" {
		where = append(where, "ticker LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToUpper(q.Search))+"%")
	}
	for key, value := range q.Filters {
		col, ok := filterColumns[key]
		if !ok || value == "" {
			continue
		}
		if col == "ticker" {
			value = domain.NormalizeTicker(value)
		}
		where = append(where, col+" = ?")
		args = append(args, value)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM holdings WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting holdings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, ticker, frequency, created_at FROM holdings WHERE `+cond+
			` ORDER BY ticker LIMIT ? OFFSET ?`,
		append(args, q.Size, q.Page*q.Size)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0, q.Size)
	for rows.Next() {
		var (
			h       domain.Holding
			freq    string
			created int64
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.Ticker, &freq, &created); err != nil {
			return nil, 0, err
		}
		h.Frequency = domain.Frequency(freq)
		h.CreatedAt = time.UnixMilli(created).UTC()
		holdings = append(holdings, h)
	}
	return holdings, total, rows.Err()
}

// Add inserts a holding for h.UserID.
func (s *SQLiteStore) Add(ctx context.Context, h *domain.Holding) error {
	h.Ticker = domain.NormalizeTicker(h.Ticker)
	if h.Frequency == "" {
		h.Frequency = domain.DefaultFrequency
	}
	h.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO holdings (user_id, ticker, frequency, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, ticker) DO NOTHING`,
		h.UserID, h.Ticker, string(h.Frequency), h.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting holding %s: %w", h.Ticker, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("holding %s: %w", h.Ticker, ErrExists)
	}
	h.ID, err = res.LastInsertId()
	return err
}

// UpdateFrequency changes how often a holding is re-analysed.
func (s *SQLiteStore) UpdateFrequency(ctx context.Context, userID, ticker string, f domain.Frequency) error {
	ticker = domain.NormalizeTicker(ticker)
	res, err := s.db.ExecContext(ctx,
		`UPDATE holdings SET frequency = ? WHERE user_id = ? AND ticker = ?`,
		string(f), userID, ticker)
	if err != nil {
		return fmt.Errorf("updating holding %s: %w", ticker, err)
	}
	return affected(res, "holding "+ticker)
}

// Delete removes a holding.
func (s *SQLiteStore) Delete(ctx context.Context, userID, ticker string) error {
	ticker = domain.NormalizeTicker(ticker)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM holdings WHERE user_id = ? AND ticker = ?`, userID, ticker)
	if err != nil {
		return fmt.Errorf("deleting holding %s: %w", ticker, err)
	}
	return affected(res, "holding "+ticker)
}

// ---------------------------------------------------------------------------
// UserStore implementation
// ---------------------------------------------------------------------------

// CreateUser inserts a new account.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, nickname, password_hash, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		u.ID, u.Email, u.Nickname, u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", u.Email, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", u.Email, ErrExists)
	}
	return nil
}

// UserByEmail looks an account up by its (case-insensitive) email.
func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.userWhere(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// UserByToken looks an account up by its bearer token, which is its ID.
func (s *SQLiteStore) UserByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", ErrNotFound)
	}
	return s.userWhere(ctx, "id = ?", token)
}

func (s *SQLiteStore) userWhere(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var (
		u       domain.User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, nickname, password_hash, created_at FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return &u, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func affected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
