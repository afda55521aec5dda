package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/diario/internal/domain"
)

//go:embed schema.sql
var schema string

const entryColumns = "id, owner_id, content, audio, image, created_at"

// Store handles database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureUser creates the user if missing and refreshes its name and email
// when non-empty values are given.
func (s *Store) EnsureUser(ctx context.Context, id, displayName, email string) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE users.display_name END,
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE users.email END
	`, id, displayName, email, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, email, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// AddEntry creates a new entry for owner and returns it
func (s *Store) AddEntry(ctx context.Context, owner string, n domain.NewEntry) (*domain.Entry, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO entries ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		id, owner, n.Content, n.Audio, n.Image, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &domain.Entry{
		ID:        id,
		OwnerID:   owner,
		Content:   n.Content,
		Audio:     n.Audio,
		Image:     n.Image,
		CreatedAt: now,
	}, nil
}

// GetEntry retrieves an entry by ID
func (s *Store) GetEntry(ctx context.Context, owner, id string) (*domain.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ? AND owner_id = ?",
		id, owner,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get entry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the owner's entries, most recent first.
// A non-positive limit returns every entry.
func (s *Store) ListEntries(ctx context.Context, owner string, limit, offset int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		owner, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return collectEntries(rows)
}

// UpdateEntry replaces or appends to an entry's content
func (s *Store) UpdateEntry(ctx context.Context, owner, id, content string, mode domain.UpdateMode) (*domain.Entry, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("update entry: unknown mode %q", mode)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE id = ? AND owner_id = ?",
		id, owner,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update entry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	final := mode.Apply(entry.Content, content)
	if _, err := tx.ExecContext(ctx, "UPDATE entries SET content = ? WHERE id = ?", final, id); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	entry.Content = &final
	return entry, nil
}

// DeleteEntry removes an entry
func (s *Store) DeleteEntry(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SearchEntries performs a simple text search
func (s *Store) SearchEntries(ctx context.Context, owner, query string) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE owner_id = ? AND content LIKE ? ORDER BY created_at DESC, rowid DESC",
		owner, "%"+query+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	return collectEntries(rows)
}

// ResolveID finds the full ID of the owner's entry starting with prefix.
// The prefix is matched literally; more than one match is ErrAmbiguousID.
func (s *Store) ResolveID(ctx context.Context, owner, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("resolve entry: empty id")
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM entries WHERE owner_id = ? AND substr(id, 1, length(?)) = ? LIMIT 2",
		owner, prefix, prefix,
	)
	if err != nil {
		return "", fmt.Errorf("resolve entry: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan entry id: %w", err)
		}
		if id == prefix {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve entry: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("entry %s: %w", prefix, domain.ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("entry %s: %w", prefix, domain.ErrAmbiguousID)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.Entry, error) {
	var (
		e                     domain.Entry
		content, audio, image sql.NullString
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &content, &audio, &image, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Content = nullable(content)
	e.Audio = nullable(audio)
	e.Image = nullable(image)
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]domain.Entry, error) {
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
