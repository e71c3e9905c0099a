package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for config entry persistence.
type Repository interface {
	// GetByID returns ErrNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// GetByUniqueID looks an entry up by its stable identity.
	// Returns ErrNotFound if no entry of domain carries uniqueID.
	GetByUniqueID(ctx context.Context, domain, uniqueID string) (*Entry, error)

	List(ctx context.Context) ([]Entry, error)
	ListByDomain(ctx context.Context, domain string) ([]Entry, error)

	// Create returns ErrExists on an ID or (domain, unique id) clash.
	Create(ctx context.Context, e *Entry) error

	// Update returns ErrNotFound if the entry does not exist.
	Update(ctx context.Context, e *Entry) error

	// Delete returns ErrNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the config_entries table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT id, domain, title, unique_id, source, data, state, created_at, updated_at
	FROM config_entries`

// GetByID retrieves an entry by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// GetByUniqueID retrieves an entry by domain and unique id.
func (r *SQLiteRepository) GetByUniqueID(ctx context.Context, domain, uniqueID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE domain = ? AND unique_id = ?`, domain, uniqueID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying entry by unique id: %w", err)
	}
	return e, nil
}

// List retrieves all entries ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	return r.query(ctx, selectColumns+` ORDER BY created_at, id`)
}

// ListByDomain retrieves all entries of one integration.
func (r *SQLiteRepository) ListByDomain(ctx context.Context, domain string) ([]Entry, error) {
	return r.query(ctx, selectColumns+` WHERE domain = ? ORDER BY created_at, id`, domain)
}

// Create inserts a new entry, stamping CreatedAt and UpdatedAt.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.State == "" {
		e.State = StateNotLoaded
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (id, domain, title, unique_id, source, data, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Domain, e.Title, nullableString(e.UniqueID), e.Source, string(data), string(e.State),
		e.CreatedAt.Format(time.RFC3339Nano), e.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of an entry.
func (r *SQLiteRepository) Update(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}
	e.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE config_entries
		SET title = ?, unique_id = ?, data = ?, state = ?, updated_at = ?
		WHERE id = ?`,
		e.Title, nullableString(e.UniqueID), string(data), string(e.State),
		e.UpdatedAt.Format(time.RFC3339Nano), e.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("updating entry: %w", err)
	}
	return requireAffected(result)
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM config_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return requireAffected(result)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                    Entry
		uniqueID             sql.NullString
		data, state          string
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.Domain, &e.Title, &uniqueID, &e.Source, &data, &state, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	e.UniqueID = uniqueID.String
	e.State = State(state)
	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling data of entry %s: %w", e.ID, err)
	}
	if e.Data == nil {
		e.Data = map[string]string{}
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// nullableString stores an empty unique id as NULL so the partial unique
// index only constrains entries that have one.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
