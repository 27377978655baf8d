package accessory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the persistence operations for accessory records.
type Repository interface {
	// List returns every stored record.
	List(ctx context.Context) ([]*Record, error)

	// Get returns the record with the given UUID or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Create stores new records atomically.
	// Returns ErrExists if any UUID is already stored.
	Create(ctx context.Context, records ...*Record) error

	// Update rewrites existing records atomically.
	// Returns ErrNotFound if any UUID is unknown.
	Update(ctx context.Context, records ...*Record) error
}

// SQLiteRepository implements Repository on the accessories table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT uuid, identity_key, address, model, display_name,
		battery_threshold, humidity_offset, last_seen, created_at, updated_at
	FROM accessories`

// List returns every stored record ordered by display name.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY display_name, uuid")
	if err != nil {
		return nil, fmt.Errorf("querying accessories: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accessories: %w", err)
	}
	return records, nil
}

// Get returns the record with the given UUID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectColumns+" WHERE uuid = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Create inserts records in a single transaction.
func (r *SQLiteRepository) Create(ctx context.Context, records ...*Record) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, rec := range records {
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			rec.UpdatedAt = now

			_, err := tx.ExecContext(ctx, `
				INSERT INTO accessories (
					uuid, identity_key, address, model, display_name,
					battery_threshold, humidity_offset, last_seen, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rec.UUID, rec.IdentityKey, rec.Address, rec.Model, rec.DisplayName,
				rec.BatteryThreshold, rec.HumidityOffset, nullableTime(rec.LastSeen),
				rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339),
			)
			if err != nil {
				if isUniqueConstraintError(err) {
					return fmt.Errorf("%w: %s", ErrExists, rec.UUID)
				}
				return fmt.Errorf("inserting accessory %s: %w", rec.UUID, err)
			}
		}
		return nil
	})
}

// Update rewrites the mutable columns of existing records in a single transaction.
func (r *SQLiteRepository) Update(ctx context.Context, records ...*Record) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, rec := range records {
			rec.UpdatedAt = now

			res, err := tx.ExecContext(ctx, `
				UPDATE accessories SET
					address = ?, model = ?, display_name = ?,
					battery_threshold = ?, humidity_offset = ?, last_seen = ?, updated_at = ?
				WHERE uuid = ?`,
				rec.Address, rec.Model, rec.DisplayName,
				rec.BatteryThreshold, rec.HumidityOffset, nullableTime(rec.LastSeen),
				rec.UpdatedAt.Format(time.RFC3339), rec.UUID,
			)
			if err != nil {
				return fmt.Errorf("updating accessory %s: %w", rec.UUID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("checking rows affected: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", ErrNotFound, rec.UUID)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                  Record
		lastSeen             sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&rec.UUID, &rec.IdentityKey, &rec.Address, &rec.Model, &rec.DisplayName,
		&rec.BatteryThreshold, &rec.HumidityOffset, &lastSeen, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning accessory row: %w", err)
	}

	if lastSeen.Valid {
		if t, err := time.Parse(time.RFC3339, lastSeen.String); err == nil {
			rec.LastSeen = &t
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is written by Create
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is written by Create/Update
	return &rec, nil
}

// nullableTime stores optional times as RFC3339 strings.
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// isUniqueConstraintError checks for a SQLite unique or primary key violation.
func isUniqueConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY")
}
