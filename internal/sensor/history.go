package sensor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ErrMissingAccessoryID is returned by history operations without an accessory ID.
var ErrMissingAccessoryID = errors.New("sensor: accessory id is required")

// HistoryEntry is one stored sensor state.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	AccessoryID string    `json:"accessory_id"`
	State       State     `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryRepository stores and retrieves published sensor states.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// Record stores a published state.
	Record(ctx context.Context, state State) error

	// History returns recent entries for an accessory, newest first.
	// limit defaults to 50 and is capped at 200.
	History(ctx context.Context, accessoryID string, limit int) ([]HistoryEntry, error)

	// Prune deletes entries older than olderThan and returns the count removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteHistoryRepository implements HistoryRepository using the
// reading_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a history repository over db.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Record inserts state stamped with its LastSeen time.
func (r *SQLiteHistoryRepository) Record(ctx context.Context, state State) error {
	if state.AccessoryID == "" {
		return ErrMissingAccessoryID
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	at := state.LastSeen
	if at.IsZero() {
		at = time.Now()
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO reading_history (accessory_id, state, created_at) VALUES (?, ?, ?)",
		state.AccessoryID,
		string(stateJSON),
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading history: %w", err)
	}
	return nil
}

// History returns recent entries for accessoryID, newest first.
func (r *SQLiteHistoryRepository) History(ctx context.Context, accessoryID string, limit int) ([]HistoryEntry, error) {
	if accessoryID == "" {
		return nil, ErrMissingAccessoryID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, accessory_id, state, created_at
		 FROM reading_history
		 WHERE accessory_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		accessoryID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying reading history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var stateJSON, createdAt string

		if err := rows.Scan(&entry.ID, &entry.AccessoryID, &stateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning reading history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reading history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than olderThan.
func (r *SQLiteHistoryRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, "DELETE FROM reading_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting reading history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
