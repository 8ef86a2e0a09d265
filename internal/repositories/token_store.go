package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TokenStoreRepository persists token store entries in the token_store table.
//
// It satisfies the session store interface and is the default backend: the sqlite file is shared by every
// process using the same database path, and rows survive restarts.
type TokenStoreRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenStoreRepository creates a new [TokenStoreRepository] with the given database connection.
func NewTokenStoreRepository(db *sql.DB) *TokenStoreRepository {
	return &TokenStoreRepository{db: db, now: time.Now}
}

// Get returns the value stored under key.
func (r *TokenStoreRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM token_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value stored under key.
func (r *TokenStoreRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO token_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, value, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *TokenStoreRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM token_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in order.
func (r *TokenStoreRepository) Keys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM token_store ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}
	return keys, nil
}

// UpdatedAt returns when key was last written.
func (r *TokenStoreRepository) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM token_store WHERE key = ?`, key).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return updatedAt, nil
}
