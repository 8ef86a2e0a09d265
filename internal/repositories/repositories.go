package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/spotsearch/internal/shared"
)

// Open opens the configured sqlite database, applies migrations and returns a [TokenStoreRepository] on it.
//
// The caller owns the returned [*sql.DB].
func Open(ctx context.Context, config shared.DatabaseConfig) (*TokenStoreRepository, *sql.DB, error) {
	db, err := shared.OpenDatabase(config)
	if err != nil {
		return nil, nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database not reachable: %w", err)
	}

	return NewTokenStoreRepository(db), db, nil
}
