package database

import (
	"context"
	"fmt"
	"time"

	"shelfsync/internal/models"
)

// UpsertStore inserts or refreshes a catalog target definition. Store
// ids come from the stores config file, not autoincrement.
func (db *DB) UpsertStore(ctx context.Context, s *models.Store) error {
	now := time.Now()
	query := `INSERT INTO stores (id, name, external_code, timezone, active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  external_code = excluded.external_code,
                  timezone = excluded.timezone,
                  active = excluded.active,
                  updated_at = excluded.updated_at`
	if _, err := db.db.ExecContext(ctx, query, s.ID, s.Name, s.ExternalCode, s.Timezone, s.Active, now, now); err != nil {
		return fmt.Errorf("failed to upsert store: %w", err)
	}
	return nil
}

func (db *DB) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	query := `SELECT id, name, external_code, timezone, active, created_at, updated_at FROM stores WHERE id = ?`
	var s models.Store
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.ExternalCode, &s.Timezone, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get store %d: %w", id, err)
	}
	return &s, nil
}

func (db *DB) GetActiveStores(ctx context.Context) ([]models.Store, error) {
	query := `SELECT id, name, external_code, timezone, active, created_at, updated_at FROM stores WHERE active = 1 ORDER BY id`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active stores: %w", err)
	}
	defer rows.Close()

	var stores []models.Store
	for rows.Next() {
		var s models.Store
		if err := rows.Scan(&s.ID, &s.Name, &s.ExternalCode, &s.Timezone, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}
