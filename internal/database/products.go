package database

import (
	"context"
	"fmt"
	"time"

	"shelfsync/internal/models"
)

// UpsertProduct inserts or refreshes a product row keyed by code.
func (db *DB) UpsertProduct(ctx context.Context, p *models.Product) error {
	now := time.Now()
	query := `INSERT INTO products (code, name, price, currency, unit, barcode, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(code) DO UPDATE SET
                  name = excluded.name,
                  price = excluded.price,
                  currency = excluded.currency,
                  unit = excluded.unit,
                  barcode = excluded.barcode,
                  updated_at = excluded.updated_at`
	if _, err := db.db.ExecContext(ctx, query, p.Code, p.Name, p.Price, p.Currency, p.Unit, p.Barcode, now, now); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	stored, err := db.GetProductByCode(ctx, p.Code)
	if err != nil {
		return err
	}
	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (db *DB) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT id, code, name, price, currency, COALESCE(unit, ''), COALESCE(barcode, ''), created_at, updated_at
              FROM products WHERE id = ?`
	var p models.Product
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Code, &p.Name, &p.Price, &p.Currency, &p.Unit, &p.Barcode, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

func (db *DB) GetProductByCode(ctx context.Context, code string) (*models.Product, error) {
	query := `SELECT id, code, name, price, currency, COALESCE(unit, ''), COALESCE(barcode, ''), created_at, updated_at
              FROM products WHERE code = ?`
	var p models.Product
	err := db.db.QueryRowContext(ctx, query, code).Scan(
		&p.ID, &p.Code, &p.Name, &p.Price, &p.Currency, &p.Unit, &p.Barcode, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", code, err)
	}
	return &p, nil
}
