package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shelfsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	return db
}

func seedStore(t *testing.T, db *DB, id int64, tz string) {
	t.Helper()
	err := db.UpsertStore(context.Background(), &models.Store{
		ID:           id,
		Name:         "Test Store",
		ExternalCode: "S001",
		Timezone:     tz,
		Active:       true,
	})
	require.NoError(t, err)
}

func seedProduct(t *testing.T, db *DB, code string) int64 {
	t.Helper()
	p := &models.Product{
		Code:     code,
		Name:     "Test Product " + code,
		Price:    9.99,
		Currency: "EUR",
		Unit:     "pcs",
	}
	err := db.UpsertProduct(context.Background(), p)
	require.NoError(t, err)

	stored, err := db.GetProductByCode(context.Background(), code)
	require.NoError(t, err)
	return stored.ID
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestProductUpsert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	id := seedProduct(t, db, "SKU-1")

	// Upserting the same code updates in place.
	err := db.UpsertProduct(ctx, &models.Product{Code: "SKU-1", Name: "Renamed", Price: 4.5, Currency: "EUR"})
	require.NoError(t, err)

	p, err := db.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, 4.5, p.Price)
}

func TestStoreUpsertAndActiveFilter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	seedStore(t, db, 1, "Europe/Berlin")

	err := db.UpsertStore(ctx, &models.Store{ID: 2, Name: "Closed", ExternalCode: "S002", Timezone: "UTC", Active: false})
	require.NoError(t, err)

	active, err := db.GetActiveStores(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)

	store, err := db.GetStore(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", store.Timezone)
}
