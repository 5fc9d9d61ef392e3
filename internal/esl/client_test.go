package esl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shelfsync/internal/config"
	"shelfsync/internal/models"
	"shelfsync/internal/repository"
	"shelfsync/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *models.Store {
	return &models.Store{ID: 1, Name: "Store", ExternalCode: "S001", Timezone: "UTC", Active: true}
}

func testProduct() *models.Product {
	return &models.Product{ID: 1, Code: "SKU-1", Name: "Milk", Price: 1.29, Currency: "EUR", Unit: "l"}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.CatalogConfig{BaseURL: srv.URL, TimeoutSeconds: 5}
	return NewClient(cfg, nil, nil), srv
}

func TestApplyCreate(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody articlePayload

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.Apply(context.Background(), models.OpCreate, testProduct(), testStore())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/stores/S001/articles", gotPath)
	assert.Equal(t, "SKU-1", gotBody.Code)
	assert.Equal(t, 1.29, gotBody.Price)
}

func TestApplyUpdateAndDeletePaths(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.Apply(context.Background(), models.OpUpdate, testProduct(), testStore()))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/v1/stores/S001/articles/SKU-1", gotPath)

	require.NoError(t, client.Apply(context.Background(), models.OpDelete, testProduct(), testStore()))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/v1/stores/S001/articles/SKU-1", gotPath)
}

func TestApplyUnknownOperation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	err := client.Apply(context.Background(), "rename", testProduct(), testStore())
	assert.Error(t, err)
}

func TestErrorStatusBecomesStatusError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unknown article"}`))
	}))

	err := client.Apply(context.Background(), models.OpUpdate, testProduct(), testStore())
	require.Error(t, err)

	var statusErr *worker.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.Code)
	assert.Contains(t, statusErr.Body, "unknown article")
}

func TestBulkSetPrice(t *testing.T) {
	var gotPath string
	var gotBody bulkPricePayload

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))

	prices := []models.PriceUpdate{{Code: "SKU-1", Price: 0.99}, {Code: "SKU-2", Price: 2.49}}
	err := client.BulkSetPrice(context.Background(), testStore(), prices)
	require.NoError(t, err)
	assert.Equal(t, "/v1/stores/S001/prices", gotPath)
	require.Len(t, gotBody.Prices, 2)
	assert.Equal(t, 0.99, gotBody.Prices[0].Price)
}

func TestLocalRateLimitSurfacesAs429(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := config.CatalogConfig{BaseURL: srv.URL, TimeoutSeconds: 5, RateLimitPerMinute: 1}
	client := NewClient(cfg, repository.NewMemoryLimiterRepository(), nil)

	require.NoError(t, client.Apply(context.Background(), models.OpUpdate, testProduct(), testStore()))

	err := client.Apply(context.Background(), models.OpUpdate, testProduct(), testStore())
	require.Error(t, err)

	var statusErr *worker.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	// The second request never reached the server.
	assert.Equal(t, 1, calls)
	// And the classification sends it back for a retry.
	assert.Equal(t, worker.KindTransient, worker.Classify(err))
}

func TestRequestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	cfg := config.CatalogConfig{BaseURL: srv.URL, TimeoutSeconds: 5}
	client := NewClient(cfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.Apply(ctx, models.OpUpdate, testProduct(), testStore())
	require.Error(t, err)
	assert.Equal(t, worker.KindTransient, worker.Classify(err))
}
