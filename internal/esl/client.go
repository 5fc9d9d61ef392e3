// Package esl talks to the electronic-shelf-label vendor API. It is the
// concrete CatalogTarget; everything upstream only sees the interface.
package esl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shelfsync/internal/config"
	"shelfsync/internal/domain"
	"shelfsync/internal/models"
	"shelfsync/internal/worker"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"
)

const limiterCaller = "esl"

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    domain.LimiterRepository
	rateLimit  int
	logger     zerolog.Logger
}

// NewClient builds the vendor client. When client credentials are
// configured every request carries an OAuth2 bearer token; otherwise
// plain HTTP is used (on-prem vendor installations).
func NewClient(cfg config.CatalogConfig, limiter domain.LimiterRepository, logger *zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		oauthCfg := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = oauthCfg.Client(context.Background())
		httpClient.Timeout = timeout
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "esl_client").Logger()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    limiter,
		rateLimit:  cfg.RateLimitPerMinute,
		logger:     log,
	}
}

type articlePayload struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Unit    string  `json:"unit,omitempty"`
	Barcode string  `json:"barcode,omitempty"`
}

type bulkPricePayload struct {
	Prices []models.PriceUpdate `json:"prices"`
}

// Apply mirrors one product operation onto a store's label system.
func (c *Client) Apply(ctx context.Context, operation string, product *models.Product, store *models.Store) error {
	base := fmt.Sprintf("%s/v1/stores/%s/articles", c.baseURL, url.PathEscape(store.ExternalCode))

	switch operation {
	case models.OpCreate:
		return c.do(ctx, store, http.MethodPost, base, articleBody(product))
	case models.OpUpdate:
		return c.do(ctx, store, http.MethodPut, base+"/"+url.PathEscape(product.Code), articleBody(product))
	case models.OpDelete:
		return c.do(ctx, store, http.MethodDelete, base+"/"+url.PathEscape(product.Code), nil)
	default:
		return fmt.Errorf("unknown operation: %s", operation)
	}
}

// BulkSetPrice pushes a batch of price changes to one store.
func (c *Client) BulkSetPrice(ctx context.Context, store *models.Store, prices []models.PriceUpdate) error {
	endpoint := fmt.Sprintf("%s/v1/stores/%s/prices", c.baseURL, url.PathEscape(store.ExternalCode))
	return c.do(ctx, store, http.MethodPost, endpoint, bulkPricePayload{Prices: prices})
}

func articleBody(p *models.Product) articlePayload {
	return articlePayload{Code: p.Code, Name: p.Name, Price: p.Price, Unit: p.Unit, Barcode: p.Barcode}
}

func (c *Client) do(ctx context.Context, store *models.Store, method, endpoint string, payload interface{}) error {
	if c.limiter != nil && c.rateLimit > 0 {
		allowed, err := c.limiter.Allow(ctx, store.ExternalCode, limiterCaller, c.rateLimit, time.Minute)
		if err != nil {
			c.logger.Warn().Err(err).Msg("limiter check failed, proceeding")
		} else if !allowed {
			// Surfaces as a transient failure so the queue backs off.
			return &worker.StatusError{Code: http.StatusTooManyRequests, Body: "local rate limit exceeded"}
		}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &worker.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
