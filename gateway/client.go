// Package gateway is the HTTP client for the remote content and order
// service. Catalog reads are retried on transient network failures;
// the order submission is sent exactly once.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/funnelbot/core/logger"
	"github.com/m3rciful/funnelbot/funnel"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://193.187.129.54:5000/api".
	BaseURL string
	// Timeout bounds a single call end to end; 0 picks the default.
	Timeout time.Duration
}

// Client implements funnel.Gateway over the service's REST API.
type Client struct {
	baseURL string
	read    *http.Client
	write   *http.Client
}

// NewClient builds a Client. The base URL must already be validated;
// a trailing slash is tolerated.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		read:    buildReadClient(timeout),
		write:   buildWriteClient(timeout),
	}
}

// apiResponse is the service's uniform envelope.
type apiResponse struct {
	Status      int               `json:"status"`
	Msg         string            `json:"msg"`
	Description string            `json:"description"`
	Data        []json.RawMessage `json:"data"`
}

// catalogEntry is one element of the envelope's data array. All fields
// arrive as strings, including price.
type catalogEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// ListProducts fetches the product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]funnel.CatalogItem, error) {
	return c.listCatalog(ctx, "products", c.baseURL+"/content/product")
}

// ListCities fetches the city catalog.
func (c *Client) ListCities(ctx context.Context) ([]funnel.CatalogItem, error) {
	return c.listCatalog(ctx, "cities", c.baseURL+"/content/city")
}

// ListAreas fetches the areas of one city.
func (c *Client) ListAreas(ctx context.Context, cityID string) ([]funnel.CatalogItem, error) {
	return c.listCatalog(ctx, "areas", c.baseURL+"/content/area?id="+url.QueryEscape(cityID))
}

func (c *Client) listCatalog(ctx context.Context, op, rawURL string) ([]funnel.CatalogItem, error) {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	resp, err := c.read.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp)
	}

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("decode envelope: %w", err)}
	}

	items := make([]funnel.CatalogItem, 0, len(env.Data))
	for _, raw := range env.Data {
		var entry catalogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if entry.ID == "" || entry.Name == "" {
			continue
		}
		items = append(items, funnel.CatalogItem{
			Selectable: funnel.Selectable{ID: entry.ID, Name: entry.Name},
			Price:      entry.Price,
		})
	}

	logger.Debug(ctx, "gw", "catalog.fetch",
		slog.String("payload", op),
		slog.Int("count", len(items)),
		slog.Int("http_code", resp.StatusCode),
		slog.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return items, nil
}

// purchaseBody is the wire form of an order. Field names and string
// typing are fixed by the service contract.
type purchaseBody struct {
	City    string `json:"city"`
	Product string `json:"product"`
	Area    string `json:"area"`
	OrderID string `json:"orderid"`
	UserID  string `json:"userid"`
}

// SubmitOrder posts the order. The request is made exactly once: no
// transport retries, so a flaky network cannot replay an order id.
func (c *Client) SubmitOrder(ctx context.Context, order funnel.Order) error {
	const op = "purchase"
	started := time.Now()

	body, err := json.Marshal(purchaseBody{
		City:    order.CityID,
		Product: order.ProductID,
		Area:    order.AreaID,
		OrderID: order.OrderID,
		UserID:  order.SessionID,
	})
	if err != nil {
		return &Error{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/purchase", bytes.NewReader(body))
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.write.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp)
	}

	logger.Debug(ctx, "gw", "order.posted",
		slog.String("order_id", order.OrderID),
		slog.Int("http_code", resp.StatusCode),
		slog.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return nil
}
