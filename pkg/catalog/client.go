// Package catalog talks to the storefront product API and resolves the
// partial product references surfaced by voice tool results into full
// product records.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// Product is a full catalog record as returned by the product search API.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Price         float64 `json:"price"`
	Category      string  `json:"category,omitempty"`
	StockQuantity int     `json:"stock_quantity"`
	ImageURL      string  `json:"image_url,omitempty"`
}

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("catalog api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("catalog api error (status %d): %s", e.StatusCode, e.Message)
}

// Client is a thin HTTP client for the product search endpoint. The endpoint
// itself (search index, ranking) is a backend black box.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a catalog client for the given API base URL
// (for example "https://store.example.com/api/v1").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

// Search runs a free-text product search and returns up to limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	endpoint := c.baseURL + "/products/search?" + url.Values{
		"query": {query},
		"limit": {strconv.Itoa(limit)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return decoded.Products, nil
}

// SearchByName resolves a single product by name, returning the top match or
// nil when nothing matches.
func (c *Client) SearchByName(ctx context.Context, name string) (*Product, error) {
	products, err := c.Search(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	product := products[0]
	return &product, nil
}
