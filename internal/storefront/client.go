package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Storefront/internal/catalog"
)

var (
	ErrNotFound    = errors.New("catalog: not found")
	ErrBadStatus   = errors.New("catalog: bad status")
	ErrUnavailable = errors.New("catalog: unavailable")
)

// StatusError carries the upstream status and its {"error"} message.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog: status=%d", e.Status)
	}
	return fmt.Sprintf("catalog: status=%d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrBadStatus
}

// Client talks to the catalog HTTP API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Retry   RetryPolicy
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Retry:   DefaultRetry,
	}
}

func (c *Client) ListProducts(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	var out []catalog.Product
	if err := c.getJSON(ctx, ProductsPath, q.Values(), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []catalog.Product{}
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	if err := c.getJSON(ctx, ProductsPath+"/"+url.PathEscape(id), nil, &p); err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	if err := c.getJSON(ctx, CategoriesPath, nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

func (c *Client) CategoryStats(ctx context.Context) (map[string]catalog.CategoryStat, error) {
	var out struct {
		CategoryStats map[string]catalog.CategoryStat `json:"category_stats"`
	}
	if err := c.getJSON(ctx, CategoryStatsPath, nil, &out); err != nil {
		return nil, err
	}
	return out.CategoryStats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.Retry.Do(ctx, func(ctx context.Context) error {
		return c.getOnce(ctx, path, params, out)
	})
}

func (c *Client) getOnce(ctx context.Context, path string, params url.Values, out any) error {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Status: resp.StatusCode, Message: envelope.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrBadStatus, err)
	}
	return nil
}
