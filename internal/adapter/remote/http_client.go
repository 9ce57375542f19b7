// Package remote implements the cart persistence port against the
// development mock API, a REST endpoint accepting GET (fetch) and POST
// (replace) of {"items": [...]}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/craftly/cart-engine/internal/core/domain"
	"github.com/craftly/cart-engine/internal/port"
)

type cartBody struct {
	Items []domain.CartItem `json:"items"`
}

// Client talks to the mock cart endpoint. The endpoint only supports
// whole-cart replace, so single-item writes are fetch-modify-post;
// acceptable for a dev backend, the production path is the database
// adapter.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) FetchCart(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cartURL(cartID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}

	var body cartBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	// Empty carts come back as nil, matching the database adapter, so
	// the store treats both backends the same on a fresh load.
	if len(body.Items) == 0 {
		return nil, nil
	}
	return body.Items, nil
}

func (c *Client) ReplaceCart(ctx context.Context, cartID string, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(cartBody{Items: items})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cartURL(cartID), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("replace cart: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("replace cart: %w", err)
	}
	return nil
}

func (c *Client) UpsertItem(ctx context.Context, cartID string, item domain.CartItem) error {
	items, err := c.FetchCart(ctx, cartID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, item)
	}
	return c.ReplaceCart(ctx, cartID, items)
}

func (c *Client) RemoveItem(ctx context.Context, cartID string, productID int64) error {
	items, err := c.FetchCart(ctx, cartID)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	return c.ReplaceCart(ctx, cartID, kept)
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cartURL("ping"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) cartURL(cartID string) string {
	return c.baseURL + "/api/cart?cart_id=" + url.QueryEscape(cartID)
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return port.ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
