package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftly/cart-engine/internal/core/domain"
	"github.com/craftly/cart-engine/internal/core/service"
	"github.com/craftly/cart-engine/internal/port"
	"github.com/craftly/cart-engine/pkg/retry"
)

type stubRemote struct{}

func (stubRemote) FetchCart(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	return nil, nil
}
func (stubRemote) UpsertItem(ctx context.Context, cartID string, item domain.CartItem) error {
	return nil
}
func (stubRemote) RemoveItem(ctx context.Context, cartID string, productID int64) error {
	return nil
}
func (stubRemote) ReplaceCart(ctx context.Context, cartID string, items []domain.CartItem) error {
	return nil
}
func (stubRemote) Ping(ctx context.Context) error { return nil }

type stubCatalog struct{}

func (stubCatalog) UnitPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	if productID == 404 {
		return decimal.Zero, port.ErrProductNotFound
	}
	return decimal.RequireFromString("25.00"), nil
}

type stubCache struct {
	mu    sync.Mutex
	snaps map[string]domain.CartSnapshot
}

func (s *stubCache) Load(ctx context.Context, cartID string) (*domain.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.snaps[cartID]; ok {
		return &snap, nil
	}
	return nil, nil
}

func (s *stubCache) Store(ctx context.Context, cartID string, snap domain.CartSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snaps == nil {
		s.snaps = make(map[string]domain.CartSnapshot)
	}
	s.snaps[cartID] = snap
	return nil
}

func (s *stubCache) PublishChange(ctx context.Context, cartID string) error { return nil }

func (s *stubCache) WatchChanges(ctx context.Context, cartID string, onChange func()) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubDeduper struct{}

func (stubDeduper) FirstNotice(ctx context.Context, key string) (bool, error) { return true, nil }

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	opts := retry.Options{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	manager := service.NewCartManager(stubRemote{}, stubCatalog{}, &stubCache{}, stubDeduper{}, zap.NewNop(), opts)
	t.Cleanup(manager.Close)
	h := NewHTTPHandler(manager, service.NewShippingCalculator(nil), service.NewCurrencyConverter(), zap.NewNop())
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Cart-ID", "cart-http-test")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestGetCart_EmptyByDefault(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items     []json.RawMessage `json:"items"`
		ItemCount int               `json:"item_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Items, "items must serialize as an array")
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.ItemCount)
}

func TestAddItem_ThenGetCart(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ItemCount int    `json:"item_count"`
		Subtotal  string `json:"subtotal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ItemCount)
}

func TestAddItem_InvalidQuantityRejected(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, mux, http.MethodGet, "/api/cart", "")
	var resp struct {
		ItemCount int `json:"item_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.ItemCount, "failed validation must not mutate state")
}

func TestAddItem_UnknownProduct(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/api/cart/items", `{"product_id":404,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateQuantity_ToZeroRemoves(t *testing.T) {
	mux := newTestMux(t)

	doRequest(t, mux, http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":2}`)
	rec := doRequest(t, mux, http.MethodPatch, "/api/cart/items/1", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
}

func TestRemoveItem(t *testing.T) {
	mux := newTestMux(t)

	doRequest(t, mux, http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":1}`)
	rec := doRequest(t, mux, http.MethodDelete, "/api/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ItemCount int `json:"item_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.ItemCount)
}

func TestCartView(t *testing.T) {
	mux := newTestMux(t)

	doRequest(t, mux, http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":3}`)
	rec := doRequest(t, mux, http.MethodGet, "/api/cart/view", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view service.CartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 3, view.BadgeCount)
	assert.Equal(t, "green", view.BadgeColor)
	assert.True(t, view.Offline, "store starts offline until a probe succeeds")
	assert.Equal(t, 1, view.PendingCount)
}

func TestShippingQuote(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/shipping/quote?postal_code=75011&amount=60", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var quote domain.ShippingQuote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "metropolitan", quote.Zone)
	assert.True(t, quote.IsFree)
}

func TestShippingQuote_FallsBackToCartSubtotal(t *testing.T) {
	mux := newTestMux(t)

	// 3 x 25.00 = 75, above the metropolitan threshold.
	doRequest(t, mux, http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":3}`)
	rec := doRequest(t, mux, http.MethodGet, "/api/shipping/quote?postal_code=75011", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var quote domain.ShippingQuote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.True(t, quote.IsFree)
}

func TestDisplayPrice(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/price?amount=100&currency=USD", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Formatted string `json:"formatted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "$109.00", resp.Formatted)
}

func TestDisplayPrice_UnknownCurrency(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/price?amount=100&currency=XTS", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	mux := newTestMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
