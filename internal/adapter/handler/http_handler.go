package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/craftly/cart-engine/internal/core/domain"
	"github.com/craftly/cart-engine/internal/core/service"
	"github.com/craftly/cart-engine/internal/port"
)

const cartIDHeader = "X-Cart-ID"

type HTTPHandler struct {
	carts    *service.CartManager
	shipping *service.ShippingCalculator
	currency *service.CurrencyConverter
	logger   *zap.Logger
}

func NewHTTPHandler(
	carts *service.CartManager,
	shipping *service.ShippingCalculator,
	currency *service.CurrencyConverter,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{carts: carts, shipping: shipping, currency: currency, logger: logger}
}

// Register wires the routes onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("GET /api/cart/view", h.GetCartView)
	mux.HandleFunc("POST /api/cart/items", h.AddItem)
	mux.HandleFunc("PATCH /api/cart/items/{productID}", h.UpdateQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.RemoveItem)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)
	mux.HandleFunc("GET /api/shipping/quote", h.ShippingQuote)
	mux.HandleFunc("GET /api/price", h.DisplayPrice)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Items     []domain.CartItem `json:"items"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	ItemCount int               `json:"item_count"`
	Sync      domain.SyncStatus `json:"sync"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	svc := h.carts.Get(r.Context(), cartID(r))
	snap := svc.Snapshot()
	if snap.Items == nil {
		snap.Items = []domain.CartItem{}
	}
	writeJSON(w, http.StatusOK, cartResponse{
		Items:     snap.Items,
		Subtotal:  snap.Subtotal,
		ItemCount: snap.ItemCount,
		Sync:      svc.Status(),
	})
}

func (h *HTTPHandler) GetCartView(w http.ResponseWriter, r *http.Request) {
	svc := h.carts.Get(r.Context(), cartID(r))
	writeJSON(w, http.StatusOK, service.BuildCartView(svc.Snapshot(), svc.Status(), svc.Notice()))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	svc := h.carts.Get(r.Context(), cartID(r))
	if err := svc.AddItem(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.GetCart(w, r)
}

func (h *HTTPHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return
	}
	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	svc := h.carts.Get(r.Context(), cartID(r))
	if err := svc.UpdateQuantity(r.Context(), productID, req.Quantity); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.GetCart(w, r)
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return
	}

	svc := h.carts.Get(r.Context(), cartID(r))
	if err := svc.RemoveItem(r.Context(), productID); err != nil {
		h.writeCartError(w, err)
		return
	}
	h.GetCart(w, r)
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	svc := h.carts.Get(r.Context(), cartID(r))
	svc.Clear(r.Context())
	h.GetCart(w, r)
}

func (h *HTTPHandler) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	postal := r.URL.Query().Get("postal_code")
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		// Shipping never blocks checkout; quote from the cart instead.
		amount = h.carts.Get(r.Context(), cartID(r)).Snapshot().Subtotal
	}
	writeJSON(w, http.StatusOK, h.shipping.Calculate(postal, amount))
}

func (h *HTTPHandler) DisplayPrice(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid amount"})
		return
	}
	currency := domain.Currency(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = domain.EUR
	}

	display, err := h.currency.Display(amount, currency)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported currency"})
		return
	}
	converted, _ := h.currency.Convert(amount, currency)
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":    converted,
		"currency":  currency,
		"formatted": display,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be at least 1"})
	case errors.Is(err, port.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
	default:
		h.logger.Error("cart operation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// cartID resolves the cart session, defaulting to an anonymous guest
// cart so local development works without headers.
func cartID(r *http.Request) string {
	if id := r.Header.Get(cartIDHeader); id != "" {
		return id
	}
	return "guest"
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
