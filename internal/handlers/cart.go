package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/platform/httpx"
	"github.com/velora-shop/api/internal/repositories"
	"github.com/velora-shop/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartOperations is the slice of the cart service the handlers call.
type CartOperations interface {
	Add(ctx context.Context, cart services.Cart, cmd services.AddToCartCommand) (services.Cart, error)
	UpdateQuantity(ctx context.Context, cart services.Cart, key string, quantity int) (services.Cart, error)
	Remove(ctx context.Context, cart services.Cart, key string) services.Cart
	Totals(ctx context.Context, cart services.Cart) (services.CartTotals, error)
}

// CartHandlers exposes the session cart endpoints. Every route requires the
// session header; the cart itself lives in the session cart store.
type CartHandlers struct {
	carts   CartOperations
	storage repositories.SessionCartStore
}

// NewCartHandlers constructs handlers over the cart service and session store.
func NewCartHandlers(carts CartOperations, storage repositories.SessionCartStore) *CartHandlers {
	return &CartHandlers{carts: carts, storage: storage}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{lineKey}", h.updateItem)
	r.Delete("/items/{lineKey}", h.removeItem)
}

type cartLinePayload struct {
	Key            string `json:"key"`
	ProductID      int64  `json:"product_id"`
	Title          string `json:"title"`
	Image          string `json:"image,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPrice      int64  `json:"unit_price"`
	OriginalPrice  int64  `json:"original_price"`
	DiscountAmount int64  `json:"discount_amount,omitempty"`
	LineTotal      int64  `json:"line_total"`
	HasDiscount    bool   `json:"has_discount"`
	CampaignTitle  string `json:"campaign_title,omitempty"`
}

type cartResponse struct {
	Items            []cartLinePayload `json:"items"`
	Subtotal         int64             `json:"subtotal"`
	TotalItems       int               `json:"total_items"`
	OriginalTotal    int64             `json:"original_total"`
	CampaignDiscount int64             `json:"campaign_discount"`
}

type addItemRequest struct {
	ProductID int64  `json:"product_id"`
	ColorID   *int64 `json:"color_id"`
	SizeID    *int64 `json:"size_id"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	cart, ok := h.loadCart(ctx, w, session)
	if !ok {
		return
	}
	h.respondWithTotals(ctx, w, cart)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req addItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.ProductID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product_id is required", http.StatusBadRequest))
		return
	}

	cart, ok := h.loadCart(ctx, w, session)
	if !ok {
		return
	}

	cart, err = h.carts.Add(ctx, cart, services.AddToCartCommand{
		ProductID: req.ProductID,
		Selector:  domain.NewVariantSelector(req.ColorID, req.SizeID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	if !h.saveCart(ctx, w, session, cart) {
		return
	}
	h.respondWithTotals(ctx, w, cart)
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	key, err := url.PathUnescape(chi.URLParam(r, "lineKey"))
	if err != nil || strings.TrimSpace(key) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "line key is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cart, ok := h.loadCart(ctx, w, session)
	if !ok {
		return
	}

	cart, err = h.carts.UpdateQuantity(ctx, cart, key, req.Quantity)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	if !h.saveCart(ctx, w, session, cart) {
		return
	}
	h.respondWithTotals(ctx, w, cart)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	key, err := url.PathUnescape(chi.URLParam(r, "lineKey"))
	if err != nil || strings.TrimSpace(key) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "line key is required", http.StatusBadRequest))
		return
	}

	cart, ok := h.loadCart(ctx, w, session)
	if !ok {
		return
	}

	cart = h.carts.Remove(ctx, cart, key)
	if !h.saveCart(ctx, w, session, cart) {
		return
	}
	h.respondWithTotals(ctx, w, cart)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	if err := h.storage.Clear(ctx, session); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_storage_error", "failed to clear cart", http.StatusInternalServerError))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) requireSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.carts == nil || h.storage == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	session := sessionID(r)
	if session == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "X-Session-ID header is required", http.StatusBadRequest))
		return "", false
	}
	return session, true
}

func (h *CartHandlers) loadCart(ctx context.Context, w http.ResponseWriter, session string) (services.Cart, bool) {
	cart, err := h.storage.Get(ctx, session)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_storage_error", "failed to load cart", http.StatusInternalServerError))
		return nil, false
	}
	return cart, true
}

func (h *CartHandlers) saveCart(ctx context.Context, w http.ResponseWriter, session string, cart services.Cart) bool {
	if err := h.storage.Save(ctx, session, cart); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_storage_error", "failed to save cart", http.StatusInternalServerError))
		return false
	}
	return true
}

func (h *CartHandlers) respondWithTotals(ctx context.Context, w http.ResponseWriter, cart services.Cart) {
	totals, err := h.carts.Totals(ctx, cart)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartResponse(totals))
}

func buildCartResponse(totals services.CartTotals) cartResponse {
	resp := cartResponse{
		Items:            make([]cartLinePayload, 0, len(totals.Items)),
		Subtotal:         totals.Subtotal,
		TotalItems:       totals.TotalItems,
		OriginalTotal:    totals.OriginalTotal,
		CampaignDiscount: totals.CampaignDiscount,
	}
	for _, line := range totals.Items {
		payload := cartLinePayload{
			Key:            line.Key,
			ProductID:      line.ProductID,
			Title:          line.Title,
			Image:          line.Image,
			DisplayName:    line.DisplayName,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			OriginalPrice:  line.OriginalPrice,
			DiscountAmount: line.DiscountAmount,
			LineTotal:      line.LineTotal,
			HasDiscount:    line.HasDiscount,
		}
		if line.Campaign != nil {
			payload.CampaignTitle = line.Campaign.Title
		}
		resp.Items = append(resp.Items, payload)
	}
	return resp
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.Is(err, services.ErrCartInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductNotFound),
		errors.Is(err, services.ErrCartProductInactive),
		errors.Is(err, services.ErrCartVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrCartLineNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_line_not_found", "cart line not found", http.StatusNotFound))
	case errors.As(err, &stockErr):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", stockErr.Error(), http.StatusConflict).WithDetails(map[string]any{
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		}))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
