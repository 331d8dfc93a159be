package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/platform/httpx"
	"github.com/velora-shop/api/internal/repositories"
	"github.com/velora-shop/api/internal/services"
)

// OrderReader loads persisted orders for display.
type OrderReader interface {
	FindByID(ctx context.Context, orderID int64) (domain.Order, error)
}

// OrderCanceller cancels an order and restores its stock.
type OrderCanceller interface {
	Cancel(ctx context.Context, orderID int64) (services.Order, error)
}

// OrderHandlers exposes order lookup and cancellation.
type OrderHandlers struct {
	orders  OrderReader
	service OrderCanceller
}

// NewOrderHandlers constructs order handlers over the repository and order service.
func NewOrderHandlers(orders OrderReader, service OrderCanceller) *OrderHandlers {
	return &OrderHandlers{orders: orders, service: service}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

type orderItemPayload struct {
	ProductID              int64  `json:"product_id"`
	ProductVariantID       *int64 `json:"product_variant_id,omitempty"`
	VariantDisplayName     string `json:"variant_display_name,omitempty"`
	OriginalPrice          int64  `json:"original_price"`
	CampaignDiscountAmount int64  `json:"campaign_discount_amount,omitempty"`
	UnitPrice              int64  `json:"unit_price"`
	Quantity               int    `json:"quantity"`
	LineTotal              int64  `json:"line_total"`
}

type orderPayload struct {
	ID                     int64              `json:"id"`
	Status                 string             `json:"status"`
	CustomerName           string             `json:"customer_name"`
	CustomerPhone          string             `json:"customer_phone"`
	CustomerAddress        string             `json:"customer_address"`
	DeliveryMethodID       int64              `json:"delivery_method_id"`
	DeliveryFee            int64              `json:"delivery_fee"`
	TotalAmount            int64              `json:"total_amount"`
	OriginalAmount         int64              `json:"original_amount"`
	CampaignDiscountAmount int64              `json:"campaign_discount_amount,omitempty"`
	DiscountCode           string             `json:"discount_code,omitempty"`
	DiscountAmount         int64              `json:"discount_amount,omitempty"`
	FinalAmount            int64              `json:"final_amount"`
	Items                  []orderItemPayload `json:"items"`
	CreatedAt              string             `json:"created_at"`
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to load order", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.service == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, err := pathID(r, "orderID")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.service.Cancel(ctx, orderID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotCancellable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_cancellable", "order can no longer be cancelled", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:                     order.ID,
		Status:                 string(order.Status),
		CustomerName:           order.CustomerName,
		CustomerPhone:          order.CustomerPhone,
		CustomerAddress:        order.CustomerAddress,
		DeliveryMethodID:       order.DeliveryMethodID,
		DeliveryFee:            order.DeliveryFee,
		TotalAmount:            order.TotalAmount,
		OriginalAmount:         order.OriginalAmount,
		CampaignDiscountAmount: order.CampaignDiscountAmount,
		DiscountCode:           order.DiscountCode,
		DiscountAmount:         order.DiscountAmount,
		FinalAmount:            order.FinalAmount,
		Items:                  make([]orderItemPayload, 0, len(order.Items)),
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = order.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:              item.ProductID,
			ProductVariantID:       item.ProductVariantID,
			VariantDisplayName:     item.VariantDisplayName,
			OriginalPrice:          item.OriginalPrice,
			CampaignDiscountAmount: item.CampaignDiscountAmount,
			UnitPrice:              item.UnitPrice,
			Quantity:               item.Quantity,
			LineTotal:              item.LineTotal,
		})
	}
	return payload
}
