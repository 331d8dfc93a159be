package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/velora-shop/api/internal/platform/httpx"
	"github.com/velora-shop/api/internal/repositories"
	"github.com/velora-shop/api/internal/services"
)

const maxCheckoutBodySize = 32 * 1024

// CheckoutOperations is the slice of the checkout service the handlers call.
type CheckoutOperations interface {
	CalculateOrderTotals(ctx context.Context, cart services.Cart, deliveryMethodID int64) (services.OrderTotals, error)
	Checkout(ctx context.Context, cart services.Cart, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

// DiscountValidator validates a discount code against an order amount.
type DiscountValidator interface {
	Validate(ctx context.Context, code string, userID *int64, orderAmount int64) (services.DiscountCode, error)
	Amount(code services.DiscountCode, orderAmount int64) int64
}

// CheckoutHandlers exposes totals preview, discount code validation and the
// checkout submission that mints the unpaid invoice.
type CheckoutHandlers struct {
	checkout  CheckoutOperations
	discounts DiscountValidator
	storage   repositories.SessionCartStore
}

// NewCheckoutHandlers constructs checkout handlers over the services and session store.
func NewCheckoutHandlers(checkout CheckoutOperations, discounts DiscountValidator, storage repositories.SessionCartStore) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout, discounts: discounts, storage: storage}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/totals", h.getTotals)
	r.Post("/discount-code", h.validateDiscountCode)
	r.Post("/", h.submitCheckout)
}

type orderTotalsPayload struct {
	TotalAmount      int64 `json:"total_amount"`
	OriginalAmount   int64 `json:"original_amount"`
	CampaignDiscount int64 `json:"campaign_discount"`
	DeliveryFee      int64 `json:"delivery_fee"`
}

type validateDiscountRequest struct {
	Code             string `json:"code"`
	DeliveryMethodID int64  `json:"delivery_method_id"`
	UserID           *int64 `json:"user_id"`
}

type validateDiscountResponse struct {
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalAmount    int64  `json:"final_amount"`
}

type checkoutRequest struct {
	CustomerName     string `json:"customer_name"`
	CustomerPhone    string `json:"customer_phone"`
	CustomerAddress  string `json:"customer_address"`
	DeliveryMethodID int64  `json:"delivery_method_id"`
	DiscountCode     string `json:"discount_code"`
	UserID           *int64 `json:"user_id"`
}

type checkoutResponse struct {
	InvoiceID      int64              `json:"invoice_id"`
	InvoiceNumber  string             `json:"invoice_number"`
	Currency       string             `json:"currency"`
	Totals         orderTotalsPayload `json:"totals"`
	DiscountAmount int64              `json:"discount_amount,omitempty"`
	FinalAmount    int64              `json:"final_amount"`
}

func (h *CheckoutHandlers) getTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	deliveryMethodID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("delivery_method_id")), 10, 64)
	if err != nil || deliveryMethodID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "delivery_method_id must be a positive integer", http.StatusBadRequest))
		return
	}

	cart, ok := h.loadCart(ctx, w, session)
	if !ok {
		return
	}

	totals, err := h.checkout.CalculateOrderTotals(ctx, cart, deliveryMethodID)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildTotalsPayload(totals))
}

func (h *CheckoutHandlers) validateDiscountCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}
	if h.discounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req validateDiscountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "code is required", http.StatusBadRequest))
		return
	}
	if req.DeliveryMethodID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "delivery_method_id must be a positive integer", http.StatusBadRequest))
		return
	}

	cart, ok := h.loadCart(ctx, w, session)
	if !ok {
		return
	}

	totals, err := h.checkout.CalculateOrderTotals(ctx, cart, req.DeliveryMethodID)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	orderAmount := totals.TotalAmount + totals.DeliveryFee
	code, err := h.discounts.Validate(ctx, req.Code, req.UserID, orderAmount)
	if err != nil {
		writeDiscountError(ctx, w, err)
		return
	}

	discountAmount := h.discounts.Amount(code, orderAmount)
	final := orderAmount - discountAmount
	if final < 0 {
		final = 0
	}

	writeJSONResponse(w, http.StatusOK, validateDiscountResponse{
		Code:           code.Code,
		DiscountAmount: discountAmount,
		FinalAmount:    final,
	})
}

func (h *CheckoutHandlers) submitCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.requireSession(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if msg := validateCheckoutRequest(req); msg != "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", msg, http.StatusBadRequest))
		return
	}

	cart, ok := h.loadCart(ctx, w, session)
	if !ok {
		return
	}

	result, err := h.checkout.Checkout(ctx, cart, services.CheckoutCommand{
		SessionID:        session,
		UserID:           req.UserID,
		CustomerName:     strings.TrimSpace(req.CustomerName),
		CustomerPhone:    strings.TrimSpace(req.CustomerPhone),
		CustomerAddress:  strings.TrimSpace(req.CustomerAddress),
		DeliveryMethodID: req.DeliveryMethodID,
		DiscountCode:     strings.TrimSpace(req.DiscountCode),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		InvoiceID:      result.Invoice.ID,
		InvoiceNumber:  result.Invoice.InvoiceNumber,
		Currency:       result.Invoice.Currency,
		Totals:         buildTotalsPayload(result.Totals),
		DiscountAmount: result.Invoice.DiscountCodeAmount,
		FinalAmount:    result.FinalAmount,
	})
}

func validateCheckoutRequest(req checkoutRequest) string {
	switch {
	case strings.TrimSpace(req.CustomerName) == "":
		return "customer_name is required"
	case strings.TrimSpace(req.CustomerPhone) == "":
		return "customer_phone is required"
	case strings.TrimSpace(req.CustomerAddress) == "":
		return "customer_address is required"
	case req.DeliveryMethodID <= 0:
		return "delivery_method_id must be a positive integer"
	}
	return ""
}

func buildTotalsPayload(totals services.OrderTotals) orderTotalsPayload {
	return orderTotalsPayload{
		TotalAmount:      totals.TotalAmount,
		OriginalAmount:   totals.OriginalAmount,
		CampaignDiscount: totals.CampaignDiscount,
		DeliveryFee:      totals.DeliveryFee,
	}
}

func (h *CheckoutHandlers) requireSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.checkout == nil || h.storage == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	session := sessionID(r)
	if session == "" {
		httpx.WriteError(ctx, w, httpx.NewError("session_required", "X-Session-ID header is required", http.StatusBadRequest))
		return "", false
	}
	return session, true
}

func (h *CheckoutHandlers) loadCart(ctx context.Context, w http.ResponseWriter, session string) (services.Cart, bool) {
	cart, err := h.storage.Get(ctx, session)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_storage_error", "failed to load cart", http.StatusInternalServerError))
		return nil, false
	}
	return cart, true
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutDeliveryMethodNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("delivery_method_not_found", "delivery method not found", http.StatusNotFound))
	case isDiscountError(err):
		writeDiscountError(ctx, w, err)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}

func isDiscountError(err error) bool {
	for _, candidate := range []error{
		services.ErrDiscountCodeNotFound,
		services.ErrDiscountCodeInactive,
		services.ErrDiscountCodeNotStarted,
		services.ErrDiscountCodeExpired,
		services.ErrDiscountCodeUsageLimit,
		services.ErrDiscountCodeMinAmount,
		services.ErrDiscountCodeAlreadyUsed,
	} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}

func writeDiscountError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDiscountCodeNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("discount_code_not_found", "discount code not found", http.StatusNotFound))
	case isDiscountError(err):
		httpx.WriteError(ctx, w, httpx.NewError("discount_code_rejected", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("discount_error", "failed to validate discount code", http.StatusInternalServerError))
	}
}
