package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/platform/httpx"
	"github.com/velora-shop/api/internal/platform/textutil"
	"github.com/velora-shop/api/internal/services"
)

const maxPaymentBodySize = 32 * 1024

// PaymentOperations is the slice of the payment service the handlers call.
type PaymentOperations interface {
	Initiate(ctx context.Context, invoiceID, gatewayID int64) (services.PaymentInitiation, error)
	HandleCallback(ctx context.Context, gatewayType string, payload map[string]any) (services.Order, error)
}

// PaymentHandlers exposes payment initiation and the gateway callback that
// drives payment verification and order creation.
type PaymentHandlers struct {
	payments PaymentOperations
}

// NewPaymentHandlers constructs payment handlers over the payment service.
func NewPaymentHandlers(payments PaymentOperations) *PaymentHandlers {
	return &PaymentHandlers{payments: payments}
}

// Routes wires the /payments endpoints onto the provided router. Callback
// accepts both GET and POST because gateways differ in how they return the
// buyer to the shop.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/initiate", h.initiate)
	r.Get("/callback/{gateway}", h.callback)
	r.Post("/callback/{gateway}", h.callback)
}

type initiatePaymentRequest struct {
	InvoiceID int64 `json:"invoice_id"`
	GatewayID int64 `json:"gateway_id"`
}

type initiatePaymentResponse struct {
	TransactionID int64  `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	ClientSecret  string `json:"client_secret,omitempty"`
}

type callbackResponse struct {
	Status string       `json:"status"`
	Order  orderPayload `json:"order"`
}

func (h *PaymentHandlers) initiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxPaymentBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req initiatePaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.InvoiceID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invoice_id must be a positive integer", http.StatusBadRequest))
		return
	}
	if req.GatewayID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "gateway_id must be a positive integer", http.StatusBadRequest))
		return
	}

	initiation, err := h.payments.Initiate(ctx, req.InvoiceID, req.GatewayID)
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, initiatePaymentResponse{
		TransactionID: initiation.Transaction.ID,
		RedirectURL:   initiation.RedirectURL,
		ClientSecret:  initiation.ClientSecret,
	})
}

func (h *PaymentHandlers) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	gatewayType := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "gateway")))
	if gatewayType == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "gateway is required", http.StatusBadRequest))
		return
	}

	payload := callbackPayload(r)
	if len(payload) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "callback payload is empty", http.StatusBadRequest))
		return
	}

	order, err := h.payments.HandleCallback(ctx, gatewayType, payload)
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, callbackResponse{
		Status: "paid",
		Order:  buildOrderPayload(order),
	})
}

// callbackPayload flattens everything the gateway sent back into one map:
// query parameters, form fields and, for JSON POSTs, the decoded body.
// String values are trimmed so flaky gateway encoders cannot smuggle
// whitespace into transaction ids.
func callbackPayload(r *http.Request) map[string]any {
	values := map[string]string{}
	for key, list := range r.URL.Query() {
		if len(list) > 0 {
			values[key] = list[0]
		}
	}

	payload := map[string]any{}
	if r.Method == http.MethodPost {
		contentType := r.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(contentType, "application/json"):
			body, err := readLimitedBody(r, maxPaymentBodySize)
			if err == nil {
				_ = json.Unmarshal(body, &payload)
			}
		default:
			if err := r.ParseForm(); err == nil {
				for key, list := range r.PostForm {
					if len(list) > 0 {
						values[key] = list[0]
					}
				}
			}
		}
	}

	for key, value := range textutil.NormalizeStringMap(values) {
		payload[key] = value
	}
	return payload
}

func (h *PaymentHandlers) writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.Is(err, services.ErrPaymentInvoiceNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_not_found", "invoice not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentTransactionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("transaction_not_found", "transaction not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentGatewayNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_not_found", "payment gateway not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentInvoiceNotPayable):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_not_payable", "invoice is not payable", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentGatewayUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_unavailable", "payment gateway is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrPaymentInitiateFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_initiate_failed", "failed to initiate payment", http.StatusBadGateway))
	case errors.Is(err, services.ErrPaymentRejected):
		httpx.WriteError(ctx, w, httpx.NewError("payment_rejected", "payment was rejected by the gateway", http.StatusPaymentRequired))
	case errors.As(err, &stockErr):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", stockErr.Error(), http.StatusConflict).WithDetails(map[string]any{
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		}))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusInternalServerError))
	}
}
