package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

// Checkout sessions stay payable for this long; Stripe requires at least
// 30 minutes.
const stripeSessionLifetime = time.Hour

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripePaymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
	intents  stripePaymentIntentAPI
}

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	Backends   *stripe.Backends
	Logger     StripeLogger
	Clock      func() time.Time
	Clients    *stripeClients
}

// StripeGateway implements the Gateway interface on Stripe Checkout. Initiate
// opens a checkout session; Verify re-reads the session's payment intent and
// treats only a succeeded intent as settled.
type StripeGateway struct {
	api        stripeClients
	successURL string
	cancelURL  string
	clock      func() time.Time
	logger     StripeLogger
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway constructs a Stripe Gateway using the given configuration.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
			intents:  sc.PaymentIntents,
		}
	}
	if clients.sessions == nil || clients.intents == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		api:        clients,
		successURL: strings.TrimSpace(cfg.SuccessURL),
		cancelURL:  strings.TrimSpace(cfg.CancelURL),
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// Initiate opens a Stripe Checkout session for the invoice amount.
func (g *StripeGateway) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if g == nil {
		return InitiateResult{}, errors.New("stripe: gateway is nil")
	}
	if req.Amount <= 0 {
		return InitiateResult{}, errors.New("stripe: amount must be positive")
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "irr"
	}
	name := req.Description
	if name == "" {
		name = fmt.Sprintf("Invoice %s", req.InvoiceNumber)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		ExpiresAt:  stripe.Int64(g.clock().Add(stripeSessionLifetime).Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}},
	}
	params.Context = ctx
	if req.CallbackURL != "" {
		params.SuccessURL = stripe.String(req.CallbackURL)
	}
	if req.InvoiceNumber != "" {
		params.SetIdempotencyKey("checkout-" + req.InvoiceNumber)
		params.AddMetadata("invoice_number", req.InvoiceNumber)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	session, err := g.api.sessions.New(params)
	if err != nil {
		g.logger(ctx, "stripe.initiate.failed", map[string]any{"invoice_number": req.InvoiceNumber, "error": err.Error()})
		return InitiateResult{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	g.logger(ctx, "stripe.initiate.succeeded", map[string]any{"session_id": session.ID})
	return InitiateResult{
		GatewayTransactionID: session.ID,
		RedirectURL:          session.URL,
		Raw:                  rawStripe(session),
	}, nil
}

// Verify re-reads the checkout session and its payment intent. The verdict
// never depends on callback payload contents, only on Stripe's own state.
func (g *StripeGateway) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if g == nil {
		return VerifyResult{}, errors.New("stripe: gateway is nil")
	}
	sessionID := strings.TrimSpace(req.GatewayTransactionID)
	if sessionID == "" {
		return VerifyResult{}, errors.New("stripe: gateway transaction id is required")
	}

	sessionParams := &stripe.CheckoutSessionParams{}
	sessionParams.Context = ctx
	session, err := g.api.sessions.Get(sessionID, sessionParams)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("stripe: load checkout session %s: %w", sessionID, err)
	}
	if session.PaymentIntent == nil {
		return VerifyResult{Verified: false, Raw: rawStripe(session)}, nil
	}

	intentParams := &stripe.PaymentIntentParams{}
	intentParams.Context = ctx
	intent, err := g.api.intents.Get(session.PaymentIntent.ID, intentParams)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("stripe: load payment intent %s: %w", session.PaymentIntent.ID, err)
	}

	verified := intent.Status == stripe.PaymentIntentStatusSucceeded
	if verified && req.Amount > 0 && intent.AmountReceived < req.Amount {
		verified = false
	}

	result := VerifyResult{
		Verified:  verified,
		Reference: intent.ID,
		Raw:       rawStripe(intent),
	}
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		result.Reference = intent.LatestCharge.ID
	}
	return result, nil
}

// Callback extracts the checkout session id from a return-URL payload.
func (g *StripeGateway) Callback(_ context.Context, payload map[string]any) (CallbackResult, error) {
	for _, key := range []string{"session_id", "checkout_session_id"} {
		if v, ok := payload[key].(string); ok && strings.TrimSpace(v) != "" {
			return CallbackResult{GatewayTransactionID: strings.TrimSpace(v), Raw: payload}, nil
		}
	}
	return CallbackResult{}, errors.New("stripe: callback payload missing session id")
}

// IsAvailable reports whether the gateway is configured to take payments.
func (g *StripeGateway) IsAvailable(context.Context) bool {
	return g != nil && g.api.sessions != nil && g.api.intents != nil
}

// rawStripe flattens a Stripe API object into a generic map for storage.
func rawStripe(v any) map[string]any {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil
	}
	return out
}
