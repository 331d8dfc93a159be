// Package payments defines the polymorphic gateway contract and its adapters.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedGateway is returned when the manager cannot locate a gateway
// for the requested type.
var ErrUnsupportedGateway = errors.New("payments: unsupported gateway")

// InitiateRequest carries everything a gateway needs to start a payment.
type InitiateRequest struct {
	Amount        int64
	Currency      string
	InvoiceNumber string
	Description   string
	CallbackURL   string
	Metadata      map[string]string
}

// InitiateResult is the gateway's hand-off back to the buyer: either a
// redirect target or client-side form data, plus the gateway's own id for the
// attempt.
type InitiateResult struct {
	GatewayTransactionID string
	RedirectURL          string
	ClientSecret         string
	Raw                  map[string]any
}

// VerifyRequest asks the gateway whether an attempt actually settled.
type VerifyRequest struct {
	GatewayTransactionID string
	Amount               int64
	Currency             string
}

// VerifyResult is the gateway's settlement verdict. Reference is the
// gateway-side settlement reference stored on the verified transaction.
type VerifyResult struct {
	Verified  bool
	Reference string
	Raw       map[string]any
}

// CallbackResult is the outcome of parsing a gateway callback payload.
type CallbackResult struct {
	GatewayTransactionID string
	Raw                  map[string]any
}

// Gateway is the contract every payment adapter implements. Verify must be
// safe to call repeatedly for the same attempt.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	Callback(ctx context.Context, payload map[string]any) (CallbackResult, error)
	IsAvailable(ctx context.Context) bool
}

// Manager resolves registered gateways by their configured type.
type Manager struct {
	gateways map[string]Gateway
}

// NewManager constructs a Manager over the supplied gateways, keyed by type.
func NewManager(gateways map[string]Gateway) (*Manager, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	copyMap := make(map[string]Gateway, len(gateways))
	for k, v := range gateways {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid gateway registration for key %q", k)
		}
		copyMap[key] = v
	}
	return &Manager{gateways: copyMap}, nil
}

// Resolve returns the gateway registered for the given type.
func (m *Manager) Resolve(gatewayType string) (Gateway, error) {
	if m == nil || len(m.gateways) == 0 {
		return nil, errors.New("payments: no gateways registered")
	}
	key := strings.TrimSpace(strings.ToLower(gatewayType))
	gw, ok := m.gateways[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, gatewayType)
	}
	return gw, nil
}
