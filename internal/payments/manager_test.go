package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeGateway struct {
	initiated int
}

func (f *fakeGateway) Initiate(context.Context, InitiateRequest) (InitiateResult, error) {
	f.initiated++
	return InitiateResult{GatewayTransactionID: "txn-1"}, nil
}

func (f *fakeGateway) Verify(context.Context, VerifyRequest) (VerifyResult, error) {
	return VerifyResult{Verified: true, Reference: "ref-1"}, nil
}

func (f *fakeGateway) Callback(_ context.Context, payload map[string]any) (CallbackResult, error) {
	return CallbackResult{GatewayTransactionID: "txn-1", Raw: payload}, nil
}

func (f *fakeGateway) IsAvailable(context.Context) bool { return true }

func TestNewManagerRequiresGateways(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty gateway map")
	}
	if _, err := NewManager(map[string]Gateway{"": &fakeGateway{}}); err == nil {
		t.Fatal("expected error for blank gateway key")
	}
	if _, err := NewManager(map[string]Gateway{"stripe": nil}); err == nil {
		t.Fatal("expected error for nil gateway")
	}
}

func TestManagerResolveNormalisesType(t *testing.T) {
	gw := &fakeGateway{}
	manager, err := NewManager(map[string]Gateway{"Stripe": gw})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	resolved, err := manager.Resolve(" STRIPE ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != gw {
		t.Fatal("expected the registered gateway back")
	}
}

func TestManagerResolveUnknownType(t *testing.T) {
	manager, err := NewManager(map[string]Gateway{"stripe": &fakeGateway{}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := manager.Resolve("paypal"); !errors.Is(err, ErrUnsupportedGateway) {
		t.Fatalf("expected ErrUnsupportedGateway, got %v", err)
	}
}
