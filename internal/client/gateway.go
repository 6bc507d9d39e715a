package client

import (
	"context"

	"checkout-core/internal/apperr"
	"checkout-core/internal/model"
)

// IntentRequest carries everything a provider needs to start a payment
// attempt. Nonce is only set for client-side-confirmation providers.
type IntentRequest struct {
	PaymentID   string
	OrderID     string
	Amount      model.Money
	ReturnURL   string
	Description string
	Nonce       string
}

// PaymentIntent is the uniform result of intent creation. Redirect-based
// providers fill RedirectURL; client-side-confirmation providers fill
// ClientSecret. GatewayTransactionID may be empty until the client confirms.
type PaymentIntent struct {
	GatewayTransactionID string
	GatewaySessionID     string
	RedirectURL          string
	ClientSecret         string
}

// WebhookEvent is a provider payload normalized to the shared status enum.
type WebhookEvent struct {
	EventID              string
	Provider             string
	EventType            string
	GatewayTransactionID string
	Status               model.PaymentStatus
	RawStatus            string
	FailureReason        string
}

// Gateway is the uniform adapter over payment providers. Every call carries
// a bounded timeout through ctx; provider-native states are mapped onto
// model.PaymentStatus before they leave the adapter.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req *IntentRequest) (*PaymentIntent, error)
	Verify(ctx context.Context, gatewayTransactionID string) (model.PaymentStatus, error)
	Refund(ctx context.Context, gatewayTransactionID string, amount model.Money, reason string) error
	Cancel(ctx context.Context, gatewayTransactionID string) error
	ParseWebhook(ctx context.Context, headers map[string][]string, body []byte) (*WebhookEvent, error)
}

// Registry resolves a gateway by payment-method key. The key is recorded on
// the Payment at creation time and never re-inferred, so a provider swap
// cannot reroute a payment already in flight.
type Registry struct {
	byMethod map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{byMethod: make(map[string]Gateway)}
}

func (r *Registry) Register(methodKey string, gw Gateway) {
	r.byMethod[methodKey] = gw
}

func (r *Registry) ByMethod(methodKey string) (Gateway, error) {
	gw, ok := r.byMethod[methodKey]
	if !ok {
		return nil, apperr.Validation("unknown_payment_method", "unsupported payment method: "+methodKey)
	}
	return gw, nil
}

// ByProvider resolves by gateway name, used by webhook ingestion where the
// provider is fixed by the endpoint path.
func (r *Registry) ByProvider(name string) (Gateway, error) {
	for _, gw := range r.byMethod {
		if gw.Name() == name {
			return gw, nil
		}
	}
	return nil, apperr.NotFound("unknown_provider", "unknown payment provider: "+name)
}
