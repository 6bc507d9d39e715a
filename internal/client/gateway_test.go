package client

import (
	"testing"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"checkout-core/internal/model"
)

func TestMapPaypalStatus(t *testing.T) {
	cases := map[string]model.PaymentStatus{
		"COMPLETED":             model.PaymentCompleted,
		"APPROVED":              model.PaymentProcessing,
		"SAVED":                 model.PaymentProcessing,
		"CREATED":               model.PaymentPending,
		"PAYER_ACTION_REQUIRED": model.PaymentPending,
		"VOIDED":                model.PaymentCancelled,
		"DECLINED":              model.PaymentFailed,
		"":                      model.PaymentFailed,
	}
	for raw, want := range cases {
		require.Equal(t, want, mapPaypalStatus(raw), "status %q", raw)
	}
}

func TestSplitBraintreeWebhookBody(t *testing.T) {
	sig, payload, err := splitBraintreeWebhookBody(
		[]byte("bt_signature=abc%7Cdef&bt_payload=cGF5bG9hZA%3D%3D"))
	require.NoError(t, err)
	require.Equal(t, "abc|def", sig)
	require.Equal(t, "cGF5bG9hZA==", payload)

	_, _, err = splitBraintreeWebhookBody([]byte("bt_signature=abc"))
	require.Error(t, err)

	_, _, err = splitBraintreeWebhookBody([]byte("%zz"))
	require.Error(t, err)
}

func TestToBraintreeAmount(t *testing.T) {
	amount := toBraintreeAmount(model.NewMoney(decimal.RequireFromString("102.85"), "EUR"))
	require.Equal(t, braintree.NewDecimal(10285, 2), amount)

	whole := toBraintreeAmount(model.NewMoney(decimal.NewFromInt(50), "EUR"))
	require.Equal(t, braintree.NewDecimal(5000, 2), whole)
}

func TestRegistryLookups(t *testing.T) {
	registry := NewRegistry()
	gw := &staticGateway{name: "fakepay"}
	registry.Register("card", gw)

	byMethod, err := registry.ByMethod("card")
	require.NoError(t, err)
	require.Equal(t, gw, byMethod)

	_, err = registry.ByMethod("wire")
	require.Error(t, err)

	byProvider, err := registry.ByProvider("fakepay")
	require.NoError(t, err)
	require.Equal(t, gw, byProvider)

	_, err = registry.ByProvider("unknown")
	require.Error(t, err)
}

type staticGateway struct {
	Gateway
	name string
}

func (g *staticGateway) Name() string { return g.name }
