package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"

	"checkout-core/internal/apperr"
	"checkout-core/internal/config"
	"checkout-core/internal/model"
)

const braintreeGatewayName = "braintree"

// braintreeClientImpl is the client-side-confirmation provider: when no
// nonce is present yet, intent creation hands back a client token (the
// clientSecret of the uniform contract) and the payment stays PENDING until
// the client confirms with a tokenized nonce.
type braintreeClientImpl struct {
	gateway *braintree.Braintree
}

func NewBraintreeGateway(cfg *config.Braintree) Gateway {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	gateway := braintree.New(
		env,
		cfg.MerchantID,
		cfg.PublicKey,
		cfg.PrivateKey,
	)

	return &braintreeClientImpl{
		gateway: gateway,
	}
}

func (c *braintreeClientImpl) Name() string { return braintreeGatewayName }

func (c *braintreeClientImpl) CreateIntent(ctx context.Context, req *IntentRequest) (*PaymentIntent, error) {
	if req.Nonce == "" {
		token, err := c.gateway.ClientToken().Generate(ctx)
		if err != nil {
			return nil, apperr.Gateway("braintree_token_failed", "payment provider unavailable", err)
		}
		return &PaymentIntent{ClientSecret: token}, nil
	}

	txReq := &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             toBraintreeAmount(req.Amount),
		PaymentMethodNonce: req.Nonce,
		OrderId:            req.OrderID,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	}

	tx, err := c.gateway.Transaction().Create(ctx, txReq)
	if err != nil {
		return nil, apperr.Gateway("braintree_sale_failed", "could not start payment", err)
	}

	if tx.Status == braintree.TransactionStatusProcessorDeclined {
		return nil, apperr.Gateway("braintree_declined", "payment declined",
			fmt.Errorf("processor declined: %s", tx.ProcessorResponseText))
	}

	return &PaymentIntent{
		GatewayTransactionID: tx.Id,
	}, nil
}

func (c *braintreeClientImpl) Verify(ctx context.Context, gatewayTransactionID string) (model.PaymentStatus, error) {
	tx, err := c.gateway.Transaction().Find(ctx, gatewayTransactionID)
	if err != nil {
		return "", apperr.Gateway("braintree_find_failed", "could not verify payment", err)
	}
	return mapBraintreeStatus(tx.Status), nil
}

func (c *braintreeClientImpl) Refund(ctx context.Context, gatewayTransactionID string, amount model.Money, reason string) error {
	_, err := c.gateway.Transaction().Refund(ctx, gatewayTransactionID, toBraintreeAmount(amount))
	if err != nil {
		return apperr.Gateway("braintree_refund_failed", "could not refund payment", err)
	}
	return nil
}

func (c *braintreeClientImpl) Cancel(ctx context.Context, gatewayTransactionID string) error {
	_, err := c.gateway.Transaction().Void(ctx, gatewayTransactionID)
	if err != nil {
		return apperr.Gateway("braintree_void_failed", "could not cancel payment", err)
	}
	return nil
}

func (c *braintreeClientImpl) ParseWebhook(ctx context.Context, headers map[string][]string, body []byte) (*WebhookEvent, error) {
	signature, payload, err := splitBraintreeWebhookBody(body)
	if err != nil {
		return nil, apperr.Validation("malformed_webhook", "malformed webhook payload")
	}

	notification, err := c.gateway.WebhookNotification().Parse(signature, payload)
	if err != nil {
		return nil, apperr.Gateway("braintree_webhook_signature", "webhook signature rejected", err)
	}

	event := &WebhookEvent{
		Provider:  braintreeGatewayName,
		EventType: string(notification.Kind),
	}

	if notification.Subject != nil && notification.Subject.Transaction != nil {
		tx := notification.Subject.Transaction
		event.GatewayTransactionID = tx.Id
		event.RawStatus = string(tx.Status)
		event.Status = mapBraintreeStatus(tx.Status)
		if event.Status == model.PaymentFailed {
			event.FailureReason = string(tx.Status)
		}
	}

	// Braintree notifications carry no event id; timestamp + kind + txn id
	// is stable across redeliveries of the same event.
	event.EventID = fmt.Sprintf("%s:%s:%d",
		notification.Kind, event.GatewayTransactionID, notification.Timestamp.Unix())

	return event, nil
}

// Braintree posts application/x-www-form-urlencoded bodies with bt_signature
// and bt_payload fields.
func splitBraintreeWebhookBody(body []byte) (signature, payload string, err error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", "", fmt.Errorf("parse webhook form body: %w", err)
	}
	signature = values.Get("bt_signature")
	payload = values.Get("bt_payload")
	if signature == "" || payload == "" {
		return "", "", fmt.Errorf("missing bt_signature or bt_payload")
	}
	return signature, payload, nil
}

// toBraintreeAmount converts Money to braintree's unscaled-int decimal:
// "50.00" -> NewDecimal(5000, 2).
func toBraintreeAmount(m model.Money) *braintree.Decimal {
	cents := m.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return braintree.NewDecimal(cents, 2)
}

func mapBraintreeStatus(status braintree.TransactionStatus) model.PaymentStatus {
	switch status {
	case braintree.TransactionStatusSettled,
		braintree.TransactionStatusSettling,
		braintree.TransactionStatusSubmittedForSettlement:
		return model.PaymentCompleted
	case braintree.TransactionStatusAuthorized,
		braintree.TransactionStatusAuthorizing:
		return model.PaymentProcessing
	case braintree.TransactionStatusVoided:
		return model.PaymentCancelled
	case braintree.TransactionStatusProcessorDeclined,
		braintree.TransactionStatusGatewayRejected,
		braintree.TransactionStatusAuthorizationExpired:
		return model.PaymentFailed
	default:
		return model.PaymentPending
	}
}
