package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"checkout-core/internal/apperr"
	"checkout-core/internal/config"
	"checkout-core/internal/model"
)

const paypalGatewayName = "paypal"

// paypalClientImpl is the redirect-based provider: intent creation returns an
// approval URL the buyer is sent to, and the outcome comes back through the
// return redirect or a webhook.
type paypalClientImpl struct {
	httpClient   *http.Client
	baseApiURL   string
	clientID     string
	clientSecret string
	webhookID    string
}

func NewPaypalGateway(paypalCfg *config.Paypal, timeout time.Duration) Gateway {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseApiURL:   paypalCfg.BaseApiURL,
		clientID:     paypalCfg.ClientID,
		clientSecret: paypalCfg.ClientSecret,
		webhookID:    paypalCfg.WebhookID,
	}
}

func (c *paypalClientImpl) Name() string { return paypalGatewayName }

type paypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type paypalOrderResult struct {
	ID     string       `json:"id"`
	Links  []paypalLink `json:"links"`
	Status string       `json:"status"`
}

type paypalWebhookPayload struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.clientID + ":" + c.clientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	return res.AccessToken, nil
}

func (c *paypalClientImpl) CreateIntent(ctx context.Context, intentReq *IntentRequest) (*PaymentIntent, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, apperr.Gateway("paypal_auth_failed", "payment provider unavailable", err)
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": intentReq.OrderID,
				"description":  intentReq.Description,
				"amount": map[string]string{
					"currency_code": intentReq.Amount.Currency,
					"value":         intentReq.Amount.StringFixed(),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": intentReq.ReturnURL,
			"cancel_url": intentReq.ReturnURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v2/checkout/orders",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Gateway("paypal_unreachable", "payment provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperr.Gateway("paypal_create_failed", "could not start payment",
			fmt.Errorf("paypal error %d: %s", resp.StatusCode, string(b)))
	}

	var result paypalOrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode paypal response: %w", err)
	}

	return &PaymentIntent{
		GatewayTransactionID: result.ID,
		RedirectURL:          extractApproveURL(result.Links),
	}, nil
}

func (c *paypalClientImpl) Verify(ctx context.Context, gatewayTransactionID string) (model.PaymentStatus, error) {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return "", apperr.Gateway("paypal_auth_failed", "payment provider unavailable", err)
	}

	url := fmt.Sprintf("%s/v2/checkout/orders/%s", c.baseApiURL, gatewayTransactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.Gateway("paypal_unreachable", "payment provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", apperr.NotFound("transaction_not_found", "unknown gateway transaction")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", apperr.Gateway("paypal_verify_failed", "could not verify payment",
			fmt.Errorf("paypal error %d: %s", resp.StatusCode, string(b)))
	}

	var result paypalOrderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode paypal response: %w", err)
	}

	return mapPaypalStatus(result.Status), nil
}

func (c *paypalClientImpl) Refund(ctx context.Context, gatewayTransactionID string, amount model.Money, reason string) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return apperr.Gateway("paypal_auth_failed", "payment provider unavailable", err)
	}

	payload := map[string]interface{}{
		"amount": map[string]string{
			"currency_code": amount.Currency,
			"value":         amount.StringFixed(),
		},
		"note_to_payer": reason,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal refund payload: %w", err)
	}

	url := fmt.Sprintf("%s/v2/payments/captures/%s/refund", c.baseApiURL, gatewayTransactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("create refund request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Gateway("paypal_unreachable", "payment provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return apperr.Gateway("paypal_refund_failed", "could not refund payment",
			fmt.Errorf("paypal error %d: %s", resp.StatusCode, string(b)))
	}
	return nil
}

// Cancel verifies the approval has not completed; an unapproved redirect
// order simply expires on the provider side, there is nothing to void.
func (c *paypalClientImpl) Cancel(ctx context.Context, gatewayTransactionID string) error {
	status, err := c.Verify(ctx, gatewayTransactionID)
	if err != nil {
		return err
	}
	if status == model.PaymentCompleted {
		return apperr.State("already_captured", "payment already captured; refund instead")
	}
	return nil
}

func (c *paypalClientImpl) ParseWebhook(ctx context.Context, headers map[string][]string, body []byte) (*WebhookEvent, error) {
	if err := c.verifyWebhookSignature(ctx, headers, body); err != nil {
		return nil, apperr.Gateway("paypal_webhook_signature", "webhook signature rejected", err)
	}

	var payload paypalWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperr.Validation("malformed_webhook", "malformed webhook payload")
	}

	event := &WebhookEvent{
		EventID:   payload.ID,
		Provider:  paypalGatewayName,
		EventType: payload.EventType,
		RawStatus: payload.Resource.Status,
	}

	// Capture events reference the checkout order id we recorded as the
	// gateway transaction id at intent creation.
	event.GatewayTransactionID = payload.Resource.SupplementaryData.RelatedIDs.OrderID
	if event.GatewayTransactionID == "" {
		event.GatewayTransactionID = payload.Resource.ID
	}

	switch payload.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		event.Status = model.PaymentCompleted
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		event.Status = model.PaymentFailed
		event.FailureReason = payload.Resource.Status
	case "PAYMENT.CAPTURE.REFUNDED":
		event.Status = model.PaymentRefunded
	case "CHECKOUT.ORDER.APPROVED":
		event.Status = model.PaymentProcessing
	default:
		event.Status = model.PaymentPending
	}

	return event, nil
}

func (c *paypalClientImpl) verifyWebhookSignature(ctx context.Context, headers map[string][]string, body []byte) error {
	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get paypal access token: %w", err)
	}

	header := func(key string) string {
		if v := headers[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	payload := map[string]interface{}{
		"auth_algo":         header("Paypal-Auth-Algo"),
		"cert_url":          header("Paypal-Cert-Url"),
		"transmission_id":   header("Paypal-Transmission-Id"),
		"transmission_sig":  header("Paypal-Transmission-Sig"),
		"transmission_time": header("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal verify payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/notifications/verify-webhook-signature",
		bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode verify response: %w", err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("verification status %q", result.VerificationStatus)
	}
	return nil
}

func mapPaypalStatus(status string) model.PaymentStatus {
	switch status {
	case "COMPLETED":
		return model.PaymentCompleted
	case "APPROVED", "SAVED":
		return model.PaymentProcessing
	case "CREATED", "PAYER_ACTION_REQUIRED":
		return model.PaymentPending
	case "VOIDED":
		return model.PaymentCancelled
	default:
		return model.PaymentFailed
	}
}

func extractApproveURL(links []paypalLink) string {
	for _, link := range links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}
