package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"checkout-core/internal/apperr"
	"checkout-core/internal/service"
)

// webhookOnlyService stubs the single method the webhook handler touches.
type webhookOnlyService struct {
	service.PaymentService
	err  error
	seen []byte
}

func (s *webhookOnlyService) HandleWebhook(ctx context.Context, provider string, headers map[string][]string, body []byte) error {
	s.seen = body
	return s.err
}

func postWebhook(t *testing.T, svc service.PaymentService, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paypal", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("provider")
	c.SetParamValues("paypal")

	require.NoError(t, NewWebhookHandler(svc).Handle(c))
	return rec
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	ok := &webhookOnlyService{}
	rec := postWebhook(t, ok, `{"event":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"event":"x"}`, string(ok.seen))

	// Processing failures still return 200 so the provider stops retrying.
	failing := &webhookOnlyService{err: apperr.Gateway("bad_signature", "signature mismatch", nil)}
	rec = postWebhook(t, failing, "{}")
	require.Equal(t, http.StatusOK, rec.Code)

	conflicting := &webhookOnlyService{err: apperr.Conflict("status_conflict", "already terminal")}
	rec = postWebhook(t, conflicting, "{}")
	require.Equal(t, http.StatusOK, rec.Code)
}
