package handler

import (
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"checkout-core/internal/apperr"
	"checkout-core/internal/service"
)

type WebhookHandler struct {
	paymentService service.PaymentService
}

func NewWebhookHandler(paymentService service.PaymentService) *WebhookHandler {
	return &WebhookHandler{paymentService: paymentService}
}

// Handle acknowledges every webhook with 200 once the payload has been read.
// Gateways retry on non-2xx, and a retry storm over a payload we already
// consumed (or can never process) helps nobody; failures are logged with
// enough context to reconcile by hand.
func (h *WebhookHandler) Handle(c echo.Context) error {
	provider := c.Param("provider")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Printf("[webhook] provider=%s read body: %v", provider, err)
		return c.NoContent(http.StatusOK)
	}

	if err := h.paymentService.HandleWebhook(c.Request().Context(), provider, c.Request().Header, body); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			// Duplicate delivery or out-of-order event. Already handled.
			return c.NoContent(http.StatusOK)
		}
		log.Printf("[webhook] provider=%s processing failed: %v", provider, err)
		return c.NoContent(http.StatusOK)
	}

	return c.NoContent(http.StatusOK)
}
