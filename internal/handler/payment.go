package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"checkout-core/internal/apperr"
	"checkout-core/internal/dto"
	"checkout-core/internal/middleware"
	"checkout-core/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) Verify(c echo.Context) error {
	ctx := c.Request().Context()

	payment, err := h.paymentService.Verify(ctx, middleware.UserID(c), c.Param("paymentID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) Refund(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RefundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	var amount *decimal.Decimal
	if req.Amount != nil {
		parsed, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return apperr.Validation("invalid_amount", "refund amount is not a valid decimal")
		}
		amount = &parsed
	}

	payment, err := h.paymentService.Refund(ctx, middleware.UserID(c), c.Param("paymentID"), amount, req.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	payment, err := h.paymentService.Cancel(ctx, middleware.UserID(c), c.Param("paymentID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}

// Return handles the browser redirect back from a hosted gateway page. It is
// unauthenticated: the shopper lands here from the gateway, not from our UI,
// so the outcome is resolved from the gateway reference alone.
func (h *PaymentHandler) Return(c echo.Context) error {
	ctx := c.Request().Context()

	txnID := c.QueryParam("token")
	if txnID == "" {
		txnID = c.QueryParam("transaction_id")
	}

	target := h.paymentService.ResolveReturn(ctx, txnID, c.QueryParam("order_id"), c.QueryParam("membership_id"))

	return c.Redirect(http.StatusFound, target)
}
