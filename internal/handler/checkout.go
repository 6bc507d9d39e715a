package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"checkout-core/internal/dto"
	"checkout-core/internal/middleware"
	"checkout-core/internal/service"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

func toSelections(items []dto.CartItem) []service.PlanSelection {
	selections := make([]service.PlanSelection, len(items))
	for i, item := range items {
		selections[i] = service.PlanSelection{
			PlanID:    item.PlanID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
	}
	return selections
}

// Summary is read-only: it never mutates coupon usage counters.
func (h *CheckoutHandler) Summary(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SummaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	result, err := h.checkoutService.Summary(ctx, middleware.UserID(c), &service.SummaryInput{
		Selections:        toSelections(req.Items),
		CouponCode:        req.CouponCode,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) ApplyCoupon(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ApplyCouponRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	code := ""
	if req.Code != nil {
		code = *req.Code
	}

	result, err := h.checkoutService.ApplyCoupon(ctx, middleware.UserID(c), toSelections(req.Items), code, req.CurrentCode)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	result, err := h.checkoutService.PlaceOrder(ctx, middleware.UserID(c), &service.PlaceOrderInput{
		Selections: toSelections(req.Items),
		CouponCode: req.CouponCode,
		Method:     req.Method,
		ReturnURL:  h.returnURL(c),
		Nonce:      req.Nonce,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *CheckoutHandler) OrderSummary(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.checkoutService.OrderSummary(ctx, middleware.UserID(c), c.Param("orderID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}

func (h *CheckoutHandler) returnURL(c echo.Context) string {
	scheme := c.Scheme()
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + c.Request().Host + "/api/payments/return"
}
