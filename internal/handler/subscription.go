package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"checkout-core/internal/dto"
	"checkout-core/internal/middleware"
	"checkout-core/internal/service"
)

type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

func (h *SubscriptionHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	sub, err := h.subscriptionService.Get(ctx, middleware.UserID(c), c.Param("subscriptionID"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, sub)
}

func (h *SubscriptionHandler) Pause(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PauseSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.subscriptionService.Pause(ctx, middleware.UserID(c), c.Param("subscriptionID"), req.PausedUntil); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *SubscriptionHandler) Resume(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.subscriptionService.Resume(ctx, middleware.UserID(c), c.Param("subscriptionID")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *SubscriptionHandler) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CancelSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.subscriptionService.Cancel(ctx, middleware.UserID(c), c.Param("subscriptionID"), req.Reason); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *SubscriptionHandler) RequestPostponement(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PostponementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	created, err := h.subscriptionService.RequestPostponement(ctx, middleware.UserID(c), &service.PostponementInput{
		OrderID:               req.OrderID,
		RequestedDeliveryDate: req.RequestedDeliveryDate,
		Reason:                req.Reason,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

func (h *SubscriptionHandler) DecidePostponement(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.DecidePostponementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.subscriptionService.DecidePostponement(ctx, middleware.UserID(c), c.Param("requestID"), req.Approve); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *SubscriptionHandler) CancelPostponement(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.subscriptionService.CancelPostponement(ctx, middleware.UserID(c), c.Param("requestID")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
