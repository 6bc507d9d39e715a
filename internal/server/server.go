package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"checkout-core/internal/apperr"
	"checkout-core/internal/dto"
	"checkout-core/internal/handler"
	"checkout-core/internal/middleware"
	"checkout-core/internal/service"
)

type Server struct {
	echo      *echo.Echo
	jwtSecret string

	checkoutHandler     *handler.CheckoutHandler
	paymentHandler      *handler.PaymentHandler
	webhookHandler      *handler.WebhookHandler
	subscriptionHandler *handler.SubscriptionHandler
	couponHandler       *handler.CouponHandler
}

func NewServer(
	jwtSecret string,
	checkoutService service.CheckoutService,
	paymentService service.PaymentService,
	subscriptionService service.SubscriptionService,
	couponService service.CouponService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	s := &Server{
		echo:                e,
		jwtSecret:           jwtSecret,
		checkoutHandler:     handler.NewCheckoutHandler(checkoutService),
		paymentHandler:      handler.NewPaymentHandler(paymentService),
		webhookHandler:      handler.NewWebhookHandler(paymentService),
		subscriptionHandler: handler.NewSubscriptionHandler(subscriptionService),
		couponHandler:       handler.NewCouponHandler(couponService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- gateway-facing, unauthenticated --------
	api.POST("/webhooks/:provider", s.webhookHandler.Handle)
	api.GET("/payments/return", s.paymentHandler.Return)

	auth := api.Group("", middleware.Auth(s.jwtSecret))

	// -------- checkout --------
	checkout := auth.Group("/checkout")
	checkout.POST("/summary", s.checkoutHandler.Summary)
	checkout.POST("/coupon", s.checkoutHandler.ApplyCoupon)

	// -------- orders --------
	auth.POST("/orders", s.checkoutHandler.PlaceOrder)
	auth.GET("/orders/:orderID/summary", s.checkoutHandler.OrderSummary)

	// -------- payments --------
	payments := auth.Group("/payments")
	payments.POST("/:paymentID/verify", s.paymentHandler.Verify)
	payments.POST("/:paymentID/refund", s.paymentHandler.Refund)
	payments.POST("/:paymentID/cancel", s.paymentHandler.Cancel)

	// -------- subscriptions --------
	subs := auth.Group("/subscriptions")
	subs.GET("/:subscriptionID", s.subscriptionHandler.Get)
	subs.POST("/:subscriptionID/pause", s.subscriptionHandler.Pause)
	subs.POST("/:subscriptionID/resume", s.subscriptionHandler.Resume)
	subs.POST("/:subscriptionID/cancel", s.subscriptionHandler.Cancel)

	// -------- postponements --------
	postponements := auth.Group("/postponements")
	postponements.POST("", s.subscriptionHandler.RequestPostponement)
	postponements.POST("/:requestID/decide", s.subscriptionHandler.DecidePostponement)
	postponements.POST("/:requestID/cancel", s.subscriptionHandler.CancelPostponement)

	// -------- admin --------
	auth.POST("/admin/coupons", s.couponHandler.Create)
}

// errorHandler maps the shared error taxonomy onto HTTP statuses; anything
// outside it falls through to echo's defaults.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		_ = c.JSON(apperr.HTTPStatus(appErr), dto.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
		})
		return
	}

	if httpErr, ok := err.(*echo.HTTPError); ok {
		msg, _ := httpErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		_ = c.JSON(httpErr.Code, dto.ErrorResponse{Code: "http_error", Message: msg})
		return
	}

	c.Logger().Error(err)
	_ = c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Code:    "internal_error",
		Message: "internal server error",
	})
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
