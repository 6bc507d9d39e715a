package dto

import (
	"time"

	"github.com/go-playground/validator/v10"

	"checkout-core/internal/apperr"
)

var validate = validator.New()

// Validate runs struct-tag validation and maps failures onto the shared
// error taxonomy, so handlers decode and validate in one step.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return apperr.Validation("invalid_request",
				"invalid field "+errs[0].Field())
		}
		return apperr.Validation("invalid_request", "malformed request")
	}
	return nil
}

type CartItem struct {
	PlanID    uint    `json:"plan_id" validate:"required"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
}

type SummaryRequest struct {
	Items             []CartItem `json:"items" validate:"required,min=1,dive"`
	CouponCode        string     `json:"coupon_code,omitempty"`
	ShippingAddressID string     `json:"shipping_address_id,omitempty"`
	BillingAddressID  string     `json:"billing_address_id,omitempty"`
}

type ApplyCouponRequest struct {
	Items []CartItem `json:"items" validate:"required,min=1,dive"`
	// Null/empty code removes the coupon.
	Code        *string `json:"code"`
	CurrentCode string  `json:"current_code,omitempty"`
}

type PlaceOrderRequest struct {
	Items      []CartItem `json:"items" validate:"required,min=1,dive"`
	CouponCode string     `json:"coupon_code,omitempty"`
	Method     string     `json:"method" validate:"required"`
	Nonce      string     `json:"nonce,omitempty"`
}

type RefundRequest struct {
	// Omitted amount means a full refund.
	Amount *string `json:"amount,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

type CreateCouponRequest struct {
	Code              string     `json:"code" validate:"required"`
	Type              string     `json:"type" validate:"required,oneof=percentage fixed"`
	Value             string     `json:"value" validate:"required"`
	MinOrderAmount    string     `json:"min_order_amount,omitempty"`
	MaxDiscountAmount *string    `json:"max_discount_amount,omitempty"`
	UsageLimit        int        `json:"usage_limit,omitempty" validate:"min=0"`
	UserUsageLimit    int        `json:"user_usage_limit,omitempty" validate:"min=0"`
	ValidFrom         *time.Time `json:"valid_from,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	Products          []string   `json:"products,omitempty"`
	ExcludedProducts  []string   `json:"excluded_products,omitempty"`
	Categories        []string   `json:"categories,omitempty"`
}

type PauseSubscriptionRequest struct {
	PausedUntil *time.Time `json:"paused_until,omitempty"`
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type PostponementRequest struct {
	OrderID               string    `json:"order_id" validate:"required"`
	RequestedDeliveryDate time.Time `json:"requested_delivery_date" validate:"required"`
	Reason                string    `json:"reason,omitempty"`
}

type DecidePostponementRequest struct {
	Approve bool `json:"approve"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
