package model

import "github.com/shopspring/decimal"

// CartLine is a priced cart entry with its plan context resolved. Unit price
// is a snapshot taken when the line was built, not a live product lookup.
type CartLine struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Category  string  `json:"category"`
	PlanID    uint    `json:"plan_id"`
	Quantity  int     `json:"quantity"`

	UnitPrice Money `json:"unit_price"`

	DurationDays    int             `json:"duration_days"`
	PlanType        PlanType        `json:"plan_type"`
	PlanDiscountPct decimal.Decimal `json:"plan_discount_pct"`

	MemberPrice       *decimal.Decimal `json:"member_price,omitempty"`
	MemberDiscountPct *decimal.Decimal `json:"member_discount_pct,omitempty"`
}

func (l CartLine) Subtotal() Money {
	return l.UnitPrice.MulQty(l.Quantity)
}

// PricingBreakdown is the priced checkout summary. The invariant
// grandTotal = subtotal - discounts + tax + shipping holds with the total
// clamped at zero; all figures are rounded once, here.
type PricingBreakdown struct {
	OriginalSubtotal         Money `json:"original_subtotal"`
	MembershipDiscount       Money `json:"membership_discount"`
	CouponDiscount           Money `json:"coupon_discount"`
	SubscriptionPlanDiscount Money `json:"subscription_plan_discount"`
	TaxAmount                Money `json:"tax_amount"`
	ShippingAmount           Money `json:"shipping_amount"`
	GrandTotal               Money `json:"grand_total"`

	IsMember bool `json:"is_member"`

	CouponCode    string `json:"coupon_code,omitempty"`
	CouponApplied bool   `json:"coupon_applied"`
	// Set when a coupon code was supplied but failed validation; the
	// breakdown stays valid with the coupon discount omitted.
	CouponMessage string `json:"coupon_message,omitempty"`

	// Display-only monthly figure for single-plan subscription carts.
	MonthlyAmount *decimal.Decimal `json:"monthly_amount,omitempty"`
}
