package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"checkout-core/internal/apperr"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

// QuoteRequest is a cart plus user context. CouponCode empty means no coupon.
type QuoteRequest struct {
	UserID     string
	Lines      []model.CartLine
	CouponCode string
	Shipping   model.Money
}

type PricingEngine interface {
	Quote(ctx context.Context, req *QuoteRequest) (*model.PricingBreakdown, error)
	// BuildLines snapshots plan-specific unit prices for the given
	// plan/quantity selections.
	BuildLines(ctx context.Context, selections []PlanSelection) ([]model.CartLine, string, error)
}

type PlanSelection struct {
	PlanID    uint
	VariantID *string
	Quantity  int
}

type pricingEngineImpl struct {
	discounts   DiscountResolver
	coupons     CouponService
	productRepo repository.ProductRepository
}

func NewPricingEngine(discounts DiscountResolver, coupons CouponService, productRepo repository.ProductRepository) PricingEngine {
	return &pricingEngineImpl{
		discounts:   discounts,
		coupons:     coupons,
		productRepo: productRepo,
	}
}

func (e *pricingEngineImpl) BuildLines(ctx context.Context, selections []PlanSelection) ([]model.CartLine, string, error) {
	if len(selections) == 0 {
		return nil, "", apperr.Validation("empty_cart", "cart has no items")
	}

	planIDs := make([]uint, len(selections))
	for i, sel := range selections {
		if sel.Quantity < 1 {
			return nil, "", apperr.Validation("invalid_quantity", "item quantity must be at least 1")
		}
		planIDs[i] = sel.PlanID
	}

	plans, err := e.productRepo.FindPlans(ctx, planIDs)
	if err != nil {
		return nil, "", fmt.Errorf("find plans: %w", err)
	}
	planByID := make(map[uint]*model.Plan, len(plans))
	for _, p := range plans {
		planByID[p.ID] = p
	}

	currency := ""
	lines := make([]model.CartLine, 0, len(selections))
	for _, sel := range selections {
		plan, ok := planByID[sel.PlanID]
		if !ok {
			return nil, "", apperr.NotFound("plan_not_found", fmt.Sprintf("unknown plan %d", sel.PlanID))
		}
		if currency == "" {
			currency = plan.Product.Currency
		} else if currency != plan.Product.Currency {
			return nil, "", apperr.Validation("mixed_currencies", "cart items must share a currency")
		}

		lines = append(lines, model.CartLine{
			ProductID:         plan.ProductID,
			VariantID:         sel.VariantID,
			Category:          plan.Product.Category,
			PlanID:            plan.ID,
			Quantity:          sel.Quantity,
			UnitPrice:         model.NewMoneyWithTax(plan.EffectiveUnitPrice(), currency, plan.Product.TaxRate),
			DurationDays:      plan.DurationDays,
			PlanType:          plan.Type,
			PlanDiscountPct:   plan.DiscountPct,
			MemberPrice:       plan.MemberPrice,
			MemberDiscountPct: plan.MemberDiscountPct,
		})
	}
	return lines, currency, nil
}

// Quote computes the breakdown in the fixed order: subtotal, membership
// discount on the pre-coupon subtotal, coupon discount on the remainder,
// plan-duration discount on what is left, then tax on the post-discount
// subtotal and shipping. The grand total is clamped at zero. An ineligible
// coupon degrades to a message on the breakdown, never a failed quote.
func (e *pricingEngineImpl) Quote(ctx context.Context, req *QuoteRequest) (*model.PricingBreakdown, error) {
	if len(req.Lines) == 0 {
		return nil, apperr.Validation("empty_cart", "cart has no items")
	}
	currency := req.Lines[0].UnitPrice.Currency

	subtotal := model.ZeroMoney(currency)
	for _, line := range req.Lines {
		subtotal = subtotal.Add(line.Subtotal())
	}

	membership, err := e.discounts.ResolveMembership(ctx, req.UserID, req.Lines, currency)
	if err != nil {
		return nil, err
	}
	memberDiscount := membership.Amount.Min(subtotal)
	afterMembership := subtotal.Sub(memberDiscount)

	couponDiscount := model.ZeroMoney(currency)
	couponApplied := false
	couponMessage := ""
	if req.CouponCode != "" {
		couponResult, err := e.coupons.Validate(ctx, req.CouponCode, req.UserID, afterMembership, req.Lines)
		if err != nil {
			return nil, err
		}
		if couponResult.Valid {
			couponDiscount = couponResult.Discount.Min(afterMembership)
			couponApplied = true
		} else {
			couponMessage = couponResult.Reason
		}
	}
	afterCoupon := afterMembership.Sub(couponDiscount)

	planDiscount := e.planDiscount(req.Lines, subtotal, afterCoupon)
	afterAllDiscounts := afterCoupon.Sub(planDiscount)

	tax := e.taxOn(req.Lines, subtotal, afterAllDiscounts)

	shipping := req.Shipping
	if shipping.Currency == "" {
		shipping = model.ZeroMoney(currency)
	}

	grandTotal := afterAllDiscounts.Add(tax).Add(shipping)

	breakdown := &model.PricingBreakdown{
		OriginalSubtotal:         subtotal.Round(),
		MembershipDiscount:       memberDiscount.Round(),
		CouponDiscount:           couponDiscount.Round(),
		SubscriptionPlanDiscount: planDiscount.Round(),
		TaxAmount:                tax.Round(),
		ShippingAmount:           shipping.Round(),
		GrandTotal:               grandTotal.Round(),
		IsMember:                 membership.IsMember,
		CouponCode:               req.CouponCode,
		CouponApplied:            couponApplied,
		CouponMessage:            couponMessage,
	}

	// Monthly display figure when the whole cart is one subscription tier.
	if days, ok := singleSubscriptionDuration(req.Lines); ok {
		breakdown.MonthlyAmount = model.MonthlyAmortization(breakdown.GrandTotal, days)
	}

	return breakdown, nil
}

// planDiscount applies each line's duration-tier percentage to the line's
// share of the post-membership, post-coupon subtotal.
func (e *pricingEngineImpl) planDiscount(lines []model.CartLine, subtotal, remaining model.Money) model.Money {
	if subtotal.IsZero() || remaining.IsZero() {
		return model.ZeroMoney(subtotal.Currency)
	}
	ratio := remaining.Amount.Div(subtotal.Amount)

	total := decimal.Zero
	for _, line := range lines {
		if line.PlanDiscountPct.IsZero() {
			continue
		}
		lineShare := line.Subtotal().Amount.Mul(ratio)
		total = total.Add(lineShare.Mul(line.PlanDiscountPct).Div(decimal.NewFromInt(100)))
	}
	return model.NewMoney(total, subtotal.Currency).Min(remaining)
}

// taxOn computes tax per line on each line's share of the post-discount
// subtotal, using the line's own stored tax rate.
func (e *pricingEngineImpl) taxOn(lines []model.CartLine, subtotal, remaining model.Money) model.Money {
	if subtotal.IsZero() {
		return model.ZeroMoney(subtotal.Currency)
	}
	ratio := remaining.Amount.Div(subtotal.Amount)

	total := decimal.Zero
	for _, line := range lines {
		taxable := line.Subtotal().Amount.Mul(ratio)
		total = total.Add(taxable.Mul(line.UnitPrice.TaxRate))
	}
	return model.NewMoney(total, subtotal.Currency)
}

func singleSubscriptionDuration(lines []model.CartLine) (int, bool) {
	days := 0
	for _, line := range lines {
		if line.PlanType != model.PlanSubscription {
			return 0, false
		}
		if days == 0 {
			days = line.DurationDays
		} else if days != line.DurationDays {
			return 0, false
		}
	}
	return days, days > 0
}
