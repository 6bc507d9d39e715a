package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

// CouponResult is the outcome of validating a code against a cart. An
// ineligible coupon is not a hard error: Valid is false and Reason names the
// failed rule so checkout can degrade the discount instead of the response.
type CouponResult struct {
	Code     string
	Valid    bool
	Reason   string
	Discount model.Money
	Coupon   *model.Coupon
}

type CouponService interface {
	// Validate never mutates usage counters.
	Validate(ctx context.Context, code, userID string, orderAmount model.Money, lines []model.CartLine) (*CouponResult, error)
	// Confirm consumes one usage inside the order-confirmation transaction.
	Confirm(ctx context.Context, tx *gorm.DB, code, userID string) error
	Create(ctx context.Context, coupon *model.Coupon) error
}

type couponServiceImpl struct {
	couponRepo repository.CouponRepository
}

func NewCouponService(couponRepo repository.CouponRepository) CouponService {
	return &couponServiceImpl{couponRepo: couponRepo}
}

func (s *couponServiceImpl) Create(ctx context.Context, coupon *model.Coupon) error {
	if strings.TrimSpace(coupon.Code) == "" {
		return apperr.Validation("coupon_code_required", "coupon code is required")
	}
	switch coupon.Type {
	case model.CouponPercentage:
		// Out-of-range percentages are rejected, never silently clamped.
		if coupon.Value.IsNegative() || coupon.Value.GreaterThan(decimal.NewFromInt(100)) {
			return apperr.Validation("coupon_value_range", "percentage value must be between 0 and 100")
		}
	case model.CouponFixed:
		if coupon.Value.IsNegative() {
			return apperr.Validation("coupon_value_range", "fixed value must not be negative")
		}
	default:
		return apperr.Validation("coupon_type_invalid", "coupon type must be percentage or fixed")
	}
	if coupon.ValidFrom != nil && coupon.ValidUntil != nil && coupon.ValidUntil.Before(*coupon.ValidFrom) {
		return apperr.Validation("coupon_window_invalid", "validUntil must not precede validFrom")
	}

	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (s *couponServiceImpl) Validate(ctx context.Context, code, userID string, orderAmount model.Money, lines []model.CartLine) (*CouponResult, error) {
	result := &CouponResult{
		Code:     strings.ToUpper(strings.TrimSpace(code)),
		Discount: model.ZeroMoney(orderAmount.Currency),
	}

	coupon, err := s.couponRepo.FindByCode(ctx, result.Code)
	if err != nil {
		return nil, fmt.Errorf("find coupon by code: %w", err)
	}
	if coupon == nil {
		result.Reason = "coupon_not_found"
		return result, nil
	}
	result.Coupon = coupon

	now := time.Now()
	if !coupon.IsActive {
		result.Reason = "coupon_inactive"
		return result, nil
	}
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		result.Reason = "coupon_not_started"
		return result, nil
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		result.Reason = "coupon_expired"
		return result, nil
	}
	if orderAmount.Amount.LessThan(coupon.MinOrderAmount) {
		result.Reason = "below_min_order_amount"
		return result, nil
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		result.Reason = "usage_limit_reached"
		return result, nil
	}
	if coupon.UserUsageLimit > 0 {
		userCount, err := s.couponRepo.UserUsageCount(ctx, coupon.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("count user coupon usage: %w", err)
		}
		if userCount >= coupon.UserUsageLimit {
			result.Reason = "user_usage_limit_reached"
			return result, nil
		}
	}
	if !scopeMatches(coupon, lines) {
		result.Reason = "not_applicable_to_cart"
		return result, nil
	}

	discount := computeDiscount(coupon, orderAmount)
	if discount.IsZero() {
		result.Reason = "no_discount_applicable"
		return result, nil
	}

	result.Valid = true
	result.Discount = discount
	return result, nil
}

func (s *couponServiceImpl) Confirm(ctx context.Context, tx *gorm.DB, code, userID string) error {
	coupon, err := s.couponRepo.FindByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("find coupon by code: %w", err)
	}
	if coupon == nil {
		return apperr.NotFound("coupon_not_found", "unknown coupon code")
	}
	return s.couponRepo.ConsumeUsage(ctx, tx, coupon, userID)
}

// scopeMatches applies the product/category scoping rules: when inclusion
// scopes are set at least one cart line must intersect them, and no line may
// be in the exclusion list.
func scopeMatches(coupon *model.Coupon, lines []model.CartLine) bool {
	applicable := map[string]bool{}
	excluded := map[string]bool{}
	for _, p := range coupon.Products {
		if p.Excluded {
			excluded[p.ProductID] = true
		} else {
			applicable[p.ProductID] = true
		}
	}
	categories := map[string]bool{}
	for _, c := range coupon.Categories {
		categories[c.Category] = true
	}

	for _, line := range lines {
		if excluded[line.ProductID] {
			return false
		}
	}

	if len(applicable) == 0 && len(categories) == 0 {
		return true
	}
	for _, line := range lines {
		if applicable[line.ProductID] || categories[line.Category] {
			return true
		}
	}
	return false
}

func computeDiscount(coupon *model.Coupon, orderAmount model.Money) model.Money {
	var discount model.Money
	switch coupon.Type {
	case model.CouponPercentage:
		discount = orderAmount.Percent(coupon.Value)
	case model.CouponFixed:
		// A fixed discount never exceeds the order amount itself.
		discount = model.NewMoney(coupon.Value, orderAmount.Currency).Min(orderAmount)
	default:
		return model.ZeroMoney(orderAmount.Currency)
	}

	if coupon.MaxDiscountAmount != nil {
		discount = discount.Min(model.NewMoney(*coupon.MaxDiscountAmount, orderAmount.Currency))
	}
	return discount
}
