package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

// MembershipDiscountResult carries the computed discount plus the member flag
// so callers can render membership state without a second lookup.
type MembershipDiscountResult struct {
	IsMember bool
	PlanName string
	Amount   model.Money
}

type DiscountResolver interface {
	ResolveMembership(ctx context.Context, userID string, lines []model.CartLine, currency string) (*MembershipDiscountResult, error)
}

type discountResolverImpl struct {
	membershipRepo repository.MembershipRepository
}

func NewDiscountResolver(membershipRepo repository.MembershipRepository) DiscountResolver {
	return &discountResolverImpl{membershipRepo: membershipRepo}
}

// ResolveMembership computes the membership discount line by line. Precedence
// per price source: explicit member price, then a per-plan discount override,
// then the membership plan's default percentage. Non-members get zero.
func (r *discountResolverImpl) ResolveMembership(ctx context.Context, userID string, lines []model.CartLine, currency string) (*MembershipDiscountResult, error) {
	result := &MembershipDiscountResult{
		Amount: model.ZeroMoney(currency),
	}
	if userID == "" {
		return result, nil
	}

	membership, err := r.membershipRepo.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch active membership: %w", err)
	}
	if membership == nil {
		return result, nil
	}

	result.IsMember = true
	result.PlanName = membership.PlanName

	total := decimal.Zero
	for _, line := range lines {
		lineSubtotal := line.Subtotal().Amount

		switch {
		case line.MemberPrice != nil:
			// Explicit member price is used verbatim; the discount is the
			// gap to the regular unit price.
			memberSubtotal := line.MemberPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			if gap := lineSubtotal.Sub(memberSubtotal); gap.IsPositive() {
				total = total.Add(gap)
			}
		case line.MemberDiscountPct != nil:
			total = total.Add(lineSubtotal.Mul(*line.MemberDiscountPct).Div(decimal.NewFromInt(100)))
		default:
			total = total.Add(lineSubtotal.Mul(membership.DiscountPct).Div(decimal.NewFromInt(100)))
		}
	}

	result.Amount = model.NewMoney(total, currency)
	return result, nil
}
