package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

func TestResolveMembershipNonMember(t *testing.T) {
	db := newTestDB(t)
	resolver := NewDiscountResolver(repository.NewMembershipRepository(db))

	lines := []model.CartLine{cartLine("sku-1", "vitamins", 1, dec(t, "100"), dec(t, "0"))}
	result, err := resolver.ResolveMembership(context.Background(), "nobody", lines, "EUR")
	require.NoError(t, err)
	require.False(t, result.IsMember)
	require.True(t, result.Amount.IsZero())
}

func TestResolveMembershipPrecedence(t *testing.T) {
	db := newTestDB(t)
	resolver := NewDiscountResolver(repository.NewMembershipRepository(db))
	seedMembership(t, db, "u1", "gold", dec(t, "10"))

	// Explicit member price beats both percentage sources.
	withPrice := cartLine("sku-1", "vitamins", 2, dec(t, "50"), dec(t, "0"))
	withPrice.MemberPrice = decPtr(t, "40")

	// Per-plan override beats the membership default.
	withPct := cartLine("sku-2", "vitamins", 1, dec(t, "100"), dec(t, "0"))
	withPct.MemberDiscountPct = decPtr(t, "25")

	// Falls through to the membership plan's 10%.
	plain := cartLine("sku-3", "vitamins", 1, dec(t, "100"), dec(t, "0"))

	result, err := resolver.ResolveMembership(context.Background(),
		"u1", []model.CartLine{withPrice, withPct, plain}, "EUR")
	require.NoError(t, err)
	require.True(t, result.IsMember)
	require.Equal(t, "gold", result.PlanName)

	// 2*(50-40) + 25 + 10
	require.Equal(t, "55.00", result.Amount.StringFixed())
}

func TestResolveMembershipMemberPriceAboveRegular(t *testing.T) {
	db := newTestDB(t)
	resolver := NewDiscountResolver(repository.NewMembershipRepository(db))
	seedMembership(t, db, "u1", "gold", dec(t, "10"))

	// A member price above the regular price contributes no discount.
	line := cartLine("sku-1", "vitamins", 1, dec(t, "50"), dec(t, "0"))
	line.MemberPrice = decPtr(t, "60")

	result, err := resolver.ResolveMembership(context.Background(),
		"u1", []model.CartLine{line}, "EUR")
	require.NoError(t, err)
	require.True(t, result.Amount.IsZero())
}

func TestResolveMembershipIgnoresExpired(t *testing.T) {
	db := newTestDB(t)
	resolver := NewDiscountResolver(repository.NewMembershipRepository(db))

	expired := timePtr(time.Now().Add(-24 * time.Hour))
	require.NoError(t, db.Create(&model.Membership{
		UserID:      "u1",
		PlanName:    "gold",
		DiscountPct: dec(t, "10"),
		IsActive:    true,
		ExpiresAt:   expired,
	}).Error)

	lines := []model.CartLine{cartLine("sku-1", "vitamins", 1, dec(t, "100"), dec(t, "0"))}
	result, err := resolver.ResolveMembership(context.Background(), "u1", lines, "EUR")
	require.NoError(t, err)
	require.False(t, result.IsMember)
}
