package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
)

func newCouponService(db *gorm.DB) (CouponService, repository.CouponRepository) {
	repo := repository.NewCouponRepository(db)
	return NewCouponService(repo), repo
}

func orderAmount(t *testing.T, s string) model.Money {
	t.Helper()
	return model.NewMoney(dec(t, s), "EUR")
}

func TestCreateRejectsOutOfRangePercentage(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCouponService(db)
	ctx := context.Background()

	err := svc.Create(ctx, &model.Coupon{
		Code:  "BIG",
		Type:  model.CouponPercentage,
		Value: dec(t, "150"),
	})
	require.Error(t, err)
	require.Equal(t, "coupon_value_range", appErrCode(t, err))

	err = svc.Create(ctx, &model.Coupon{
		Code:  "NEG",
		Type:  model.CouponPercentage,
		Value: dec(t, "-1"),
	})
	require.Error(t, err)
	require.Equal(t, "coupon_value_range", appErrCode(t, err))

	// Boundary values are fine.
	require.NoError(t, svc.Create(ctx, &model.Coupon{
		Code: "FULL", Type: model.CouponPercentage, Value: dec(t, "100"), IsActive: true,
	}))
}

func TestValidateOrderingAndReasons(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCouponService(db)
	ctx := context.Background()
	amount := orderAmount(t, "50")

	res, err := svc.Validate(ctx, "missing", "u1", amount, nil)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, "coupon_not_found", res.Reason)

	inactive := activeFixedCoupon("OFF", dec(t, "5"))
	inactive.IsActive = false
	require.NoError(t, db.Create(inactive).Error)
	res, err = svc.Validate(ctx, "off", "u1", amount, nil)
	require.NoError(t, err)
	require.Equal(t, "coupon_inactive", res.Reason)

	future := activeFixedCoupon("SOON", dec(t, "5"))
	future.ValidFrom = timePtr(time.Now().Add(24 * time.Hour))
	require.NoError(t, db.Create(future).Error)
	res, err = svc.Validate(ctx, "SOON", "u1", amount, nil)
	require.NoError(t, err)
	require.Equal(t, "coupon_not_started", res.Reason)

	past := activeFixedCoupon("GONE", dec(t, "5"))
	past.ValidUntil = timePtr(time.Now().Add(-24 * time.Hour))
	require.NoError(t, db.Create(past).Error)
	res, err = svc.Validate(ctx, "GONE", "u1", amount, nil)
	require.NoError(t, err)
	require.Equal(t, "coupon_expired", res.Reason)

	minOrder := activeFixedCoupon("MIN", dec(t, "5"))
	minOrder.MinOrderAmount = dec(t, "100")
	require.NoError(t, db.Create(minOrder).Error)
	res, err = svc.Validate(ctx, "MIN", "u1", amount, nil)
	require.NoError(t, err)
	require.Equal(t, "below_min_order_amount", res.Reason)

	capped := activeFixedCoupon("CAP", dec(t, "5"))
	capped.UsageLimit = 1
	capped.UsedCount = 1
	require.NoError(t, db.Create(capped).Error)
	res, err = svc.Validate(ctx, "CAP", "u1", amount, nil)
	require.NoError(t, err)
	require.Equal(t, "usage_limit_reached", res.Reason)
}

func TestValidateNeverMutatesCounters(t *testing.T) {
	db := newTestDB(t)
	svc, repo := newCouponService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(activeFixedCoupon("SAVE5", dec(t, "5"))).Error)

	for i := 0; i < 3; i++ {
		res, err := svc.Validate(ctx, "SAVE5", "u1", orderAmount(t, "50"), nil)
		require.NoError(t, err)
		require.True(t, res.Valid)
	}

	coupon, err := repo.FindByCode(ctx, "SAVE5")
	require.NoError(t, err)
	require.Equal(t, 0, coupon.UsedCount)

	count, err := repo.UserUsageCount(ctx, coupon.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestConfirmConsumesUsageAndEnforcesLimits(t *testing.T) {
	db := newTestDB(t)
	svc, repo := newCouponService(db)
	ctx := context.Background()

	coupon := activeFixedCoupon("ONCE", dec(t, "5"))
	coupon.UsageLimit = 2
	coupon.UserUsageLimit = 1
	require.NoError(t, db.Create(coupon).Error)

	require.NoError(t, svc.Confirm(ctx, db, "ONCE", "u1"))

	// Same user again: per-user limit.
	err := svc.Confirm(ctx, db, "ONCE", "u1")
	require.Error(t, err)
	require.Equal(t, "coupon_user_limit", appErrCode(t, err))
	require.True(t, apperr.IsKind(err, apperr.KindConflict))

	require.NoError(t, svc.Confirm(ctx, db, "ONCE", "u2"))

	// Global cap of 2 is now exhausted.
	err = svc.Confirm(ctx, db, "ONCE", "u3")
	require.Error(t, err)
	require.Equal(t, "coupon_usage_limit", appErrCode(t, err))

	stored, err := repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	require.Equal(t, 2, stored.UsedCount)
}

func TestPercentageDiscountWithMaxCap(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCouponService(db)
	ctx := context.Background()

	coupon := &model.Coupon{
		Code:              "TEN",
		Type:              model.CouponPercentage,
		Value:             dec(t, "10"),
		MaxDiscountAmount: decPtr(t, "3"),
		IsActive:          true,
	}
	require.NoError(t, db.Create(coupon).Error)

	res, err := svc.Validate(ctx, "TEN", "u1", orderAmount(t, "100"), nil)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "3.00", res.Discount.StringFixed())
}

func TestFixedDiscountCappedAtOrderAmount(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCouponService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(activeFixedCoupon("BIG", dec(t, "50"))).Error)

	res, err := svc.Validate(ctx, "BIG", "u1", orderAmount(t, "20"), nil)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, "20.00", res.Discount.StringFixed())
}

func TestScopeRules(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newCouponService(db)
	ctx := context.Background()
	amount := orderAmount(t, "50")

	scoped := activeFixedCoupon("SCOPED", dec(t, "5"))
	scoped.Products = []model.CouponProduct{
		{ProductID: "sku-in"},
		{ProductID: "sku-out", Excluded: true},
	}
	scoped.Categories = []model.CouponCategory{{Category: "minerals"}}
	require.NoError(t, db.Create(scoped).Error)

	inScope := []model.CartLine{cartLine("sku-in", "vitamins", 1, dec(t, "50"), dec(t, "0"))}
	res, err := svc.Validate(ctx, "SCOPED", "u1", amount, inScope)
	require.NoError(t, err)
	require.True(t, res.Valid)

	byCategory := []model.CartLine{cartLine("sku-other", "minerals", 1, dec(t, "50"), dec(t, "0"))}
	res, err = svc.Validate(ctx, "SCOPED", "u1", amount, byCategory)
	require.NoError(t, err)
	require.True(t, res.Valid)

	noIntersection := []model.CartLine{cartLine("sku-other", "vitamins", 1, dec(t, "50"), dec(t, "0"))}
	res, err = svc.Validate(ctx, "SCOPED", "u1", amount, noIntersection)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, "not_applicable_to_cart", res.Reason)

	// An excluded product poisons the whole cart even next to an included one.
	withExcluded := []model.CartLine{
		cartLine("sku-in", "vitamins", 1, dec(t, "25"), dec(t, "0")),
		cartLine("sku-out", "vitamins", 1, dec(t, "25"), dec(t, "0")),
	}
	res, err = svc.Validate(ctx, "SCOPED", "u1", amount, withExcluded)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, "not_applicable_to_cart", res.Reason)
}
