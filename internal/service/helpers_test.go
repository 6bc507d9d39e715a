package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/client"
	"checkout-core/internal/config"
	"checkout-core/internal/model"
)

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected taxonomy error, got %v", err)
	return ae.Code
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// File-backed database in a per-test temp dir: unlike shared-cache
	// in-memory sqlite, it lets pooled connections read while a write
	// transaction is open instead of failing with "table is locked".
	db, err := client.InitDB(&config.Database{
		Driver: "sqlite",
		Path:   "file:" + t.TempDir() + "/" + uuid.NewString() + ".db?_busy_timeout=5000",
	})
	require.NoError(t, err)
	return db
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := decimal.RequireFromString(s)
	return &d
}

func seedPlan(t *testing.T, db *gorm.DB, plan *model.Plan, product *model.Product) *model.Plan {
	t.Helper()
	require.NoError(t, db.Create(product).Error)
	plan.ProductID = product.ID
	require.NoError(t, db.Create(plan).Error)
	plan.Product = *product
	return plan
}

func seedMembership(t *testing.T, db *gorm.DB, userID, planName string, discountPct decimal.Decimal) {
	t.Helper()
	require.NoError(t, db.Create(&model.Membership{
		UserID:      userID,
		PlanName:    planName,
		DiscountPct: discountPct,
		IsActive:    true,
	}).Error)
}

func cartLine(productID, category string, qty int, unitPrice, taxRate decimal.Decimal) model.CartLine {
	return model.CartLine{
		ProductID: productID,
		Category:  category,
		PlanID:    1,
		Quantity:  qty,
		UnitPrice: model.NewMoneyWithTax(unitPrice, "EUR", taxRate),
		PlanType:  model.PlanOneTime,
	}
}

func activeFixedCoupon(code string, value decimal.Decimal) *model.Coupon {
	return &model.Coupon{
		Code:     code,
		Type:     model.CouponFixed,
		Value:    value,
		IsActive: true,
	}
}

func timePtr(v time.Time) *time.Time { return &v }
