package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"checkout-core/internal/apperr"
	"checkout-core/internal/model"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	UserUsageCount(ctx context.Context, couponID uint, userID string) (int, error)
	// ConsumeUsage atomically increments the global and per-user counters,
	// failing when either limit is already reached. Must run inside the
	// order-confirmation transaction so a rejected increment rolls the
	// whole confirmation back.
	ConsumeUsage(ctx context.Context, tx *gorm.DB, coupon *model.Coupon, userID string) error
}

type couponRepoImpl struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepoImpl{db: db}
}

func (r *couponRepoImpl) Create(ctx context.Context, coupon *model.Coupon) error {
	coupon.Code = strings.ToUpper(coupon.Code)
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *couponRepoImpl) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		Where("code = ?", strings.ToUpper(code)).
		First(&coupon).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &coupon, nil
}

func (r *couponRepoImpl) UserUsageCount(ctx context.Context, couponID uint, userID string) (int, error) {
	var usage model.CouponUsage
	err := r.db.WithContext(ctx).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		First(&usage).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return usage.UsedCount, nil
}

func (r *couponRepoImpl) ConsumeUsage(ctx context.Context, tx *gorm.DB, coupon *model.Coupon, userID string) error {
	// Global counter: conditional increment so two racing checkouts cannot
	// both pass the cap.
	q := tx.WithContext(ctx).Model(&model.Coupon{}).
		Where("id = ?", coupon.ID)
	if coupon.UsageLimit > 0 {
		q = q.Where("used_count < ?", coupon.UsageLimit)
	}
	result := q.Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.Conflict("coupon_usage_limit", "coupon usage limit reached")
	}

	// Per-user counter, same conditional-increment shape.
	uq := tx.WithContext(ctx).Model(&model.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", coupon.ID, userID)
	if coupon.UserUsageLimit > 0 {
		uq = uq.Where("used_count < ?", coupon.UserUsageLimit)
	}
	result = uq.Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// No row updated: either first use (insert) or the user limit is hit.
	var existing model.CouponUsage
	err := tx.WithContext(ctx).
		Where("coupon_id = ? AND user_id = ?", coupon.ID, userID).
		First(&existing).Error
	if err == nil {
		return apperr.Conflict("coupon_user_limit", "coupon already used the maximum number of times")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	err = tx.WithContext(ctx).Create(&model.CouponUsage{
		CouponID:  coupon.ID,
		UserID:    userID,
		UsedCount: 1,
	}).Error
	if err != nil {
		// A concurrent first use inserted the row between our check and
		// create; the duplicate key rolls this confirmation back.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("coupon_usage_race", "coupon usage contention, retry")
		}
		return err
	}
	return nil
}
