package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"checkout-core/internal/model"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error
	FindByID(ctx context.Context, id string) (*model.Subscription, error)
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Subscription, error)
	// Transition moves status only when the current status is one of `from`;
	// billing-date fields ride along in the same conditional update.
	Transition(ctx context.Context, tx *gorm.DB, id string, from []model.SubscriptionStatus, to model.SubscriptionStatus, fields map[string]interface{}) (bool, error)
	// ShiftDeliveryDates applies an approved postponement: both dates move
	// by the same delta in one conditional update on a non-terminal row.
	ShiftDeliveryDates(ctx context.Context, tx *gorm.DB, id string, nextDelivery, nextBilling time.Time) (bool, error)
	// ExpireDue marks ACTIVE subscriptions past their end date EXPIRED.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type subscriptionRepoImpl struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepoImpl{db: db}
}

func (r *subscriptionRepoImpl) Create(ctx context.Context, tx *gorm.DB, sub *model.Subscription) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(sub).Error
}

func (r *subscriptionRepoImpl) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Subscription, error) {
	if tx == nil {
		tx = r.db
	}
	var sub model.Subscription
	err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepoImpl) Transition(ctx context.Context, tx *gorm.DB, id string, from []model.SubscriptionStatus, to model.SubscriptionStatus, fields map[string]interface{}) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	result := tx.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *subscriptionRepoImpl) ShiftDeliveryDates(ctx context.Context, tx *gorm.DB, id string, nextDelivery, nextBilling time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status IN ?", id,
			[]model.SubscriptionStatus{model.SubscriptionActive, model.SubscriptionPaused}).
		Updates(map[string]interface{}{
			"next_delivery_date": nextDelivery,
			"next_billing_date":  nextBilling,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *subscriptionRepoImpl) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("status = ? AND end_date < ?", model.SubscriptionActive, now).
		Updates(map[string]interface{}{
			"status":     model.SubscriptionExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}
