package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"checkout-core/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	FindByGatewayTransactionID(ctx context.Context, txnID string) (*model.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*model.Payment, error)
	SetGatewayRefs(ctx context.Context, id, txnID, sessionID string) error
	// Transition is the compare-and-set at the heart of the state machine:
	// the row moves to `to` only if its current status is one of `from`.
	// Returns false when no row matched, i.e. a concurrent writer got there
	// first or the transition is not applicable.
	Transition(ctx context.Context, tx *gorm.DB, id string, from []model.PaymentStatus, to model.PaymentStatus, fields map[string]interface{}) (bool, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{db: db}
}

func (r *paymentRepoImpl) Create(ctx context.Context, payment *model.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepoImpl) FindByGatewayTransactionID(ctx context.Context, txnID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", txnID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepoImpl) FindByOrderID(ctx context.Context, orderID string) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepoImpl) SetGatewayRefs(ctx context.Context, id, txnID, sessionID string) error {
	return r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"gateway_transaction_id": txnID,
			"gateway_session_id":     sessionID,
			"updated_at":             time.Now(),
		}).Error
}

func (r *paymentRepoImpl) Transition(ctx context.Context, tx *gorm.DB, id string, from []model.PaymentStatus, to model.PaymentStatus, fields map[string]interface{}) (bool, error) {
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

	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
