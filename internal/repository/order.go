package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"checkout-core/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error)
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID string, status model.PaymentStatus) error
	MarkConfirmed(ctx context.Context, tx *gorm.DB, orderID string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepoImpl) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID string, status model.PaymentStatus) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_status": status,
			"updated_at":     time.Now(),
		}).Error
}

func (r *orderRepoImpl) MarkConfirmed(ctx context.Context, tx *gorm.DB, orderID string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderPending).
		Updates(map[string]interface{}{
			"status":     model.OrderConfirmed,
			"updated_at": time.Now(),
		}).Error
}
