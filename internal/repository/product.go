package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"checkout-core/internal/model"
)

type ProductRepository interface {
	FindMany(ctx context.Context, ids []string) ([]*model.Product, error)
	FindPlan(ctx context.Context, planID uint) (*model.Plan, error)
	FindPlans(ctx context.Context, planIDs []uint) ([]*model.Plan, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{db: db}
}

func (r *productRepoImpl) FindMany(ctx context.Context, ids []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepoImpl) FindPlan(ctx context.Context, planID uint) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ?", planID).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *productRepoImpl) FindPlans(ctx context.Context, planIDs []uint) ([]*model.Plan, error) {
	var plans []*model.Plan
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id IN ?", planIDs).
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}
