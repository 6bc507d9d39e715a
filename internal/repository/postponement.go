package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"checkout-core/internal/model"
)

type PostponementRepository interface {
	Create(ctx context.Context, req *model.PostponementRequest) error
	FindByID(ctx context.Context, id string) (*model.PostponementRequest, error)
	// Decide moves a PENDING request to its final status; returns false when
	// the request was already decided.
	Decide(ctx context.Context, tx *gorm.DB, id string, to model.PostponementStatus, decidedBy string) (bool, error)
}

type postponementRepoImpl struct {
	db *gorm.DB
}

func NewPostponementRepository(db *gorm.DB) PostponementRepository {
	return &postponementRepoImpl{db: db}
}

func (r *postponementRepoImpl) Create(ctx context.Context, req *model.PostponementRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *postponementRepoImpl) FindByID(ctx context.Context, id string) (*model.PostponementRequest, error) {
	var req model.PostponementRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *postponementRepoImpl) Decide(ctx context.Context, tx *gorm.DB, id string, to model.PostponementStatus, decidedBy string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.PostponementRequest{}).
		Where("id = ? AND status = ?", id, model.PostponementPending).
		Updates(map[string]interface{}{
			"status":     to,
			"decided_at": now,
			"decided_by": decidedBy,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
