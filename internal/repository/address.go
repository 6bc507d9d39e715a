package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"checkout-core/internal/model"
)

// AddressRepository is a narrow read interface; address CRUD is owned by
// another service.
type AddressRepository interface {
	FindByID(ctx context.Context, id string) (*model.Address, error)
}

type addressRepoImpl struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepoImpl{db: db}
}

func (r *addressRepoImpl) FindByID(ctx context.Context, id string) (*model.Address, error) {
	var address model.Address
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &address, nil
}
