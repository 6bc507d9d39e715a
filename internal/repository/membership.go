package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"checkout-core/internal/model"
)

// MembershipRepository is the narrow read interface the discount resolver
// consumes; membership purchase lives outside this core.
type MembershipRepository interface {
	ActiveForUser(ctx context.Context, userID string) (*model.Membership, error)
}

type membershipRepoImpl struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepoImpl{db: db}
}

func (r *membershipRepoImpl) ActiveForUser(ctx context.Context, userID string) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}
