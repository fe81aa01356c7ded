package repository

import (
	"context"

	"placement-payment-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerMappingRepository interface {
	// GetByUserID returns the mapping for a user, or nil when none exists.
	GetByUserID(ctx context.Context, userID string) (*models.CustomerMapping, error)
	// GetOrCreate inserts the mapping under the user_id unique constraint.
	// When a concurrent request wins the insert, the existing row is returned
	// instead of the one passed in.
	GetOrCreate(ctx context.Context, mapping *models.CustomerMapping) (*models.CustomerMapping, error)
}

type gormCustomerMappingRepo struct {
	db *gorm.DB
}

func NewGormCustomerMappingRepo(db *gorm.DB) CustomerMappingRepository {
	return &gormCustomerMappingRepo{db: db}
}

func (r *gormCustomerMappingRepo) GetByUserID(ctx context.Context, userID string) (*models.CustomerMapping, error) {
	var mapping models.CustomerMapping
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&mapping).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *gormCustomerMappingRepo) GetOrCreate(ctx context.Context, mapping *models.CustomerMapping) (*models.CustomerMapping, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(mapping)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the insert race; use whatever mapping won.
		return r.GetByUserID(ctx, mapping.UserID)
	}
	return mapping, nil
}
