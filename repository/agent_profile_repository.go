package repository

import (
	"context"

	"placement-payment-service/models"

	"gorm.io/gorm"
)

type AgentProfileRepository interface {
	// GetByUserID returns the agent profile, or nil when none exists.
	GetByUserID(ctx context.Context, userID string) (*models.AgentProfile, error)
}

type gormAgentProfileRepo struct {
	db *gorm.DB
}

func NewGormAgentProfileRepo(db *gorm.DB) AgentProfileRepository {
	return &gormAgentProfileRepo{db: db}
}

func (r *gormAgentProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
