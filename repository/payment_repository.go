package repository

import (
	"context"

	"placement-payment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByStripeRefID(ctx context.Context, refID string) (*models.Payment, error)
	// FindPlacementFee returns the latest placement-fee record for a placement,
	// or nil when none exists.
	FindPlacementFee(ctx context.Context, placementID string) (*models.Payment, error)
	// FindPayoutByPlacementID returns an existing payout for a placement, or
	// nil when none exists. Used to reject duplicate payouts.
	FindPayoutByPlacementID(ctx context.Context, placementID string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) FindByStripeRefID(ctx context.Context, refID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("stripe_ref_id = ?", refID).First(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindPlacementFee(ctx context.Context, placementID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("placement_id = ? AND payment_type = ?", placementID, models.PaymentTypePlacementFee).
		Order("created_at DESC").
		First(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) FindPayoutByPlacementID(ctx context.Context, placementID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("placement_id = ? AND payment_type = ?", placementID, models.PaymentTypeCommissionPayout).
		First(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}
