package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentTypePlacementFee     = "placement_fee"
	PaymentTypeCommissionPayout = "commission_payout"

	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// IsTerminalStatus reports whether a payment status can no longer change.
func IsTerminalStatus(status string) bool {
	return status == PaymentStatusCompleted || status == PaymentStatusFailed
}

// Payment is one placement-fee charge or one commission payout. Amounts are
// integer currency minor units throughout.
type Payment struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             string    `gorm:"type:varchar(64);index;not null"` // payer for fees, payee for payouts
	PlacementID        string    `gorm:"type:varchar(64);index"`
	StripeRefID        *string   `gorm:"uniqueIndex"` // PaymentIntent or Transfer ID
	Amount             int64     `gorm:"not null"`
	Currency           string    `gorm:"type:varchar(10);not null"`
	PaymentType        string    `gorm:"type:varchar(32);not null"`
	Status             string    `gorm:"type:varchar(20);not null"`
	AgentCommission    *int64    // placement fees only
	PlatformRevenue    *int64    // placement fees only
	TransferID         *string   `gorm:"type:varchar(255)"` // payouts only
	StripeEventPayload *string   `gorm:"type:jsonb"`        // raw webhook event, for audit
	SucceededAt        *time.Time
	FailedAt           *time.Time
	CreatedAt          time.Time      `gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

// CustomerMapping associates a platform user with their Stripe customer.
// The unique index on UserID is what makes lazy get-or-create race-safe.
type CustomerMapping struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	StripeCustomerID string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Email            string    `gorm:"type:varchar(255)"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// AgentProfile holds the payout destination for a placement agent. The
// payment workflow only reads it; onboarding owns the writes.
type AgentProfile struct {
	UserID          string  `gorm:"type:varchar(64);primaryKey"`
	StripeAccountID *string `gorm:"type:varchar(255)"` // connected account, nil until onboarding completes
	DisplayName     string  `gorm:"type:varchar(255)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
