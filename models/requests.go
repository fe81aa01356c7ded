package models

import "time"

const (
	ActionCreateSubscriptionCheckout = "create_subscription_checkout"
	ActionProcessPlacementFee        = "process_placement_fee"
	ActionCreateAgentPayout          = "create_agent_payout"
)

// PaymentActionRequest is the body of POST /payments. Action selects the
// operation; the remaining fields are action-specific.
type PaymentActionRequest struct {
	Action string `json:"action" binding:"required"`

	// create_subscription_checkout
	Plan        string `json:"plan"`
	SuccessPath string `json:"success_path"`
	CancelPath  string `json:"cancel_path"`

	// process_placement_fee
	MonthlyRent float64 `json:"monthly_rent"`
	PlacementID string  `json:"placement_id"` // also names the payout's placement

	// create_agent_payout
	AgentID          string  `json:"agent_id"`
	CommissionAmount float64 `json:"commission_amount"`
}

type CheckoutSessionRequest struct {
	Plan        string
	SuccessPath string
	CancelPath  string
}

type CheckoutSessionResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

type PlacementFeeRequest struct {
	MonthlyRent float64
	PlacementID string
}

type PlacementFeeResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type AgentPayoutRequest struct {
	AgentID          string
	PlacementID      string
	CommissionAmount float64
}

type AgentPayoutResponse struct {
	TransferID string `json:"transfer_id"`
}

const (
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
	EventPayoutCompleted  = "payout_completed"
)

// PaymentEvent is the message published to SNS on payment lifecycle changes.
type PaymentEvent struct {
	Type        string    `json:"type"`
	PaymentID   string    `json:"payment_id"`
	UserID      string    `json:"user_id"`
	PlacementID string    `json:"placement_id,omitempty"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}
