package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"placement-payment-service/config"
	"placement-payment-service/events"
	"placement-payment-service/models"
	"placement-payment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Error kinds surfaced to clients so the UI can react per failure class.
const (
	ErrKindAuth       = "auth"
	ErrKindValidation = "validation"
	ErrKindConflict   = "conflict"
	ErrKindUpstream   = "upstream"
	ErrKindInternal   = "internal"
)

// ServiceError is a typed error with an error kind and HTTP status code.
type ServiceError struct {
	Kind       string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

func forbiddenError(msg string) *ServiceError {
	return &ServiceError{Kind: ErrKindAuth, StatusCode: http.StatusForbidden, Message: msg}
}

func validationError(msg string) *ServiceError {
	return &ServiceError{Kind: ErrKindValidation, StatusCode: http.StatusBadRequest, Message: msg}
}

func conflictError(msg string) *ServiceError {
	return &ServiceError{Kind: ErrKindConflict, StatusCode: http.StatusConflict, Message: msg}
}

func upstreamError(msg string) *ServiceError {
	return &ServiceError{Kind: ErrKindUpstream, StatusCode: http.StatusBadGateway, Message: msg}
}

func internalError(msg string) *ServiceError {
	return &ServiceError{Kind: ErrKindInternal, StatusCode: http.StatusInternalServerError, Message: msg}
}

const payoutLockTTL = 10 * time.Minute

// PaymentService implements the placement-fee payment workflow.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, userID, email, origin string, req *models.CheckoutSessionRequest) (*models.CheckoutSessionResponse, *ServiceError)
	ProcessPlacementFee(ctx context.Context, userID string, req *models.PlacementFeeRequest) (*models.PlacementFeeResponse, *ServiceError)
	CreateAgentPayout(ctx context.Context, callerID, callerRole string, req *models.AgentPayoutRequest) (*models.AgentPayoutResponse, *ServiceError)
	// FinalizePlacementFee applies a processor-confirmed terminal status to a
	// pending placement-fee record. Idempotent to replayed notifications.
	FinalizePlacementFee(ctx context.Context, paymentIntentID, status string, rawEvent []byte) error
}

type paymentServiceImpl struct {
	payments    repository.PaymentRepository
	mappings    repository.CustomerMappingRepository
	agents      repository.AgentProfileRepository
	gateway     PaymentGateway
	locks       LockStore
	publisher   events.Publisher
	topicArn    string
	catalog     *config.PlanCatalog
	currency    string
	frontendURL string
	logger      *zap.Logger
}

func NewPaymentService(
	payments repository.PaymentRepository,
	mappings repository.CustomerMappingRepository,
	agents repository.AgentProfileRepository,
	gateway PaymentGateway,
	locks LockStore,
	publisher events.Publisher,
	topicArn string,
	catalog *config.PlanCatalog,
	currency string,
	frontendURL string,
	logger *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		payments:    payments,
		mappings:    mappings,
		agents:      agents,
		gateway:     gateway,
		locks:       locks,
		publisher:   publisher,
		topicArn:    topicArn,
		catalog:     catalog,
		currency:    currency,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// CreateCheckoutSession starts a hosted subscription checkout for one of the
// catalog plans, lazily creating the Stripe customer for the user.
func (s *paymentServiceImpl) CreateCheckoutSession(ctx context.Context, userID, email, origin string, req *models.CheckoutSessionRequest) (*models.CheckoutSessionResponse, *ServiceError) {
	plan, ok := s.catalog.Get(req.Plan)
	if !ok {
		return nil, validationError(fmt.Sprintf("unknown subscription plan %q", req.Plan))
	}

	successURL, cancelURL, serr := s.redirectURLs(origin, req.SuccessPath, req.CancelPath)
	if serr != nil {
		return nil, serr
	}

	customerID, serr := s.getOrCreateCustomer(ctx, userID, email)
	if serr != nil {
		return nil, serr
	}

	sess, err := s.gateway.CreateSubscriptionCheckout(ctx, customerID, s.currency, plan, successURL, cancelURL)
	if err != nil {
		s.logger.Error("Checkout session creation failed",
			zap.String("user_id", userID),
			zap.String("plan", plan.Key),
			zap.Error(err),
		)
		return nil, upstreamError("failed to create checkout session")
	}

	s.logger.Info("Checkout session created",
		zap.String("user_id", userID),
		zap.String("plan", plan.Key),
		zap.String("session_id", sess.ID),
	)
	return &models.CheckoutSessionResponse{CheckoutURL: sess.URL}, nil
}

func (s *paymentServiceImpl) redirectURLs(origin, successPath, cancelPath string) (string, string, *ServiceError) {
	base := strings.TrimSuffix(origin, "/")
	if base == "" {
		base = strings.TrimSuffix(s.frontendURL, "/")
	}
	if successPath == "" {
		successPath = "/dashboard/billing?checkout=success"
	}
	if cancelPath == "" {
		cancelPath = "/dashboard/billing?checkout=cancelled"
	}
	// Paths are origin-relative; absolute URLs would allow redirecting the
	// hosted checkout to an arbitrary site.
	if !strings.HasPrefix(successPath, "/") || !strings.HasPrefix(cancelPath, "/") {
		return "", "", validationError("redirect paths must be origin-relative")
	}
	return base + successPath, base + cancelPath, nil
}

func (s *paymentServiceImpl) getOrCreateCustomer(ctx context.Context, userID, email string) (string, *ServiceError) {
	existing, err := s.mappings.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Customer mapping lookup failed", zap.String("user_id", userID), zap.Error(err))
		return "", internalError("failed to look up customer record")
	}
	if existing != nil {
		return existing.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, userID)
	if err != nil {
		s.logger.Error("Stripe customer creation failed", zap.String("user_id", userID), zap.Error(err))
		return "", upstreamError("failed to create customer record")
	}

	mapping, err := s.mappings.GetOrCreate(ctx, &models.CustomerMapping{
		ID:               uuid.New(),
		UserID:           userID,
		StripeCustomerID: customerID,
		Email:            email,
	})
	if err != nil {
		s.logger.Error("Customer mapping insert failed",
			zap.String("user_id", userID),
			zap.String("stripe_customer_id", customerID),
			zap.Error(err),
		)
		return "", internalError("failed to save customer record")
	}
	if mapping.StripeCustomerID != customerID {
		// A concurrent checkout won the insert; our customer is orphaned on
		// the Stripe side, which is harmless.
		s.logger.Warn("Concurrent customer creation, using existing mapping",
			zap.String("user_id", userID),
			zap.String("orphaned_customer_id", customerID),
		)
	}
	return mapping.StripeCustomerID, nil
}

// ProcessPlacementFee creates a PaymentIntent for a placement fee equal to
// one month's rent and records it locally as pending. Card collection happens
// client-side with the returned client secret; the webhook finalizes the
// record.
func (s *paymentServiceImpl) ProcessPlacementFee(ctx context.Context, userID string, req *models.PlacementFeeRequest) (*models.PlacementFeeResponse, *ServiceError) {
	if req.PlacementID == "" {
		return nil, validationError("placement_id is required")
	}
	feeCents, err := ToMinorUnits(req.MonthlyRent)
	if err != nil {
		return nil, validationError(fmt.Sprintf("invalid monthly_rent: %v", err))
	}

	agentCommission, platformRevenue := SplitCommission(feeCents)

	intent, err := s.gateway.CreatePaymentIntent(ctx, feeCents, s.currency, map[string]string{
		"placement_id":     req.PlacementID,
		"agent_commission": strconv.FormatInt(agentCommission, 10),
		"platform_revenue": strconv.FormatInt(platformRevenue, 10),
	})
	if err != nil {
		s.logger.Error("PaymentIntent creation failed",
			zap.String("user_id", userID),
			zap.String("placement_id", req.PlacementID),
			zap.Error(err),
		)
		return nil, upstreamError("failed to create payment intent")
	}

	payment := &models.Payment{
		UserID:          userID,
		PlacementID:     req.PlacementID,
		StripeRefID:     &intent.ID,
		Amount:          feeCents,
		Currency:        s.currency,
		PaymentType:     models.PaymentTypePlacementFee,
		Status:          models.PaymentStatusPending,
		AgentCommission: &agentCommission,
		PlatformRevenue: &platformRevenue,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		// The intent exists remotely with no local record. Log the intent ID
		// so reconciliation can find it.
		s.logger.Error("Placement fee record insert failed after intent creation",
			zap.String("user_id", userID),
			zap.String("placement_id", req.PlacementID),
			zap.String("payment_intent_id", intent.ID),
			zap.Error(err),
		)
		return nil, internalError("failed to record placement fee")
	}

	s.logger.Info("Placement fee intent created",
		zap.String("user_id", userID),
		zap.String("placement_id", req.PlacementID),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", feeCents),
		zap.Int64("agent_commission", agentCommission),
	)
	return &models.PlacementFeeResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// CreateAgentPayout transfers the agent's commission for a completed
// placement fee to their connected account. The amount is derived from the
// placement-fee record; the caller-supplied amount is only cross-checked.
func (s *paymentServiceImpl) CreateAgentPayout(ctx context.Context, callerID, callerRole string, req *models.AgentPayoutRequest) (*models.AgentPayoutResponse, *ServiceError) {
	if callerRole != "admin" && callerRole != "finance" {
		s.logger.Warn("Payout attempt without finance role",
			zap.String("caller_id", callerID),
			zap.String("caller_role", callerRole),
		)
		return nil, forbiddenError("payouts require an admin or finance role")
	}
	if req.AgentID == "" || req.PlacementID == "" {
		return nil, validationError("agent_id and placement_id are required")
	}
	requestedCents, err := ToMinorUnits(req.CommissionAmount)
	if err != nil {
		return nil, validationError(fmt.Sprintf("invalid commission_amount: %v", err))
	}

	fee, err := s.payments.FindPlacementFee(ctx, req.PlacementID)
	if err != nil {
		s.logger.Error("Placement fee lookup failed", zap.String("placement_id", req.PlacementID), zap.Error(err))
		return nil, internalError("failed to look up placement fee")
	}
	if fee == nil {
		return nil, validationError(fmt.Sprintf("no placement fee recorded for placement %q", req.PlacementID))
	}
	if fee.Status != models.PaymentStatusCompleted {
		return nil, validationError(fmt.Sprintf("placement fee for %q is %s, not completed", req.PlacementID, fee.Status))
	}
	if fee.AgentCommission == nil {
		return nil, internalError("placement fee record has no commission split")
	}
	if *fee.AgentCommission != requestedCents {
		return nil, validationError(fmt.Sprintf(
			"commission_amount %d does not match recorded commission %d", requestedCents, *fee.AgentCommission))
	}

	existing, err := s.payments.FindPayoutByPlacementID(ctx, req.PlacementID)
	if err != nil {
		s.logger.Error("Payout lookup failed", zap.String("placement_id", req.PlacementID), zap.Error(err))
		return nil, internalError("failed to check for existing payout")
	}
	if existing != nil {
		return nil, conflictError(fmt.Sprintf("payout already issued for placement %q", req.PlacementID))
	}

	acquired, err := s.locks.Acquire(ctx, "payout:"+req.PlacementID, payoutLockTTL)
	if err != nil {
		s.logger.Error("Payout lock failed", zap.String("placement_id", req.PlacementID), zap.Error(err))
		return nil, internalError("failed to acquire payout lock")
	}
	if !acquired {
		return nil, conflictError("a payout for this placement is already in progress")
	}

	profile, err := s.agents.GetByUserID(ctx, req.AgentID)
	if err != nil {
		s.logger.Error("Agent profile lookup failed", zap.String("agent_id", req.AgentID), zap.Error(err))
		return nil, internalError("failed to look up agent profile")
	}
	if profile == nil || profile.StripeAccountID == nil || *profile.StripeAccountID == "" {
		return nil, validationError("agent has not connected a payout account")
	}

	commission := *fee.AgentCommission
	transferID, err := s.gateway.CreateTransfer(ctx, commission, s.currency, *profile.StripeAccountID,
		"placement-payout:"+req.PlacementID,
		map[string]string{
			"placement_id": req.PlacementID,
			"agent_id":     req.AgentID,
		})
	if err != nil {
		s.logger.Error("Transfer creation failed",
			zap.String("placement_id", req.PlacementID),
			zap.String("agent_id", req.AgentID),
			zap.Error(err),
		)
		return nil, upstreamError("failed to create payout transfer")
	}

	now := time.Now()
	payout := &models.Payment{
		UserID:      req.AgentID,
		PlacementID: req.PlacementID,
		StripeRefID: &transferID,
		Amount:      commission,
		Currency:    s.currency,
		PaymentType: models.PaymentTypeCommissionPayout,
		Status:      models.PaymentStatusCompleted,
		TransferID:  &transferID,
		SucceededAt: &now,
	}
	if err := s.payments.Create(ctx, payout); err != nil {
		// Money has moved. Log the transfer ID so reconciliation can find it;
		// the lock and the Stripe idempotency key keep a retry from paying twice.
		s.logger.Error("Payout record insert failed after transfer",
			zap.String("placement_id", req.PlacementID),
			zap.String("agent_id", req.AgentID),
			zap.String("transfer_id", transferID),
			zap.Error(err),
		)
		return nil, internalError("transfer created but failed to record payout")
	}

	s.logger.Info("Agent payout completed",
		zap.String("placement_id", req.PlacementID),
		zap.String("agent_id", req.AgentID),
		zap.String("transfer_id", transferID),
		zap.Int64("amount", commission),
	)
	s.publishEvent(ctx, models.PaymentEvent{
		Type:        models.EventPayoutCompleted,
		PaymentID:   payout.ID.String(),
		UserID:      req.AgentID,
		PlacementID: req.PlacementID,
		Amount:      commission,
		Currency:    s.currency,
		Timestamp:   now.UTC(),
	})

	return &models.AgentPayoutResponse{TransferID: transferID}, nil
}

// FinalizePlacementFee moves a pending placement-fee record to a terminal
// status on a processor notification. Unknown intents and already-terminal
// records are acknowledged without change.
func (s *paymentServiceImpl) FinalizePlacementFee(ctx context.Context, paymentIntentID, status string, rawEvent []byte) error {
	if !models.IsTerminalStatus(status) {
		return fmt.Errorf("status %q is not terminal", status)
	}

	payment, err := s.payments.FindByStripeRefID(ctx, paymentIntentID)
	if err != nil {
		return fmt.Errorf("look up payment for intent %s: %w", paymentIntentID, err)
	}
	if payment == nil {
		s.logger.Warn("Webhook for unknown payment intent", zap.String("payment_intent_id", paymentIntentID))
		return nil
	}
	if models.IsTerminalStatus(payment.Status) {
		s.logger.Info("Skipping duplicate payment webhook",
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", payment.Status),
		)
		return nil
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":               status,
		"stripe_event_payload": string(rawEvent),
		"updated_at":           now,
	}
	switch status {
	case models.PaymentStatusCompleted:
		updates["succeeded_at"] = &now
	case models.PaymentStatusFailed:
		updates["failed_at"] = &now
	}
	if err := s.payments.UpdateStatus(ctx, payment.ID, updates); err != nil {
		return fmt.Errorf("update payment %s: %w", payment.ID, err)
	}

	eventType := models.EventPaymentCompleted
	if status == models.PaymentStatusFailed {
		eventType = models.EventPaymentFailed
	}
	s.publishEvent(ctx, models.PaymentEvent{
		Type:        eventType,
		PaymentID:   payment.ID.String(),
		UserID:      payment.UserID,
		PlacementID: payment.PlacementID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Timestamp:   now.UTC(),
	})

	s.logger.Info("Placement fee finalized",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", status),
	)
	return nil
}

// publishEvent sends a payment lifecycle event to SNS. Publish failures are
// logged, not propagated; the local record is the source of truth.
func (s *paymentServiceImpl) publishEvent(ctx context.Context, event models.PaymentEvent) {
	payload, _ := json.Marshal(event)
	if err := s.publisher.Publish(ctx, s.topicArn, payload); err != nil {
		s.logger.Error("Failed to publish payment event",
			zap.String("event_type", event.Type),
			zap.String("payment_id", event.PaymentID),
			zap.Error(err),
		)
	}
}
