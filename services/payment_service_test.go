package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"placement-payment-service/config"
	"placement-payment-service/models"
	"placement-payment-service/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// ---- mock payment repository ----

type mockPaymentRepo struct {
	created      []*models.Payment
	createErr    error
	feeRecord    *models.Payment
	feeErr       error
	payoutRecord *models.Payment
	payoutErr    error
	byRefRecord  *models.Payment
	byRefErr     error
	updates      map[string]interface{}
	updateErr    error
}

func (m *mockPaymentRepo) Create(_ context.Context, p *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, p)
	return nil
}

func (m *mockPaymentRepo) FindByStripeRefID(_ context.Context, _ string) (*models.Payment, error) {
	return m.byRefRecord, m.byRefErr
}

func (m *mockPaymentRepo) FindPlacementFee(_ context.Context, _ string) (*models.Payment, error) {
	return m.feeRecord, m.feeErr
}

func (m *mockPaymentRepo) FindPayoutByPlacementID(_ context.Context, _ string) (*models.Payment, error) {
	return m.payoutRecord, m.payoutErr
}

func (m *mockPaymentRepo) UpdateStatus(_ context.Context, _ uuid.UUID, updates map[string]interface{}) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = updates
	return nil
}

// ---- mock customer mapping repository ----

type mockMappingRepo struct {
	existing       *models.CustomerMapping
	getErr         error
	raceWinner     *models.CustomerMapping // returned by GetOrCreate instead of the input
	getOrCreateErr error
	createCalls    int
}

func (m *mockMappingRepo) GetByUserID(_ context.Context, _ string) (*models.CustomerMapping, error) {
	return m.existing, m.getErr
}

func (m *mockMappingRepo) GetOrCreate(_ context.Context, mapping *models.CustomerMapping) (*models.CustomerMapping, error) {
	m.createCalls++
	if m.getOrCreateErr != nil {
		return nil, m.getOrCreateErr
	}
	if m.raceWinner != nil {
		return m.raceWinner, nil
	}
	return mapping, nil
}

// ---- mock agent profile repository ----

type mockAgentRepo struct {
	profile *models.AgentProfile
	err     error
}

func (m *mockAgentRepo) GetByUserID(_ context.Context, _ string) (*models.AgentProfile, error) {
	return m.profile, m.err
}

// ---- mock payment gateway ----

type mockGateway struct {
	customerID    string
	customerErr   error
	customerCalls int

	session      *services.CheckoutSession
	sessionErr   error
	sessionCalls int
	gotPlan      config.Plan
	gotSuccess   string
	gotCancel    string

	intent      *services.PaymentIntentResult
	intentErr   error
	intentCalls int
	gotAmount   int64
	gotMetadata map[string]string

	transferID       string
	transferErr      error
	transferCalls    int
	gotTransferCents int64
	gotDestination   string
	gotIdemKey       string
}

func (m *mockGateway) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	m.customerCalls++
	return m.customerID, m.customerErr
}

func (m *mockGateway) CreateSubscriptionCheckout(_ context.Context, _, _ string, plan config.Plan, successURL, cancelURL string) (*services.CheckoutSession, error) {
	m.sessionCalls++
	m.gotPlan = plan
	m.gotSuccess = successURL
	m.gotCancel = cancelURL
	return m.session, m.sessionErr
}

func (m *mockGateway) CreatePaymentIntent(_ context.Context, amount int64, _ string, metadata map[string]string) (*services.PaymentIntentResult, error) {
	m.intentCalls++
	m.gotAmount = amount
	m.gotMetadata = metadata
	return m.intent, m.intentErr
}

func (m *mockGateway) CreateTransfer(_ context.Context, amount int64, _, destination, idempotencyKey string, _ map[string]string) (string, error) {
	m.transferCalls++
	m.gotTransferCents = amount
	m.gotDestination = destination
	m.gotIdemKey = idempotencyKey
	return m.transferID, m.transferErr
}

// ---- mock lock store and publisher ----

type mockLocks struct {
	acquired bool
	err      error
	calls    int
	gotKey   string
}

func (m *mockLocks) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.calls++
	m.gotKey = key
	return m.acquired, m.err
}

type mockPublisher struct {
	published [][]byte
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, _ string, message []byte) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, message)
	return nil
}

// ---- helpers ----

type testDeps struct {
	payments  *mockPaymentRepo
	mappings  *mockMappingRepo
	agents    *mockAgentRepo
	gateway   *mockGateway
	locks     *mockLocks
	publisher *mockPublisher
}

func newTestService(t *testing.T, deps *testDeps) services.PaymentService {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	catalog, err := config.LoadPlanCatalog("")
	assert.NoError(t, err)
	return services.NewPaymentService(
		deps.payments, deps.mappings, deps.agents,
		deps.gateway, deps.locks, deps.publisher,
		"arn:aws:sns:us-east-1:000000000000:payment-events",
		catalog, "usd", "https://app.example.com", logger,
	)
}

func defaultDeps() *testDeps {
	return &testDeps{
		payments:  &mockPaymentRepo{},
		mappings:  &mockMappingRepo{},
		agents:    &mockAgentRepo{},
		gateway:   &mockGateway{},
		locks:     &mockLocks{acquired: true},
		publisher: &mockPublisher{},
	}
}

func completedFee(placementID string, amount, commission int64) *models.Payment {
	revenue := amount - commission
	ref := "pi_test_123"
	return &models.Payment{
		ID:              uuid.New(),
		UserID:          "family-1",
		PlacementID:     placementID,
		StripeRefID:     &ref,
		Amount:          amount,
		Currency:        "usd",
		PaymentType:     models.PaymentTypePlacementFee,
		Status:          models.PaymentStatusCompleted,
		AgentCommission: &commission,
		PlatformRevenue: &revenue,
	}
}

// ---- create_subscription_checkout ----

func TestCreateCheckoutSession_UnknownPlan(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	resp, serr := svc.CreateCheckoutSession(context.Background(), "user-1", "u@example.com", "",
		&models.CheckoutSessionRequest{Plan: "nonexistent_plan"})

	assert.Nil(t, resp)
	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindValidation, serr.Kind)
	// Rejected before any remote call.
	assert.Equal(t, 0, deps.gateway.customerCalls)
	assert.Equal(t, 0, deps.gateway.sessionCalls)
}

func TestCreateCheckoutSession_NewCustomer(t *testing.T) {
	deps := defaultDeps()
	deps.gateway.customerID = "cus_new"
	deps.gateway.session = &services.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}
	svc := newTestService(t, deps)

	resp, serr := svc.CreateCheckoutSession(context.Background(), "user-1", "u@example.com", "https://app.example.com",
		&models.CheckoutSessionRequest{Plan: "agent"})

	assert.Nil(t, serr)
	assert.Equal(t, "https://checkout.stripe.com/cs_1", resp.CheckoutURL)
	assert.Equal(t, 1, deps.gateway.customerCalls)
	assert.Equal(t, 1, deps.mappings.createCalls)
	assert.Equal(t, "agent", deps.gateway.gotPlan.Key)
	assert.Equal(t, int64(9900), deps.gateway.gotPlan.AmountCents)
	assert.Equal(t, "https://app.example.com/dashboard/billing?checkout=success", deps.gateway.gotSuccess)
}

func TestCreateCheckoutSession_ExistingCustomerReused(t *testing.T) {
	deps := defaultDeps()
	deps.mappings.existing = &models.CustomerMapping{UserID: "user-1", StripeCustomerID: "cus_existing"}
	deps.gateway.session = &services.CheckoutSession{ID: "cs_2", URL: "https://checkout.stripe.com/cs_2"}
	svc := newTestService(t, deps)

	resp, serr := svc.CreateCheckoutSession(context.Background(), "user-1", "u@example.com", "",
		&models.CheckoutSessionRequest{Plan: "family"})

	assert.Nil(t, serr)
	assert.NotNil(t, resp)
	assert.Equal(t, 0, deps.gateway.customerCalls)
	assert.Equal(t, 0, deps.mappings.createCalls)
}

func TestCreateCheckoutSession_ConcurrentMappingRace(t *testing.T) {
	deps := defaultDeps()
	deps.gateway.customerID = "cus_loser"
	deps.mappings.raceWinner = &models.CustomerMapping{UserID: "user-1", StripeCustomerID: "cus_winner"}
	deps.gateway.session = &services.CheckoutSession{ID: "cs_3", URL: "https://checkout.stripe.com/cs_3"}
	svc := newTestService(t, deps)

	_, serr := svc.CreateCheckoutSession(context.Background(), "user-1", "u@example.com", "",
		&models.CheckoutSessionRequest{Plan: "family"})

	assert.Nil(t, serr)
	// Only one mapping exists; the session uses the winner's customer.
	assert.Equal(t, 1, deps.mappings.createCalls)
}

func TestCreateCheckoutSession_AbsoluteRedirectRejected(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	_, serr := svc.CreateCheckoutSession(context.Background(), "user-1", "u@example.com", "",
		&models.CheckoutSessionRequest{Plan: "family", SuccessPath: "https://evil.example.com/phish"})

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindValidation, serr.Kind)
	assert.Equal(t, 0, deps.gateway.sessionCalls)
}

func TestCreateCheckoutSession_StripeFailure(t *testing.T) {
	deps := defaultDeps()
	deps.mappings.existing = &models.CustomerMapping{UserID: "user-1", StripeCustomerID: "cus_1"}
	deps.gateway.sessionErr = errors.New("stripe unavailable")
	svc := newTestService(t, deps)

	_, serr := svc.CreateCheckoutSession(context.Background(), "user-1", "u@example.com", "",
		&models.CheckoutSessionRequest{Plan: "family"})

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindUpstream, serr.Kind)
	assert.Equal(t, http.StatusBadGateway, serr.StatusCode)
}

// ---- process_placement_fee ----

func TestProcessPlacementFee_Success(t *testing.T) {
	deps := defaultDeps()
	deps.gateway.intent = &services.PaymentIntentResult{ID: "pi_1", ClientSecret: "pi_1_secret"}
	svc := newTestService(t, deps)

	resp, serr := svc.ProcessPlacementFee(context.Background(), "family-1",
		&models.PlacementFeeRequest{MonthlyRent: 3500.00, PlacementID: "pl-1"})

	assert.Nil(t, serr)
	assert.Equal(t, "pi_1", resp.PaymentIntentID)
	assert.Equal(t, "pi_1_secret", resp.ClientSecret)

	// 3500.00 dollars goes to the processor as 350000 cents.
	assert.Equal(t, int64(350000), deps.gateway.gotAmount)
	assert.Equal(t, "280000", deps.gateway.gotMetadata["agent_commission"])
	assert.Equal(t, "70000", deps.gateway.gotMetadata["platform_revenue"])
	assert.Equal(t, "pl-1", deps.gateway.gotMetadata["placement_id"])

	assert.Len(t, deps.payments.created, 1)
	rec := deps.payments.created[0]
	assert.Equal(t, models.PaymentStatusPending, rec.Status)
	assert.Equal(t, models.PaymentTypePlacementFee, rec.PaymentType)
	assert.Equal(t, int64(350000), rec.Amount)
	assert.Equal(t, int64(280000), *rec.AgentCommission)
	assert.Equal(t, int64(70000), *rec.PlatformRevenue)
	assert.Equal(t, rec.Amount, *rec.AgentCommission+*rec.PlatformRevenue)
}

func TestProcessPlacementFee_InvalidRent(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	for _, rent := range []float64{0, -100, 1000.005} {
		_, serr := svc.ProcessPlacementFee(context.Background(), "family-1",
			&models.PlacementFeeRequest{MonthlyRent: rent, PlacementID: "pl-1"})
		assert.NotNil(t, serr, "rent %v should be rejected", rent)
		assert.Equal(t, services.ErrKindValidation, serr.Kind)
	}
	assert.Equal(t, 0, deps.gateway.intentCalls)
}

func TestProcessPlacementFee_MissingPlacementID(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	_, serr := svc.ProcessPlacementFee(context.Background(), "family-1",
		&models.PlacementFeeRequest{MonthlyRent: 3500})

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindValidation, serr.Kind)
	assert.Equal(t, 0, deps.gateway.intentCalls)
}

func TestProcessPlacementFee_StripeFailureWritesNothing(t *testing.T) {
	deps := defaultDeps()
	deps.gateway.intentErr = errors.New("card network down")
	svc := newTestService(t, deps)

	_, serr := svc.ProcessPlacementFee(context.Background(), "family-1",
		&models.PlacementFeeRequest{MonthlyRent: 3500, PlacementID: "pl-1"})

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindUpstream, serr.Kind)
	assert.Len(t, deps.payments.created, 0)
}

func TestProcessPlacementFee_InsertFailureAfterIntent(t *testing.T) {
	deps := defaultDeps()
	deps.gateway.intent = &services.PaymentIntentResult{ID: "pi_orphan", ClientSecret: "sec"}
	deps.payments.createErr = errors.New("db down")
	svc := newTestService(t, deps)

	_, serr := svc.ProcessPlacementFee(context.Background(), "family-1",
		&models.PlacementFeeRequest{MonthlyRent: 3500, PlacementID: "pl-1"})

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindInternal, serr.Kind)
}

// ---- create_agent_payout ----

func payoutRequest() *models.AgentPayoutRequest {
	return &models.AgentPayoutRequest{
		AgentID:          "agent-1",
		PlacementID:      "pl-1",
		CommissionAmount: 2800.00,
	}
}

func connectedAgent() *models.AgentProfile {
	acct := "acct_agent1"
	return &models.AgentProfile{UserID: "agent-1", StripeAccountID: &acct}
}

func TestCreateAgentPayout_RequiresFinanceRole(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	for _, role := range []string{"", "agent", "family", "facility"} {
		_, serr := svc.CreateAgentPayout(context.Background(), "caller-1", role, payoutRequest())
		assert.NotNil(t, serr)
		assert.Equal(t, services.ErrKindAuth, serr.Kind)
		assert.Equal(t, http.StatusForbidden, serr.StatusCode)
	}
	assert.Equal(t, 0, deps.gateway.transferCalls)
	assert.Len(t, deps.payments.created, 0)
}

func TestCreateAgentPayout_Success(t *testing.T) {
	deps := defaultDeps()
	deps.payments.feeRecord = completedFee("pl-1", 350000, 280000)
	deps.agents.profile = connectedAgent()
	deps.gateway.transferID = "tr_1"
	svc := newTestService(t, deps)

	resp, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "finance", payoutRequest())

	assert.Nil(t, serr)
	assert.Equal(t, "tr_1", resp.TransferID)

	// 2800.00 dollars goes to the processor as 280000 cents.
	assert.Equal(t, int64(280000), deps.gateway.gotTransferCents)
	assert.Equal(t, "acct_agent1", deps.gateway.gotDestination)
	assert.Equal(t, "placement-payout:pl-1", deps.gateway.gotIdemKey)

	assert.Len(t, deps.payments.created, 1)
	rec := deps.payments.created[0]
	assert.Equal(t, models.PaymentTypeCommissionPayout, rec.PaymentType)
	assert.Equal(t, models.PaymentStatusCompleted, rec.Status)
	assert.Equal(t, int64(280000), rec.Amount)
	assert.Equal(t, "tr_1", *rec.TransferID)

	assert.Len(t, deps.publisher.published, 1)
}

func TestCreateAgentPayout_NoPlacementFee(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", payoutRequest())

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindValidation, serr.Kind)
	assert.Equal(t, 0, deps.gateway.transferCalls)
}

func TestCreateAgentPayout_FeeNotCompleted(t *testing.T) {
	deps := defaultDeps()
	fee := completedFee("pl-1", 350000, 280000)
	fee.Status = models.PaymentStatusPending
	deps.payments.feeRecord = fee
	svc := newTestService(t, deps)

	_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", payoutRequest())

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindValidation, serr.Kind)
	assert.Equal(t, 0, deps.gateway.transferCalls)
}

func TestCreateAgentPayout_CommissionMismatch(t *testing.T) {
	deps := defaultDeps()
	deps.payments.feeRecord = completedFee("pl-1", 350000, 280000)
	deps.agents.profile = connectedAgent()
	svc := newTestService(t, deps)

	req := payoutRequest()
	req.CommissionAmount = 3000.00 // caller asks for more than the recorded split

	_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", req)

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindValidation, serr.Kind)
	assert.Equal(t, 0, deps.gateway.transferCalls)
	assert.Len(t, deps.payments.created, 0)
}

func TestCreateAgentPayout_DuplicateRejected(t *testing.T) {
	deps := defaultDeps()
	deps.payments.feeRecord = completedFee("pl-1", 350000, 280000)
	deps.payments.payoutRecord = &models.Payment{
		PlacementID: "pl-1",
		PaymentType: models.PaymentTypeCommissionPayout,
		Status:      models.PaymentStatusCompleted,
	}
	deps.agents.profile = connectedAgent()
	svc := newTestService(t, deps)

	_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", payoutRequest())

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindConflict, serr.Kind)
	assert.Equal(t, 0, deps.gateway.transferCalls)
}

func TestCreateAgentPayout_LockBusy(t *testing.T) {
	deps := defaultDeps()
	deps.payments.feeRecord = completedFee("pl-1", 350000, 280000)
	deps.agents.profile = connectedAgent()
	deps.locks.acquired = false
	svc := newTestService(t, deps)

	_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", payoutRequest())

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindConflict, serr.Kind)
	assert.Equal(t, "payout:pl-1", deps.locks.gotKey)
	assert.Equal(t, 0, deps.gateway.transferCalls)
}

func TestCreateAgentPayout_NoConnectedAccount(t *testing.T) {
	deps := defaultDeps()
	deps.payments.feeRecord = completedFee("pl-1", 350000, 280000)
	svc := newTestService(t, deps)

	cases := []*models.AgentProfile{
		nil,
		{UserID: "agent-1"}, // onboarding never completed
	}
	for _, profile := range cases {
		deps.agents.profile = profile
		_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", payoutRequest())
		assert.NotNil(t, serr)
		assert.Equal(t, services.ErrKindValidation, serr.Kind)
		assert.Contains(t, serr.Message, "payout account")
	}
	assert.Equal(t, 0, deps.gateway.transferCalls)
	assert.Len(t, deps.payments.created, 0)
}

func TestCreateAgentPayout_TransferFailureWritesNothing(t *testing.T) {
	deps := defaultDeps()
	deps.payments.feeRecord = completedFee("pl-1", 350000, 280000)
	deps.agents.profile = connectedAgent()
	deps.gateway.transferErr = errors.New("insufficient balance")
	svc := newTestService(t, deps)

	_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", payoutRequest())

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindUpstream, serr.Kind)
	assert.Len(t, deps.payments.created, 0)
}

func TestCreateAgentPayout_InsertFailureAfterTransfer(t *testing.T) {
	deps := defaultDeps()
	deps.payments.feeRecord = completedFee("pl-1", 350000, 280000)
	deps.agents.profile = connectedAgent()
	deps.gateway.transferID = "tr_orphan"
	deps.payments.createErr = errors.New("db down")
	svc := newTestService(t, deps)

	_, serr := svc.CreateAgentPayout(context.Background(), "admin-1", "admin", payoutRequest())

	assert.NotNil(t, serr)
	assert.Equal(t, services.ErrKindInternal, serr.Kind)
	assert.Equal(t, 1, deps.gateway.transferCalls)
}

// ---- webhook finalization ----

func TestFinalizePlacementFee_PendingToCompleted(t *testing.T) {
	deps := defaultDeps()
	pending := completedFee("pl-1", 350000, 280000)
	pending.Status = models.PaymentStatusPending
	deps.payments.byRefRecord = pending
	svc := newTestService(t, deps)

	err := svc.FinalizePlacementFee(context.Background(), "pi_test_123", models.PaymentStatusCompleted, []byte(`{"id":"evt_1"}`))

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, deps.payments.updates["status"])
	assert.NotNil(t, deps.payments.updates["succeeded_at"])
	assert.Len(t, deps.publisher.published, 1)
}

func TestFinalizePlacementFee_DuplicateWebhookSkipped(t *testing.T) {
	deps := defaultDeps()
	deps.payments.byRefRecord = completedFee("pl-1", 350000, 280000) // already terminal
	svc := newTestService(t, deps)

	err := svc.FinalizePlacementFee(context.Background(), "pi_test_123", models.PaymentStatusCompleted, nil)

	assert.NoError(t, err)
	assert.Nil(t, deps.payments.updates)
	assert.Len(t, deps.publisher.published, 0)
}

func TestFinalizePlacementFee_UnknownIntentAcked(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	err := svc.FinalizePlacementFee(context.Background(), "pi_unknown", models.PaymentStatusFailed, nil)

	assert.NoError(t, err)
	assert.Nil(t, deps.payments.updates)
}

func TestFinalizePlacementFee_NonTerminalStatusRejected(t *testing.T) {
	deps := defaultDeps()
	svc := newTestService(t, deps)

	err := svc.FinalizePlacementFee(context.Background(), "pi_1", models.PaymentStatusPending, nil)

	assert.Error(t, err)
}
