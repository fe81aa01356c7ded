package controllers

import (
	"net/http"

	"placement-payment-service/middleware"
	"placement-payment-service/models"
	"placement-payment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentController struct {
	Service services.PaymentService
	Stripe  *services.StripeService
	Logger  *zap.Logger
}

func NewPaymentController(service services.PaymentService, stripe *services.StripeService, logger *zap.Logger) *PaymentController {
	return &PaymentController{Service: service, Stripe: stripe, Logger: logger}
}

// Execute dispatches a payment action. The body carries an action name plus
// action-specific fields; the caller's identity comes from the auth middleware.
func (pc *PaymentController) Execute(c *gin.Context) {
	var req models.PaymentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": services.ErrKindValidation})
		return
	}

	userID := middleware.GetUserID(c)
	ctx := c.Request.Context()

	switch req.Action {
	case models.ActionCreateSubscriptionCheckout:
		resp, serr := pc.Service.CreateCheckoutSession(ctx, userID, middleware.GetUserEmail(c), c.GetHeader("Origin"),
			&models.CheckoutSessionRequest{
				Plan:        req.Plan,
				SuccessPath: req.SuccessPath,
				CancelPath:  req.CancelPath,
			})
		pc.respond(c, resp, serr)

	case models.ActionProcessPlacementFee:
		resp, serr := pc.Service.ProcessPlacementFee(ctx, userID,
			&models.PlacementFeeRequest{
				MonthlyRent: req.MonthlyRent,
				PlacementID: req.PlacementID,
			})
		pc.respond(c, resp, serr)

	case models.ActionCreateAgentPayout:
		resp, serr := pc.Service.CreateAgentPayout(ctx, userID, middleware.GetUserRole(c),
			&models.AgentPayoutRequest{
				AgentID:          req.AgentID,
				PlacementID:      req.PlacementID,
				CommissionAmount: req.CommissionAmount,
			})
		pc.respond(c, resp, serr)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action", "kind": services.ErrKindValidation})
	}
}

func (pc *PaymentController) respond(c *gin.Context, payload interface{}, serr *services.ServiceError) {
	if serr != nil {
		c.JSON(serr.StatusCode, gin.H{"error": serr.Message, "kind": serr.Kind})
		return
	}
	c.JSON(http.StatusOK, payload)
}
