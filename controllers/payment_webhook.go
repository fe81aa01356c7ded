package controllers

import (
	"encoding/json"
	"net/http"

	"placement-payment-service/models"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// StripeWebhook receives and dispatches Stripe webhook events. This is the
// only place pending placement fees transition to completed or failed.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	event, err := pc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		pc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook", "kind": "validation"})
		return
	}

	rawPayload, _ := json.Marshal(event)

	switch event.Type {
	case "payment_intent.succeeded":
		pc.finalizeIntent(c, event, models.PaymentStatusCompleted, rawPayload)
	case "payment_intent.payment_failed":
		pc.finalizeIntent(c, event, models.PaymentStatusFailed, rawPayload)
	case "checkout.session.completed":
		// Subscription checkouts have no local payment record; Stripe owns
		// the subscription lifecycle.
		pc.Logger.Info("Subscription checkout completed", zap.String("event_id", event.ID))
	default:
		pc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (pc *PaymentController) finalizeIntent(c *gin.Context, event stripe.Event, status string, rawPayload []byte) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		pc.Logger.Error("Failed to unmarshal payment intent", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	if err := pc.Service.FinalizePlacementFee(c.Request.Context(), pi.ID, status, rawPayload); err != nil {
		pc.Logger.Error("Failed to finalize placement fee",
			zap.String("payment_intent_id", pi.ID),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}
