package routes

import (
	"net/http"

	"placement-payment-service/controllers"
	"placement-payment-service/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, jwtSecret string) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware(jwtSecret))
	payments.POST("", pc.Execute)

	// Stripe webhook (signature-verified, no bearer auth)
	r.POST("/stripe/webhook", pc.StripeWebhook)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
