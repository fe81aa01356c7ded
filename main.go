package main

import (
	"context"
	"log"

	"placement-payment-service/config"
	"placement-payment-service/controllers"
	"placement-payment-service/database"
	"placement-payment-service/events"
	"placement-payment-service/middleware"
	"placement-payment-service/models"
	"placement-payment-service/repository"
	"placement-payment-service/routes"
	"placement-payment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[PlacementPayments] Failed to load config: ", err)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("[PlacementPayments] Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	catalog, err := config.LoadPlanCatalog(cfg.PlanCatalogFile)
	if err != nil {
		log.Fatal("[PlacementPayments] Failed to load plan catalog: ", err)
	}

	db, err := database.ConnectPostgres(cfg, logger,
		&models.Payment{}, &models.CustomerMapping{}, &models.AgentProfile{})
	if err != nil {
		log.Fatal("[PlacementPayments] Failed to connect to DB: ", err)
	}

	redisClient := database.NewRedisClient(cfg)

	awsCfg, err := events.LoadAWSConfig(context.Background())
	if err != nil {
		log.Fatal("[PlacementPayments] Failed to load AWS config: ", err)
	}
	publisher := events.NewSNSPublisher(awsCfg)

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	paymentSvc := services.NewPaymentService(
		repository.NewGormPaymentRepo(db),
		repository.NewGormCustomerMappingRepo(db),
		repository.NewGormAgentProfileRepo(db),
		stripeSvc,
		services.NewRedisLockStore(redisClient),
		publisher,
		cfg.PaymentEventsTopicARN,
		catalog,
		cfg.Currency,
		cfg.FrontendURL,
		logger,
	)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RateLimitMiddleware())

	pc := controllers.NewPaymentController(paymentSvc, stripeSvc, logger)
	routes.RegisterPaymentRoutes(r, pc, cfg.JWTSecret)

	logger.Info("Placement payment service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[PlacementPayments] Server failed: ", err)
	}
}
