// Package routes defines the API routing configuration. It wires
// repositories into services and services into handlers, then mounts
// every route group on the fiber app.
package routes

import (
	"parceltoken/internal/config"
	"parceltoken/internal/handlers"
	"parceltoken/internal/models"
	"parceltoken/internal/rails"
	"parceltoken/internal/repositories"
	"parceltoken/internal/services/collections"
	"parceltoken/internal/services/credential"
	"parceltoken/internal/services/payment"
	"parceltoken/internal/services/risk"
	"parceltoken/internal/services/router"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes. The credential cache
// is optional; pass nil to run without Redis. The returned risk
// service is handed back so main can run the history prune ticker.
func SetupRoutes(app *fiber.App, db *gorm.DB, credCache credential.Cache) *risk.Service {
	// Repositories
	credRepo := repositories.NewCredentialRepository(db)
	installmentRepo := repositories.NewInstallmentRepository(db)

	// Credential manager
	credService := credential.NewService(credRepo, credCache, nil, credential.Config{
		ValidityDays:      config.GetIntEnv("CREDENTIAL_VALIDITY_DAYS", 90),
		RenewalNoticeDays: config.GetIntEnv("CREDENTIAL_RENEWAL_NOTICE_DAYS", 7),
		Issuer:            config.GetEnv("CREDENTIAL_ISSUER", "parceltoken"),
		Secret:            config.GetEnv("CREDENTIAL_SECRET", "parceltoken-dev-secret"),
	})

	// Risk engine
	riskService := risk.NewService(risk.Config{
		VelocityThreshold:    config.GetIntEnv("RISK_VELOCITY_THRESHOLD", 0),
		MaxTransactionAmount: int64(config.GetIntEnv("RISK_MAX_TRANSACTION_AMOUNT", 0)),
		DailyAmountCap:       int64(config.GetIntEnv("RISK_DAILY_AMOUNT_CAP", 0)),
		HistoryRetention:     config.GetDurationEnv("RISK_HISTORY_RETENTION", 0),
	})

	// Payment router: in-house rails settle on the ledger, CARD goes
	// out through Stripe.
	ledger := rails.NewLedgerExecutor()
	dispatcher := rails.NewDispatcher()
	dispatcher.Register(models.RailPix, ledger)
	dispatcher.Register(models.RailParcelToken, ledger)
	dispatcher.Register(models.RailBoleto, ledger)
	if stripeKey := config.GetEnv("STRIPE_SECRET_KEY", ""); stripeKey != "" {
		dispatcher.Register(models.RailCard, rails.NewStripeExecutor(stripeKey, config.GetEnv("STRIPE_CURRENCY", "brl")))
	}

	reconciler := payment.NewReconciler(nil)
	routerService := router.NewService(nil, dispatcher, reconciler, router.Config{})

	// Orchestrator and collections engine
	paymentService := payment.NewService(riskService, credService, routerService, installmentRepo, nil)
	collectionsService := collections.NewService(installmentRepo, nil, nil, collections.Config{
		DailyInterestRate: config.GetFloatEnv("COLLECTIONS_DAILY_INTEREST_RATE", 0),
		Surcharge:         config.GetFloatEnv("COLLECTIONS_RENEGOTIATION_SURCHARGE", 0),
	})

	// Handlers
	credHandler := handlers.NewCredentialHandler(credService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, routerService)
	collectionsHandler := handlers.NewCollectionsHandler(collectionsService, installmentRepo)
	riskHandler := handlers.NewRiskHandler(riskService)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "ParcelToken API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})
	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api")

	credentials := api.Group("/credentials")
	credentials.Post("/", credHandler.Issue)
	credentials.Post("/validate", credHandler.Validate)
	credentials.Post("/:id/activate", credHandler.Activate)
	credentials.Post("/:id/renew", credHandler.Renew)
	credentials.Delete("/:id", credHandler.Revoke)
	credentials.Get("/:id/availability", credHandler.Availability)
	credentials.Get("/:id/history", credHandler.History)

	payments := api.Group("/payments")
	payments.Post("/", paymentHandler.Process)
	payments.Get("/recommend", paymentHandler.Recommend)
	payments.Get("/rails/costs", paymentHandler.RailCosts)

	installments := api.Group("/installments")
	installments.Get("/user/:userId", collectionsHandler.ListByUser)
	installments.Get("/:id/due", collectionsHandler.GetTotalDue)
	installments.Post("/:id/pay", collectionsHandler.Pay)
	installments.Post("/:id/renegotiate", collectionsHandler.Renegotiate)

	collectionsGroup := api.Group("/collections")
	collectionsGroup.Get("/metrics", collectionsHandler.Metrics)
	collectionsGroup.Get("/delinquency", collectionsHandler.Delinquency)
	collectionsGroup.Post("/reminders", collectionsHandler.SendReminders)

	riskGroup := api.Group("/risk")
	riskGroup.Post("/blacklist", riskHandler.Blacklist)
	riskGroup.Delete("/blacklist", riskHandler.Unblacklist)
	riskGroup.Get("/history/:userId", riskHandler.History)

	return riskService
}
