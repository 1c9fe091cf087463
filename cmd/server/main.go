// Package main is the entry point for the application.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"log"
	"time"

	"parceltoken/internal/config"
	"parceltoken/internal/repositories"
	"parceltoken/internal/repositories/cache"
	"parceltoken/internal/routes"
	"parceltoken/internal/services/credential"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	// Initialize PostgreSQL
	db, err := repositories.InitDB(repositories.DefaultDBConfig())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database with connection pooling")

	// Optional Redis-backed credential cache
	var credCache credential.Cache
	if host := config.GetEnv("REDIS_HOST", ""); host != "" {
		client := cache.NewRedisClient(&cache.RedisConfig{
			Host:     host,
			Port:     config.GetEnv("REDIS_PORT", "6379"),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetIntEnv("REDIS_DB", 0),
		})
		credentialCache := cache.NewCredentialCache(client, config.GetDurationEnv("CREDENTIAL_CACHE_TTL", 5*time.Minute))
		if err := credentialCache.HealthCheck(context.Background()); err != nil {
			log.Printf("Redis unreachable, running without credential cache: %v", err)
		} else {
			credCache = credentialCache
			defer credentialCache.Close()
			log.Println("Credential cache connected")
		}
	}

	// Create Fiber app
	app := fiber.New()

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/payments", limiter.New(limiter.Config{
		Max:        config.GetIntEnv("PAYMENT_RATE_LIMIT", 60),
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	// Routes
	riskService := routes.SetupRoutes(app, db, credCache)

	// Prune the risk engine's rolling history periodically so it stays
	// bounded to the retention window.
	go func() {
		ticker := time.NewTicker(config.GetDurationEnv("RISK_PRUNE_INTERVAL", time.Hour))
		defer ticker.Stop()
		for range ticker.C {
			if pruned := riskService.Prune(time.Now()); pruned > 0 {
				log.Printf("Risk history pruned: %d events dropped", pruned)
			}
		}
	}()

	// Start server
	log.Fatal(app.Listen(":" + config.GetEnv("PORT", "3000")))
}
