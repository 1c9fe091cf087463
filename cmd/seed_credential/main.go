package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"parceltoken/internal/config"
	"parceltoken/internal/models"
	"parceltoken/internal/repositories"
	"parceltoken/internal/services/credential"
)

// Seeds an active credential for a user, for local development and
// demos. Skips issuance when the user already holds an active one.
func main() {
	config.LoadEnv()

	userIDRaw := os.Getenv("SEED_USER_ID")
	tier := os.Getenv("SEED_TIER")
	if userIDRaw == "" {
		log.Fatal("SEED_USER_ID must be set in environment")
	}
	if tier == "" {
		tier = models.TierBasic
	}
	userID, err := strconv.ParseUint(userIDRaw, 10, 32)
	if err != nil {
		log.Fatalf("Invalid SEED_USER_ID: %v", err)
	}

	db, err := repositories.InitDB(repositories.DefaultDBConfig())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		sqlDB, err := db.DB()
		if err != nil {
			log.Printf("Failed to get SQL DB instance: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			log.Printf("Failed to close PostgreSQL connection: %v", err)
		}
	}()

	repo := repositories.NewCredentialRepository(db)
	service := credential.NewService(repo, nil, nil, credential.Config{
		Issuer: config.GetEnv("CREDENTIAL_ISSUER", "parceltoken"),
		Secret: config.GetEnv("CREDENTIAL_SECRET", "parceltoken-dev-secret"),
	})

	ctx := context.Background()
	existing, err := repo.ListByUser(ctx, uint(userID))
	if err != nil {
		log.Fatalf("Failed to list credentials: %v", err)
	}
	for _, cred := range existing {
		if cred.Status == models.CredentialStatusActive {
			log.Printf("User %d already holds active credential %s", userID, cred.ID)
			return
		}
	}

	cred, signed, err := service.Issue(ctx, credential.IssueRequest{
		UserID: uint(userID),
		Tier:   tier,
	})
	if err != nil {
		log.Fatalf("Failed to issue credential: %v", err)
	}

	log.Printf("Credential %s issued for user %d (tier %s)", cred.ID, userID, tier)
	log.Printf("Signed token: %s", signed)
}
