package payment

import (
	"context"

	"parceltoken/internal/models"
	"parceltoken/internal/services/credential"
)

// RiskChecker gates every payment attempt. The concrete implementation
// is the risk engine; checking has the side effect of recording the
// attempt in the rolling history.
type RiskChecker interface {
	Check(ctx models.RiskContext) models.RiskResult
}

// CredentialManager validates credentials and accounts their usage.
type CredentialManager interface {
	Validate(ctx context.Context, signedToken string) (*credential.ValidationResult, error)
	RecordUsage(ctx context.Context, credentialID, transactionID string, amount int64, installments int, merchantID *uint, outcome string) error
}

// Router executes the settlement on a payment rail.
type Router interface {
	Execute(ctx context.Context, intent models.PaymentIntent) (*models.PaymentOutcome, error)
}

// WebhookSink receives settlement events. At-least-once delivery; the
// orchestrator does not block on it.
type WebhookSink interface {
	PaymentSettled(ctx context.Context, outcome models.PaymentOutcome, installments []models.Installment)
}

// NoopWebhookSink discards all events.
type NoopWebhookSink struct{}

func (NoopWebhookSink) PaymentSettled(context.Context, models.PaymentOutcome, []models.Installment) {}
