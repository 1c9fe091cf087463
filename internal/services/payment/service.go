// Package payment orchestrates a settlement end to end: risk check,
// credential validation, rail execution, usage accounting and
// installment registration.
package payment

import (
	"context"
	"fmt"
	"time"

	"parceltoken/internal/models"
	"parceltoken/internal/repositories"
	"parceltoken/internal/services/credential"

	"github.com/google/uuid"
)

// ProcessRequest is a payment attempt: the intent plus the signed
// credential authorizing it and the risk signals of the attempt.
type ProcessRequest struct {
	SignedCredential string
	Intent           models.PaymentIntent
	IP               string
	DeviceID         string
	Location         *models.GeoPoint
}

// ProcessResult is the terminal state of a processed payment.
type ProcessResult struct {
	Outcome      *models.PaymentOutcome `json:"outcome"`
	Risk         models.RiskResult      `json:"risk"`
	CredentialID string                 `json:"credential_id"`
	Installments []models.Installment   `json:"installments,omitempty"`
}

// Service is the payment orchestrator.
type Service struct {
	risk         RiskChecker
	credentials  CredentialManager
	router       Router
	installments repositories.InstallmentRepository
	webhook      WebhookSink
	now          func() time.Time
}

// NewService wires the orchestrator. webhook may be nil.
func NewService(risk RiskChecker, credentials CredentialManager, router Router, installments repositories.InstallmentRepository, webhook WebhookSink) *Service {
	if risk == nil || credentials == nil || router == nil || installments == nil {
		panic("risk, credentials, router and installments are required")
	}
	if webhook == nil {
		webhook = NoopWebhookSink{}
	}

	return &Service{
		risk:         risk,
		credentials:  credentials,
		router:       router,
		installments: installments,
		webhook:      webhook,
		now:          time.Now,
	}
}

// Process runs the full settlement pipeline. Risk and credential
// failures abort before the router commits anything; after the router
// returns a terminal outcome, usage is recorded exactly once per
// transaction id regardless of how the settlement went.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	intent := req.Intent
	if intent.TransactionID == "" {
		intent.TransactionID = fmt.Sprintf("TX-%s", uuid.NewString())
	}

	riskResult := s.risk.Check(models.RiskContext{
		TransactionID: intent.TransactionID,
		UserID:        intent.UserID,
		MerchantID:    intent.MerchantID,
		Amount:        intent.Amount,
		Rail:          intent.PreferredRail,
		IP:            req.IP,
		DeviceID:      req.DeviceID,
		Location:      req.Location,
		Timestamp:     s.now(),
	})
	result := &ProcessResult{Risk: riskResult}
	if riskResult.Blocked {
		return result, &RiskBlockedError{Score: riskResult.Score, Flags: riskResult.Flags}
	}

	validation, err := s.credentials.Validate(ctx, req.SignedCredential)
	if err != nil {
		return result, err
	}
	if !validation.Valid() {
		switch validation.Code {
		case credential.ValidationLimitExceeded, credential.ValidationTxLimitExceeded:
			return result, &LimitError{Code: validation.Code}
		default:
			return result, &ValidationError{Code: validation.Code}
		}
	}

	cred := validation.Credential
	result.CredentialID = cred.ID
	if err := s.checkIntentAgainstCredential(cred, intent); err != nil {
		return result, err
	}

	outcome, execErr := s.router.Execute(ctx, intent)
	result.Outcome = outcome

	// One usage record per transaction id, whatever the terminal state.
	merchantID := intent.MerchantID
	if recErr := s.credentials.RecordUsage(ctx, cred.ID, intent.TransactionID,
		intent.Amount, intent.Installments, &merchantID, outcome.Status); recErr != nil {
		return result, fmt.Errorf("settlement %s but usage recording failed: %w", outcome.Status, recErr)
	}

	if execErr != nil {
		return result, execErr
	}

	installments, err := s.registerInstallments(ctx, intent)
	if err != nil {
		return result, err
	}
	result.Installments = installments
	s.webhook.PaymentSettled(ctx, *outcome, installments)

	return result, nil
}

// checkIntentAgainstCredential enforces the claim set against the
// intent before any rail is touched.
func (s *Service) checkIntentAgainstCredential(cred *models.Credential, intent models.PaymentIntent) error {
	if merchantID, scoped := scope(cred); scoped && merchantID != intent.MerchantID {
		return &ValidationError{Code: "MERCHANT_SCOPE"}
	}
	if intent.Installments > cred.Limits.MaxInstallments {
		return &ValidationError{Code: "INSTALLMENT_COUNT"}
	}
	if intent.Amount > cred.RemainingAmount() {
		return &LimitError{Code: credential.ValidationLimitExceeded}
	}
	return nil
}

func scope(cred *models.Credential) (uint, bool) {
	if cred.MerchantID == nil {
		return 0, false
	}
	return *cred.MerchantID, true
}

// registerInstallments splits the settled amount into the requested
// schedule, one due date per month, remainder cents on the earliest
// installments so the sum is exact.
func (s *Service) registerInstallments(ctx context.Context, intent models.PaymentIntent) ([]models.Installment, error) {
	count := intent.Installments
	if count <= 0 {
		count = 1
	}

	now := s.now()
	base := intent.Amount / int64(count)
	remainder := intent.Amount - base*int64(count)

	installments := make([]models.Installment, count)
	batch := make([]*models.Installment, count)
	for i := 0; i < count; i++ {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		installments[i] = models.Installment{
			ID:            uuid.NewString(),
			TransactionID: intent.TransactionID,
			UserID:        intent.UserID,
			Sequence:      i + 1,
			Amount:        amount,
			DueDate:       now.AddDate(0, i+1, 0),
			Status:        models.InstallmentStatusPending,
		}
		batch[i] = &installments[i]
	}

	if err := s.installments.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to register installments: %w", err)
	}
	return installments, nil
}
