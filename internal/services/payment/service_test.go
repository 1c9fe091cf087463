package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"parceltoken/internal/models"
	"parceltoken/internal/repositories"
	"parceltoken/internal/services/credential"
	"parceltoken/internal/services/risk"
	"parceltoken/internal/services/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executorFunc func(ctx context.Context, rail string, intent models.PaymentIntent) error

func (f executorFunc) Attempt(ctx context.Context, rail string, intent models.PaymentIntent) error {
	return f(ctx, rail, intent)
}

var settleOK = executorFunc(func(context.Context, string, models.PaymentIntent) error { return nil })

type recordingWebhook struct {
	settled []models.PaymentOutcome
}

func (w *recordingWebhook) PaymentSettled(_ context.Context, outcome models.PaymentOutcome, _ []models.Installment) {
	w.settled = append(w.settled, outcome)
}

// pipeline wires a full in-memory orchestrator for tests.
type pipeline struct {
	service     *Service
	credentials *credential.Service
	credRepo    *repositories.MemoryCredentialRepository
	instRepo    *repositories.MemoryInstallmentRepository
	risk        *risk.Service
	webhook     *recordingWebhook
}

func newPipeline(t *testing.T, executor router.RailExecutor) *pipeline {
	t.Helper()
	credRepo := repositories.NewMemoryCredentialRepository()
	instRepo := repositories.NewMemoryInstallmentRepository()
	credService := credential.NewService(credRepo, nil, nil, credential.Config{Secret: "test-secret"})
	riskService := risk.NewService(risk.Config{})
	routerService := router.NewService(nil, executor, nil, router.Config{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	})
	webhook := &recordingWebhook{}

	return &pipeline{
		service:     NewService(riskService, credService, routerService, instRepo, webhook),
		credentials: credService,
		credRepo:    credRepo,
		instRepo:    instRepo,
		risk:        riskService,
		webhook:     webhook,
	}
}

func (p *pipeline) issue(t *testing.T, req credential.IssueRequest) (*models.Credential, string) {
	t.Helper()
	cred, signed, err := p.credentials.Issue(context.Background(), req)
	require.NoError(t, err)
	return cred, signed
}

func request(token string, amount int64, installments int) ProcessRequest {
	return ProcessRequest{
		SignedCredential: token,
		Intent: models.PaymentIntent{
			TransactionID: "TX-test",
			UserID:        1,
			MerchantID:    10,
			Amount:        amount,
			Installments:  installments,
		},
	}
}

func TestPaymentService_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("settles and registers installments", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		cred, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold})

		result, err := p.service.Process(ctx, request(signed, 600_000, 6))
		require.NoError(t, err)
		require.NotNil(t, result.Outcome)
		assert.Equal(t, models.PaymentStatusSuccess, result.Outcome.Status)
		// 600_000 is over the PARCELTOKEN cap, so PIX settles it.
		assert.Equal(t, models.RailPix, result.Outcome.Rail)
		assert.Equal(t, cred.ID, result.CredentialID)

		require.Len(t, result.Installments, 6)
		var sum int64
		for i, installment := range result.Installments {
			sum += installment.Amount
			assert.Equal(t, i+1, installment.Sequence)
			assert.Equal(t, models.InstallmentStatusPending, installment.Status)
			assert.Equal(t, "TX-test", installment.TransactionID)
		}
		assert.Equal(t, int64(600_000), sum)

		// Due dates are monthly, first one a month out.
		assert.True(t, result.Installments[0].DueDate.After(time.Now()))
		assert.True(t, result.Installments[5].DueDate.After(result.Installments[0].DueDate))

		// Usage consumed once.
		stored, err := p.credRepo.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(600_000), stored.Usage.UsedAmount)
		assert.Equal(t, 1, stored.Usage.UsedTransactions)

		require.Len(t, p.webhook.settled, 1)
	})

	t.Run("remainder cents go to earliest installments", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		_, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold})

		result, err := p.service.Process(ctx, request(signed, 100_001, 3))
		require.NoError(t, err)
		require.Len(t, result.Installments, 3)
		assert.Equal(t, int64(33_334), result.Installments[0].Amount)
		assert.Equal(t, int64(33_334), result.Installments[1].Amount)
		assert.Equal(t, int64(33_333), result.Installments[2].Amount)
	})

	t.Run("risk block aborts before validation", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		cred, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold})
		p.risk.BlacklistUser(1)

		result, err := p.service.Process(ctx, request(signed, 100_000, 2))
		var blocked *RiskBlockedError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, 100, blocked.Score)
		assert.True(t, result.Risk.Blocked)
		assert.Nil(t, result.Outcome)

		// Nothing was committed.
		history, err := p.credentials.UsageHistory(ctx, cred.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("revoked credential rejected", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		cred, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold})
		require.NoError(t, p.credentials.Revoke(ctx, cred.ID, models.RevokeReasonFraud))

		_, err := p.service.Process(ctx, request(signed, 100_000, 2))
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, credential.ValidationRevoked, validation.Code)
	})

	t.Run("amount over remaining limit rejected", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		_, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierBasic})

		_, err := p.service.Process(ctx, request(signed, 600_000, 2))
		var limit *LimitError
		require.ErrorAs(t, err, &limit)
	})

	t.Run("installment count over credential cap rejected", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		_, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierBasic})

		// BASIC allows two installments.
		_, err := p.service.Process(ctx, request(signed, 100_000, 3))
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "INSTALLMENT_COUNT", validation.Code)
	})

	t.Run("merchant-scoped credential rejects other merchants", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		merchantID := uint(99)
		_, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold, MerchantID: &merchantID})

		_, err := p.service.Process(ctx, request(signed, 100_000, 2))
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "MERCHANT_SCOPE", validation.Code)
	})

	t.Run("failed settlement records usage without consuming limits", func(t *testing.T) {
		p := newPipeline(t, executorFunc(func(context.Context, string, models.PaymentIntent) error {
			return errors.New("gateway down")
		}))
		cred, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold})

		result, err := p.service.Process(ctx, request(signed, 100_000, 2))
		require.Error(t, err)
		require.NotNil(t, result.Outcome)
		assert.Equal(t, models.PaymentStatusFailed, result.Outcome.Status)
		assert.Empty(t, result.Installments)

		// The attempt is in the history but never consumed the limits.
		history, err := p.credentials.UsageHistory(ctx, cred.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.PaymentStatusFailed, history[0].Outcome)

		stored, err := p.credRepo.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.Usage.UsedAmount)

		ledger, err := p.instRepo.ListByTransaction(ctx, "TX-test")
		require.NoError(t, err)
		assert.Empty(t, ledger)
	})

	t.Run("transaction id generated when missing", func(t *testing.T) {
		p := newPipeline(t, settleOK)
		_, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold})

		req := request(signed, 100_000, 2)
		req.Intent.TransactionID = ""
		result, err := p.service.Process(ctx, req)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Outcome.TransactionID)
		assert.Contains(t, result.Outcome.TransactionID, "TX-")
	})
}

func TestPaymentService_ProcessIsIdempotentPerTransaction(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, settleOK)
	cred, signed := p.issue(t, credential.IssueRequest{UserID: 1, Tier: models.TierGold})

	_, err := p.service.Process(ctx, request(signed, 100_000, 2))
	require.NoError(t, err)
	_, err = p.service.Process(ctx, request(signed, 100_000, 2))
	require.NoError(t, err)

	// Same transaction id: the replay never double-counts usage.
	stored, err := p.credRepo.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), stored.Usage.UsedAmount)
	assert.Equal(t, 1, stored.Usage.UsedTransactions)
}

func TestReconciler(t *testing.T) {
	webhook := &recordingWebhook{}
	reconciler := NewReconciler(webhook)
	ctx := context.Background()

	outcome := models.PaymentOutcome{TransactionID: "TX-1", Status: models.PaymentStatusSuccess}
	require.NoError(t, reconciler.Reconcile(ctx, outcome))
	require.NoError(t, reconciler.Reconcile(ctx, outcome))

	assert.True(t, reconciler.Reconciled("TX-1"))
	assert.False(t, reconciler.Reconciled("TX-2"))

	// Published once, with the reconciled status.
	require.Len(t, webhook.settled, 1)
	assert.Equal(t, models.PaymentStatusReconciled, webhook.settled[0].Status)
}
