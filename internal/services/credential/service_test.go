package credential

import (
	"context"
	"sync"
	"testing"
	"time"

	"parceltoken/internal/models"
	"parceltoken/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *repositories.MemoryCredentialRepository) {
	t.Helper()
	repo := repositories.NewMemoryCredentialRepository()
	service := NewService(repo, nil, nil, Config{Secret: "test-secret"})
	return service, repo
}

func issueActive(t *testing.T, service *Service, tier string) (*models.Credential, string) {
	t.Helper()
	cred, signed, err := service.Issue(context.Background(), IssueRequest{UserID: 1, Tier: tier})
	require.NoError(t, err)
	return cred, signed
}

func TestCredentialService_Issue(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	t.Run("tier defaults applied", func(t *testing.T) {
		cred, signed, err := service.Issue(ctx, IssueRequest{UserID: 1, Tier: models.TierGold})
		require.NoError(t, err)
		assert.NotEmpty(t, signed)
		assert.Equal(t, models.CredentialStatusActive, cred.Status)
		assert.Equal(t, int64(5_000_000), cred.Limits.MaxAmount)
		assert.Equal(t, 12, cred.Limits.MaxInstallments)
		assert.Equal(t, 60, cred.Limits.MaxTransactions)
		assert.NotEmpty(t, cred.LineageID)
	})

	t.Run("custom limits override defaults", func(t *testing.T) {
		cred, _, err := service.Issue(ctx, IssueRequest{
			UserID:       1,
			Tier:         models.TierBasic,
			CustomLimits: &models.CredentialLimits{MaxAmount: 300_000, DailyLimit: 100_000},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(300_000), cred.Limits.MaxAmount)
		assert.Equal(t, int64(100_000), cred.Limits.DailyLimit)
		// Untouched fields keep the tier defaults.
		assert.Equal(t, 2, cred.Limits.MaxInstallments)
	})

	t.Run("unknown tier rejected", func(t *testing.T) {
		_, _, err := service.Issue(ctx, IssueRequest{UserID: 1, Tier: "DIAMOND"})
		assert.ErrorIs(t, err, ErrUnknownTier)
	})

	t.Run("daily limit above monthly rejected", func(t *testing.T) {
		_, _, err := service.Issue(ctx, IssueRequest{
			UserID:       1,
			Tier:         models.TierBasic,
			CustomLimits: &models.CredentialLimits{DailyLimit: 400_000, MonthlyLimit: 300_000},
		})
		assert.ErrorIs(t, err, ErrInvalidLimits)
	})

	t.Run("daily limit above max amount rejected", func(t *testing.T) {
		_, _, err := service.Issue(ctx, IssueRequest{
			UserID:       1,
			Tier:         models.TierBasic,
			CustomLimits: &models.CredentialLimits{MaxAmount: 100_000, DailyLimit: 200_000},
		})
		assert.ErrorIs(t, err, ErrInvalidLimits)
	})

	t.Run("pending activation", func(t *testing.T) {
		cred, _, err := service.Issue(ctx, IssueRequest{UserID: 1, Tier: models.TierBasic, PendingActivation: true})
		require.NoError(t, err)
		assert.Equal(t, models.CredentialStatusPendingActivation, cred.Status)
	})

	t.Run("renewal precedes expiry", func(t *testing.T) {
		cred, _ := issueActive(t, service, models.TierSilver)
		assert.True(t, cred.RenewalAt.Before(cred.ExpiresAt))
	})
}

func TestCredentialService_Activate(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	pending, _, err := service.Issue(ctx, IssueRequest{UserID: 1, Tier: models.TierBasic, PendingActivation: true})
	require.NoError(t, err)

	activated, err := service.Activate(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusActive, activated.Status)

	// Activating twice fails: the credential is no longer pending.
	_, err = service.Activate(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestCredentialService_Validate(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	t.Run("valid credential", func(t *testing.T) {
		cred, signed := issueActive(t, service, models.TierGold)
		result, err := service.Validate(ctx, signed)
		require.NoError(t, err)
		assert.True(t, result.Valid())
		assert.Equal(t, cred.ID, result.Credential.ID)
	})

	t.Run("tampered token", func(t *testing.T) {
		_, signed := issueActive(t, service, models.TierGold)
		_, err := service.Validate(ctx, signed+"x")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(repositories.NewMemoryCredentialRepository(), nil, nil, Config{Secret: "other-secret"})
		_, signed := issueActive(t, other, models.TierGold)
		_, err := service.Validate(ctx, signed)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("revoked credential", func(t *testing.T) {
		cred, signed := issueActive(t, service, models.TierGold)
		require.NoError(t, service.Revoke(ctx, cred.ID, models.RevokeReasonFraud))

		result, err := service.Validate(ctx, signed)
		require.NoError(t, err)
		assert.Equal(t, ValidationRevoked, result.Code)
		assert.Nil(t, result.Credential)
	})

	t.Run("pending credential", func(t *testing.T) {
		_, signed, err := service.Issue(ctx, IssueRequest{UserID: 1, Tier: models.TierBasic, PendingActivation: true})
		require.NoError(t, err)

		result, err := service.Validate(ctx, signed)
		require.NoError(t, err)
		assert.Equal(t, ValidationPendingActivation, result.Code)
	})

	t.Run("expiry stamped on first observation", func(t *testing.T) {
		cred, signed := issueActive(t, service, models.TierGold)

		service.now = func() time.Time { return time.Now().AddDate(0, 0, 91) }
		defer func() { service.now = time.Now }()

		result, err := service.Validate(ctx, signed)
		require.NoError(t, err)
		assert.Equal(t, ValidationExpired, result.Code)

		stored, err := repo.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CredentialStatusExpired, stored.Status)
	})

	t.Run("amount limit exhausted", func(t *testing.T) {
		cred, signed, err := service.Issue(ctx, IssueRequest{
			UserID: 1,
			Tier:   models.TierBasic,
			CustomLimits: &models.CredentialLimits{
				MaxAmount: 100_000, DailyLimit: 100_000, MonthlyLimit: 100_000,
			},
		})
		require.NoError(t, err)
		require.NoError(t, service.RecordUsage(ctx, cred.ID, "tx-exhaust", 100_000, 1, nil, models.PaymentStatusSuccess))

		result, err := service.Validate(ctx, signed)
		require.NoError(t, err)
		assert.Equal(t, ValidationLimitExceeded, result.Code)
	})

	t.Run("transaction limit exhausted", func(t *testing.T) {
		cred, signed, err := service.Issue(ctx, IssueRequest{
			UserID:       1,
			Tier:         models.TierBasic,
			CustomLimits: &models.CredentialLimits{MaxTransactions: 1},
		})
		require.NoError(t, err)
		require.NoError(t, service.RecordUsage(ctx, cred.ID, "tx-only", 1_000, 1, nil, models.PaymentStatusSuccess))

		result, err := service.Validate(ctx, signed)
		require.NoError(t, err)
		assert.Equal(t, ValidationTxLimitExceeded, result.Code)
	})
}

func TestCredentialService_RecordUsage(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	t.Run("success updates counters", func(t *testing.T) {
		cred, _ := issueActive(t, service, models.TierGold)
		require.NoError(t, service.RecordUsage(ctx, cred.ID, "tx-1", 50_000, 3, nil, models.PaymentStatusSuccess))

		stored, err := repo.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50_000), stored.Usage.UsedAmount)
		assert.Equal(t, 1, stored.Usage.UsedTransactions)
		assert.Equal(t, int64(50_000), stored.Usage.UsedDaily)
	})

	t.Run("failed outcome recorded without consuming limits", func(t *testing.T) {
		cred, _ := issueActive(t, service, models.TierGold)
		require.NoError(t, service.RecordUsage(ctx, cred.ID, "tx-fail", 50_000, 1, nil, models.PaymentStatusFailed))

		stored, err := repo.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.Usage.UsedAmount)
		assert.Zero(t, stored.Usage.UsedTransactions)

		history, err := service.UsageHistory(ctx, cred.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.PaymentStatusFailed, history[0].Outcome)
	})

	t.Run("replayed transaction id is a no-op", func(t *testing.T) {
		cred, _ := issueActive(t, service, models.TierGold)
		require.NoError(t, service.RecordUsage(ctx, cred.ID, "tx-replay", 50_000, 1, nil, models.PaymentStatusSuccess))
		require.NoError(t, service.RecordUsage(ctx, cred.ID, "tx-replay", 50_000, 1, nil, models.PaymentStatusSuccess))

		stored, err := repo.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50_000), stored.Usage.UsedAmount)
		assert.Equal(t, 1, stored.Usage.UsedTransactions)

		history, err := service.UsageHistory(ctx, cred.ID, 10)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("over-limit usage rejected", func(t *testing.T) {
		cred, _, err := service.Issue(ctx, IssueRequest{
			UserID: 1,
			Tier:   models.TierBasic,
			CustomLimits: &models.CredentialLimits{
				MaxAmount: 100_000, DailyLimit: 100_000, MonthlyLimit: 100_000,
			},
		})
		require.NoError(t, err)

		err = service.RecordUsage(ctx, cred.ID, "tx-over", 150_000, 1, nil, models.PaymentStatusSuccess)
		assert.ErrorIs(t, err, repositories.ErrLimitExceeded)
	})

	t.Run("concurrent usage never overspends", func(t *testing.T) {
		cred, _, err := service.Issue(ctx, IssueRequest{
			UserID: 1,
			Tier:   models.TierPlatinum,
			CustomLimits: &models.CredentialLimits{
				MaxAmount: 100_000, DailyLimit: 100_000, MonthlyLimit: 100_000,
			},
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				// 20 goroutines race for 10 slots of 10_000 cents each.
				_ = service.RecordUsage(ctx, cred.ID, "tx-race-"+string(rune('a'+n)), 10_000, 1, nil, models.PaymentStatusSuccess)
			}(i)
		}
		wg.Wait()

		stored, err := repo.GetByID(ctx, cred.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, stored.Usage.UsedAmount, int64(100_000))
	})
}

func TestCredentialService_Renew(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	t.Run("lineage preserved and usage reset", func(t *testing.T) {
		old, _ := issueActive(t, service, models.TierGold)
		require.NoError(t, service.RecordUsage(ctx, old.ID, "tx-before-renew", 200_000, 6, nil, models.PaymentStatusSuccess))

		renewed, signed, err := service.Renew(ctx, RenewRequest{CredentialID: old.ID})
		require.NoError(t, err)
		assert.NotEmpty(t, signed)
		assert.NotEqual(t, old.ID, renewed.ID)
		assert.Equal(t, old.LineageID, renewed.LineageID)
		assert.Equal(t, old.Limits, renewed.Limits)
		assert.Zero(t, renewed.Usage.UsedAmount)

		// The lineage never holds two active credentials.
		stale, err := repo.GetByID(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CredentialStatusRevoked, stale.Status)
		assert.Equal(t, models.RevokeReasonRenewed, stale.RevokeReason)
	})

	t.Run("non-active credential cannot renew", func(t *testing.T) {
		cred, _ := issueActive(t, service, models.TierGold)
		require.NoError(t, service.Revoke(ctx, cred.ID, models.RevokeReasonRequested))

		_, _, err := service.Renew(ctx, RenewRequest{CredentialID: cred.ID})
		assert.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("limits may change on renewal", func(t *testing.T) {
		old, _ := issueActive(t, service, models.TierBasic)
		renewed, _, err := service.Renew(ctx, RenewRequest{
			CredentialID: old.ID,
			NewLimits:    &models.CredentialLimits{MaxTransactions: 25},
		})
		require.NoError(t, err)
		assert.Equal(t, 25, renewed.Limits.MaxTransactions)
		assert.Equal(t, old.Limits.MaxAmount, renewed.Limits.MaxAmount)
	})
}

func TestCredentialService_Revoke(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	cred, _ := issueActive(t, service, models.TierSilver)
	require.NoError(t, service.Revoke(ctx, cred.ID, models.RevokeReasonFraud))

	stored, err := repo.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusRevoked, stored.Status)
	assert.Equal(t, models.RevokeReasonFraud, stored.RevokeReason)
	require.NotNil(t, stored.RevokedAt)

	// Second revoke is a no-op and keeps the original reason.
	require.NoError(t, service.Revoke(ctx, cred.ID, models.RevokeReasonRequested))
	stored, err = repo.GetByID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RevokeReasonFraud, stored.RevokeReason)

	require.ErrorIs(t, service.Revoke(ctx, "missing", models.RevokeReasonFraud), repositories.ErrCredentialNotFound)
}

func TestCredentialService_Availability(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	cred, _ := issueActive(t, service, models.TierBasic)
	require.NoError(t, service.RecordUsage(ctx, cred.ID, "tx-av", 100_000, 1, nil, models.PaymentStatusSuccess))

	av, err := service.Availability(ctx, cred.ID)
	require.NoError(t, err)
	assert.True(t, av.Available)
	assert.Equal(t, int64(400_000), av.RemainingAmount)
	assert.Equal(t, 9, av.RemainingTransactions)
	assert.Greater(t, av.DaysUntilExpiry, av.DaysUntilRenewal)

	require.NoError(t, service.Revoke(ctx, cred.ID, models.RevokeReasonFraud))
	av, err = service.Availability(ctx, cred.ID)
	require.NoError(t, err)
	assert.False(t, av.Available)
}
