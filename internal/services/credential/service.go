// Package credential manages the lifecycle of installment credit
// credentials: issuance, validation, usage accounting, renewal and
// revocation.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parceltoken/internal/models"
	"parceltoken/internal/repositories"

	"github.com/google/uuid"
)

// Service is the credential manager.
type Service struct {
	repo     repositories.CredentialRepository
	cache    Cache // optional
	signer   *Signer
	notifier Notifier
	config   Config
	now      func() time.Time
}

// NewService creates a credential service. cache may be nil; a nil
// notifier is replaced by a no-op.
func NewService(repo repositories.CredentialRepository, cache Cache, notifier Notifier, config Config) *Service {
	if repo == nil {
		panic("credential repository is required")
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if config.ValidityDays <= 0 {
		config.ValidityDays = 90
	}
	if config.RenewalNoticeDays <= 0 {
		config.RenewalNoticeDays = 7
	}
	if config.Issuer == "" {
		config.Issuer = "parceltoken"
	}

	return &Service{
		repo:     repo,
		cache:    cache,
		signer:   NewSigner(config.Issuer, config.Secret),
		notifier: notifier,
		config:   config,
		now:      time.Now,
	}
}

// Issue creates a credential for the user with tier defaults, overridden
// by any supplied custom limits, and returns it with its signed form.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.Credential, string, error) {
	limits, ok := DefaultLimitsForTier(req.Tier)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownTier, req.Tier)
	}
	if req.CustomLimits != nil {
		limits = mergeLimits(limits, *req.CustomLimits)
	}
	if err := checkLimits(limits); err != nil {
		return nil, "", err
	}

	now := s.now()
	status := models.CredentialStatusActive
	if req.PendingActivation {
		status = models.CredentialStatusPendingActivation
	}

	credential := &models.Credential{
		ID:         uuid.NewString(),
		LineageID:  uuid.NewString(),
		UserID:     req.UserID,
		MerchantID: req.MerchantID,
		Tier:       req.Tier,
		Status:     status,
		Limits:     limits,
		IssuedAt:   now,
		ExpiresAt:  now.AddDate(0, 0, s.config.ValidityDays),
		RenewalAt:  now.AddDate(0, 0, s.config.ValidityDays-s.config.RenewalNoticeDays),
	}

	if err := s.repo.Create(ctx, credential); err != nil {
		return nil, "", fmt.Errorf("failed to store credential: %w", err)
	}

	signed, err := s.signer.Sign(credential)
	if err != nil {
		return nil, "", err
	}

	s.notifier.CredentialIssued(ctx, credential)
	return credential, signed, nil
}

// Activate moves a PENDING_ACTIVATION credential to ACTIVE.
func (s *Service) Activate(ctx context.Context, credentialID string) (*models.Credential, error) {
	credential, err := s.repo.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if credential.Status != models.CredentialStatusPendingActivation {
		return nil, ErrNotPending
	}
	credential.Status = models.CredentialStatusActive
	if err := s.repo.Update(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to activate credential: %w", err)
	}
	s.invalidate(ctx, credential.ID)
	return credential, nil
}

// Validate verifies the signed claim set, resolves the live record and
// checks lifecycle state and limits. A bad signature or wrong issuer is
// an error (ErrInvalidSignature); every other outcome is a result code.
func (s *Service) Validate(ctx context.Context, signedToken string) (*ValidationResult, error) {
	claims, err := s.signer.Verify(signedToken)
	if err != nil {
		return nil, err
	}

	credential, err := s.lookup(ctx, claims.CredentialID)
	if err != nil {
		if errors.Is(err, repositories.ErrCredentialNotFound) {
			return &ValidationResult{Code: ValidationNotFound}, nil
		}
		return nil, err
	}

	switch credential.Status {
	case models.CredentialStatusRevoked:
		return &ValidationResult{Code: ValidationRevoked}, nil
	case models.CredentialStatusExpired:
		return &ValidationResult{Code: ValidationExpired}, nil
	case models.CredentialStatusPendingActivation:
		return &ValidationResult{Code: ValidationPendingActivation}, nil
	}

	if credential.IsExpired(s.now()) {
		// Time-driven transition: stamp the record on first observation.
		credential.Status = models.CredentialStatusExpired
		if err := s.repo.Update(ctx, credential); err != nil {
			return nil, fmt.Errorf("failed to expire credential: %w", err)
		}
		s.invalidate(ctx, credential.ID)
		return &ValidationResult{Code: ValidationExpired}, nil
	}

	if credential.Usage.UsedAmount >= credential.Limits.MaxAmount {
		return &ValidationResult{Code: ValidationLimitExceeded}, nil
	}
	if credential.Usage.UsedTransactions >= credential.Limits.MaxTransactions {
		return &ValidationResult{Code: ValidationTxLimitExceeded}, nil
	}

	return &ValidationResult{Code: ValidationValid, Credential: credential}, nil
}

// RecordUsage appends a usage-history record and, for successful
// outcomes, applies the usage counters. Replays of an already-recorded
// transaction id are a no-op, so retried settlements never double-count.
func (s *Service) RecordUsage(ctx context.Context, credentialID, transactionID string, amount int64, installments int, merchantID *uint, outcome string) error {
	rec := &models.UsageRecord{
		CredentialID:  credentialID,
		TransactionID: transactionID,
		Amount:        amount,
		Installments:  installments,
		MerchantID:    merchantID,
		Outcome:       outcome,
		CreatedAt:     s.now(),
	}

	created, err := s.repo.AppendUsage(ctx, rec)
	if err != nil {
		return err
	}
	if !created {
		return nil // duplicate transaction id, already accounted
	}

	if outcome != models.PaymentStatusSuccess {
		return nil
	}

	if err := s.repo.ApplyUsage(ctx, credentialID, amount, s.now()); err != nil {
		return err
	}
	s.invalidate(ctx, credentialID)
	return nil
}

// Renew supersedes an active credential with a fresh one on the same
// lineage: configuration carries forward, usage counters reset, and the
// old credential is revoked with reason RENEWED in the same store
// transaction. The two are never simultaneously active.
func (s *Service) Renew(ctx context.Context, req RenewRequest) (*models.Credential, string, error) {
	old, err := s.repo.GetByID(ctx, req.CredentialID)
	if err != nil {
		return nil, "", err
	}
	if old.Status != models.CredentialStatusActive {
		return nil, "", ErrNotActive
	}

	limits := old.Limits
	if req.NewLimits != nil {
		limits = mergeLimits(limits, *req.NewLimits)
	}
	if err := checkLimits(limits); err != nil {
		return nil, "", err
	}

	validityDays := req.ExtendDays
	if validityDays <= 0 {
		validityDays = s.config.ValidityDays
	}

	now := s.now()
	replacement := &models.Credential{
		ID:         uuid.NewString(),
		LineageID:  old.LineageID,
		UserID:     old.UserID,
		MerchantID: old.MerchantID,
		Tier:       old.Tier,
		Status:     models.CredentialStatusActive,
		Limits:     limits,
		IssuedAt:   now,
		ExpiresAt:  now.AddDate(0, 0, validityDays),
		RenewalAt:  now.AddDate(0, 0, validityDays-s.config.RenewalNoticeDays),
	}

	old.Status = models.CredentialStatusRevoked
	old.RevokeReason = models.RevokeReasonRenewed
	revokedAt := now
	old.RevokedAt = &revokedAt

	if err := s.repo.Supersede(ctx, old, replacement); err != nil {
		return nil, "", fmt.Errorf("failed to renew credential: %w", err)
	}
	s.invalidate(ctx, old.ID)

	signed, err := s.signer.Sign(replacement)
	if err != nil {
		return nil, "", err
	}
	return replacement, signed, nil
}

// Revoke marks the credential revoked. It is idempotent: revoking a
// credential already in a terminal state is a no-op.
func (s *Service) Revoke(ctx context.Context, credentialID, reason string) error {
	credential, err := s.repo.GetByID(ctx, credentialID)
	if err != nil {
		return err
	}
	if credential.Status == models.CredentialStatusRevoked ||
		credential.Status == models.CredentialStatusExpired {
		return nil
	}

	now := s.now()
	credential.Status = models.CredentialStatusRevoked
	credential.RevokeReason = reason
	credential.RevokedAt = &now
	if err := s.repo.Update(ctx, credential); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}
	s.invalidate(ctx, credential.ID)
	s.notifier.CredentialRevoked(ctx, credential, reason)
	return nil
}

// Availability reports remaining capacity and lifecycle countdowns.
func (s *Service) Availability(ctx context.Context, credentialID string) (*Availability, error) {
	credential, err := s.lookup(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	av := &Availability{
		RemainingAmount:       credential.RemainingAmount(),
		RemainingTransactions: credential.RemainingTransactions(),
		DaysUntilExpiry:       daysUntil(now, credential.ExpiresAt),
		DaysUntilRenewal:      daysUntil(now, credential.RenewalAt),
	}
	av.Available = credential.Status == models.CredentialStatusActive &&
		!credential.IsExpired(now) &&
		av.RemainingAmount > 0 &&
		av.RemainingTransactions > 0
	return av, nil
}

// UsageHistory returns the most recent usage records, newest first.
func (s *Service) UsageHistory(ctx context.Context, credentialID string, limit int) ([]models.UsageRecord, error) {
	return s.repo.UsageHistory(ctx, credentialID, limit)
}

// Get resolves a credential by id, via the cache when wired.
func (s *Service) Get(ctx context.Context, credentialID string) (*models.Credential, error) {
	return s.lookup(ctx, credentialID)
}

func (s *Service) lookup(ctx context.Context, id string) (*models.Credential, error) {
	if s.cache != nil {
		if credential, err := s.cache.Get(ctx, id); err == nil {
			return credential, nil
		}
	}
	credential, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, credential)
	}
	return credential, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
}

// mergeLimits overlays non-zero custom fields on the tier defaults.
func mergeLimits(base, custom models.CredentialLimits) models.CredentialLimits {
	if custom.MaxAmount > 0 {
		base.MaxAmount = custom.MaxAmount
	}
	if custom.MaxInstallments > 0 {
		base.MaxInstallments = custom.MaxInstallments
	}
	if custom.DailyLimit > 0 {
		base.DailyLimit = custom.DailyLimit
	}
	if custom.MonthlyLimit > 0 {
		base.MonthlyLimit = custom.MonthlyLimit
	}
	if custom.MaxTransactions > 0 {
		base.MaxTransactions = custom.MaxTransactions
	}
	return base
}

// checkLimits rejects internally inconsistent claim sets.
func checkLimits(limits models.CredentialLimits) error {
	switch {
	case limits.MaxAmount <= 0:
		return fmt.Errorf("%w: max amount must be positive", ErrInvalidLimits)
	case limits.MaxInstallments <= 0:
		return fmt.Errorf("%w: max installments must be positive", ErrInvalidLimits)
	case limits.MaxTransactions <= 0:
		return fmt.Errorf("%w: max transactions must be positive", ErrInvalidLimits)
	case limits.DailyLimit <= 0 || limits.MonthlyLimit <= 0:
		return fmt.Errorf("%w: daily and monthly limits must be positive", ErrInvalidLimits)
	case limits.DailyLimit > limits.MonthlyLimit:
		return fmt.Errorf("%w: daily limit exceeds monthly limit", ErrInvalidLimits)
	case limits.DailyLimit > limits.MaxAmount:
		return fmt.Errorf("%w: daily limit exceeds max amount", ErrInvalidLimits)
	}
	return nil
}

func daysUntil(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
