// Package repositories provides the persistence collaborators the
// engine services depend on. GORM-backed implementations are the
// reference; in-memory implementations back the tests.
package repositories

import (
	"context"
	"errors"
	"time"

	"parceltoken/internal/models"
)

// Repository errors
var (
	ErrCredentialNotFound       = errors.New("credential not found")
	ErrInstallmentNotFound      = errors.New("installment not found")
	ErrLimitExceeded            = errors.New("credential amount limit exceeded")
	ErrTransactionLimitExceeded = errors.New("credential transaction limit exceeded")
	ErrDailyLimitExceeded       = errors.New("credential daily limit exceeded")
	ErrMonthlyLimitExceeded     = errors.New("credential monthly limit exceeded")
	ErrCredentialNotActive      = errors.New("credential not active")
)

// CredentialRepository owns Credential records and their usage
// counters. ApplyUsage must serialize concurrent increments on the
// same credential (compare-and-increment against the limits, never
// read-then-write).
type CredentialRepository interface {
	Create(ctx context.Context, credential *models.Credential) error
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	Update(ctx context.Context, credential *models.Credential) error
	ListByUser(ctx context.Context, userID uint) ([]models.Credential, error)

	// ApplyUsage atomically increments the usage counters of an ACTIVE
	// credential by amount and one transaction, failing with one of the
	// limit errors above if any cap would be breached. Daily/monthly
	// windows roll over based on the stored LastUsedAt.
	ApplyUsage(ctx context.Context, id string, amount int64, at time.Time) error

	// AppendUsage appends a usage-history record. It reports false with
	// no error when the (credential, transaction) pair was already
	// recorded, which is how retried settlements stay idempotent.
	AppendUsage(ctx context.Context, rec *models.UsageRecord) (bool, error)

	UsageHistory(ctx context.Context, credentialID string, limit int) ([]models.UsageRecord, error)

	// Supersede revokes old and creates its replacement in one store
	// transaction so the lineage never has two ACTIVE credentials.
	Supersede(ctx context.Context, old, replacement *models.Credential) error
}

// InstallmentRepository owns the installment ledger handed to the
// collections engine after settlement.
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, installments []*models.Installment) error
	GetByID(ctx context.Context, id string) (*models.Installment, error)
	Update(ctx context.Context, installment *models.Installment) error
	ListByUser(ctx context.Context, userID uint) ([]models.Installment, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]models.Installment, error)
	ListOpen(ctx context.Context) ([]models.Installment, error)
	ListAll(ctx context.Context) ([]models.Installment, error)
}
