package credential

import (
	"context"
	"time"

	"parceltoken/internal/models"
)

// Validation result codes
const (
	ValidationValid              = "VALID"
	ValidationNotFound           = "NOT_FOUND"
	ValidationExpired            = "EXPIRED"
	ValidationRevoked            = "REVOKED"
	ValidationPendingActivation  = "PENDING_ACTIVATION"
	ValidationLimitExceeded      = "LIMIT_EXCEEDED"
	ValidationTxLimitExceeded    = "TRANSACTION_LIMIT_EXCEEDED"
)

// Config holds credential issuance policy.
type Config struct {
	ValidityDays      int           // default 90
	RenewalNoticeDays int           // renewal marker, default 7
	Issuer            string        // JWT issuer
	Secret            string        // HS256 signing secret
	CacheTTL          time.Duration // unused when no cache is wired
}

// IssueRequest is the input to Issue.
type IssueRequest struct {
	UserID            uint
	Tier              string
	MerchantID        *uint
	CustomLimits      *models.CredentialLimits
	PendingActivation bool
}

// RenewRequest is the input to Renew.
type RenewRequest struct {
	CredentialID string
	ExtendDays   int // 0 means the configured validity window
	NewLimits    *models.CredentialLimits
}

// ValidationResult reports the outcome of validating a signed
// credential. Credential is set only when Code is VALID.
type ValidationResult struct {
	Code       string             `json:"code"`
	Credential *models.Credential `json:"credential,omitempty"`
}

// Valid reports whether the credential may authorize a payment.
func (r *ValidationResult) Valid() bool {
	return r.Code == ValidationValid
}

// Availability summarizes how much capacity a credential has left.
type Availability struct {
	Available             bool  `json:"available"`
	RemainingAmount       int64 `json:"remaining_amount"`
	RemainingTransactions int   `json:"remaining_transactions"`
	DaysUntilExpiry       int   `json:"days_until_expiry"`
	DaysUntilRenewal      int   `json:"days_until_renewal"`
}

// Cache is the optional read cache in front of the credential store.
type Cache interface {
	Get(ctx context.Context, id string) (*models.Credential, error)
	Set(ctx context.Context, credential *models.Credential) error
	Invalidate(ctx context.Context, id string) error
}

// Notifier receives credential lifecycle events. Delivery is
// fire-and-forget; implementations must not block.
type Notifier interface {
	CredentialIssued(ctx context.Context, credential *models.Credential)
	CredentialRevoked(ctx context.Context, credential *models.Credential, reason string)
}

// NoopNotifier discards all events.
type NoopNotifier struct{}

func (NoopNotifier) CredentialIssued(context.Context, *models.Credential)          {}
func (NoopNotifier) CredentialRevoked(context.Context, *models.Credential, string) {}

// defaultLimits is the per-tier limit table applied when no custom
// limits are supplied. Amounts in cents.
var defaultLimits = map[string]models.CredentialLimits{
	models.TierBasic: {
		MaxAmount:       500_000,
		MaxInstallments: 2,
		DailyLimit:      250_000,
		MonthlyLimit:    500_000,
		MaxTransactions: 10,
	},
	models.TierSilver: {
		MaxAmount:       1_500_000,
		MaxInstallments: 6,
		DailyLimit:      500_000,
		MonthlyLimit:    1_500_000,
		MaxTransactions: 30,
	},
	models.TierGold: {
		MaxAmount:       5_000_000,
		MaxInstallments: 12,
		DailyLimit:      1_500_000,
		MonthlyLimit:    5_000_000,
		MaxTransactions: 60,
	},
	models.TierPlatinum: {
		MaxAmount:       20_000_000,
		MaxInstallments: 24,
		DailyLimit:      5_000_000,
		MonthlyLimit:    20_000_000,
		MaxTransactions: 120,
	},
}

// DefaultLimitsForTier returns a copy of the tier's default limit table.
func DefaultLimitsForTier(tier string) (models.CredentialLimits, bool) {
	limits, ok := defaultLimits[tier]
	return limits, ok
}
