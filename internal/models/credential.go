package models

import "time"

// Credential tiers
const (
	TierBasic    = "BASIC"
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierPlatinum = "PLATINUM"
)

// Credential statuses
const (
	CredentialStatusActive            = "ACTIVE"
	CredentialStatusExpired           = "EXPIRED"
	CredentialStatusRevoked           = "REVOKED"
	CredentialStatusPendingActivation = "PENDING_ACTIVATION"
)

// Revocation reasons
const (
	RevokeReasonRenewed   = "RENEWED"
	RevokeReasonFraud     = "FRAUD"
	RevokeReasonRequested = "USER_REQUESTED"
)

// CredentialLimits is the claim set attached to a credential.
// All monetary amounts are in cents.
type CredentialLimits struct {
	MaxAmount       int64 `gorm:"not null" json:"max_amount"`
	MaxInstallments int   `gorm:"not null" json:"max_installments"`
	DailyLimit      int64 `gorm:"not null" json:"daily_limit"`
	MonthlyLimit    int64 `gorm:"not null" json:"monthly_limit"`
	MaxTransactions int   `gorm:"not null" json:"max_transactions"`
}

// CredentialUsage tracks consumption against the limits above.
// UsedDaily and UsedMonthly reset when LastUsedAt rolls into a new
// calendar day or month.
type CredentialUsage struct {
	UsedAmount       int64      `gorm:"default:0" json:"used_amount"`
	UsedTransactions int        `gorm:"default:0" json:"used_transactions"`
	UsedDaily        int64      `gorm:"default:0" json:"used_daily"`
	UsedMonthly      int64      `gorm:"default:0" json:"used_monthly"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
}

// Credential is a limited-use, time-bounded authorization to make
// installment purchases. The signed form travels as a JWT; this record
// is the authoritative server-side state.
type Credential struct {
	ID           string           `gorm:"primarykey" json:"id"`
	LineageID    string           `gorm:"index;not null" json:"lineage_id"`
	UserID       uint             `gorm:"index;not null" json:"user_id"`
	MerchantID   *uint            `gorm:"index" json:"merchant_id,omitempty"`
	Tier         string           `gorm:"not null" json:"tier"`
	Status       string           `gorm:"not null;default:'ACTIVE'" json:"status"`
	Limits       CredentialLimits `gorm:"embedded" json:"limits"`
	Usage        CredentialUsage  `gorm:"embedded" json:"usage"`
	IssuedAt     time.Time        `json:"issued_at"`
	ExpiresAt    time.Time        `gorm:"index" json:"expires_at"`
	RenewalAt    time.Time        `json:"renewal_at"`
	RevokedAt    *time.Time       `json:"revoked_at,omitempty"`
	RevokeReason string           `json:"revoke_reason,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// IsExpired reports whether the credential has passed its expiry at t.
func (c *Credential) IsExpired(t time.Time) bool {
	return !c.ExpiresAt.After(t)
}

// RemainingAmount returns the unconsumed portion of the amount limit.
func (c *Credential) RemainingAmount() int64 {
	remaining := c.Limits.MaxAmount - c.Usage.UsedAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingTransactions returns the unconsumed transaction count.
func (c *Credential) RemainingTransactions() int {
	remaining := c.Limits.MaxTransactions - c.Usage.UsedTransactions
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UsageRecord is one append-only entry in a credential's usage history.
type UsageRecord struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CredentialID  string    `gorm:"index;uniqueIndex:idx_credential_tx;not null" json:"credential_id"`
	TransactionID string    `gorm:"uniqueIndex:idx_credential_tx;not null" json:"transaction_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Installments  int       `json:"installments"`
	MerchantID    *uint     `json:"merchant_id,omitempty"`
	Outcome       string    `gorm:"not null" json:"outcome"`
	CreatedAt     time.Time `json:"created_at"`
}
