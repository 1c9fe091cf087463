package models

import "github.com/golang-jwt/jwt/v5"

// CredentialClaims is the tamper-evident signed form of a credential's
// claim set. It is verifiable offline; the live usage counters are not
// part of the signed set and are always resolved from the store.
type CredentialClaims struct {
	jwt.RegisteredClaims
	CredentialID    string `json:"credential_id"`
	UserID          uint   `json:"user_id"`
	MerchantID      *uint  `json:"merchant_id,omitempty"`
	Tier            string `json:"tier"`
	MaxAmount       int64  `json:"max_amount"`
	MaxInstallments int    `json:"max_installments"`
	DailyLimit      int64  `json:"daily_limit"`
	MonthlyLimit    int64  `json:"monthly_limit"`
	MaxTransactions int    `json:"max_transactions"`
}

// ScopedToMerchant reports whether the credential is restricted to a
// single merchant, and if so which one.
func (c *CredentialClaims) ScopedToMerchant() (uint, bool) {
	if c.MerchantID == nil {
		return 0, false
	}
	return *c.MerchantID, true
}
