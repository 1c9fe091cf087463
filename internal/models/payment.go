package models

import "time"

// Payment rails
const (
	RailPix         = "PIX"
	RailParcelToken = "PARCELTOKEN"
	RailCard        = "CARD"
	RailBoleto      = "BOLETO"
)

// Payment statuses
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusProcessing = "PROCESSING"
	PaymentStatusSuccess    = "SUCCESS"
	PaymentStatusFailed     = "FAILED"
	PaymentStatusCancelled  = "CANCELLED"
	PaymentStatusReconciled = "RECONCILED"
)

// PaymentIntent is a request to settle a merchant payment, possibly
// split into installments. Amount is in cents.
type PaymentIntent struct {
	TransactionID string `json:"transaction_id"`
	UserID        uint   `json:"user_id"`
	MerchantID    uint   `json:"merchant_id"`
	Amount        int64  `json:"amount"`
	Installments  int    `json:"installments"`
	PreferredRail string `json:"preferred_rail,omitempty"`
	Metadata      JSON   `json:"metadata,omitempty"`
}

// PaymentOutcome is the terminal (or in-flight) state of a settlement
// attempt as seen by the router.
type PaymentOutcome struct {
	TransactionID string     `json:"transaction_id"`
	Status        string     `json:"status"`
	Rail          string     `json:"rail,omitempty"`
	Fee           int64      `json:"fee"`
	NetAmount     int64      `json:"net_amount"`
	Attempts      int        `json:"attempts"`
	UsedFallback  bool       `json:"used_fallback"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// RoutingRule describes one rail's eligibility window and pricing.
// Rules are static per-router configuration.
type RoutingRule struct {
	Rail            string  `json:"rail"`
	MinAmount       int64   `json:"min_amount"`
	MaxAmount       int64   `json:"max_amount"`
	MaxInstallments int     `json:"max_installments"`
	FeePercent      float64 `json:"fee_percent"`
	Priority        int     `json:"priority"`
	Enabled         bool    `json:"enabled"`
}

// Eligible reports whether the rule admits the given amount and
// installment count.
func (r *RoutingRule) Eligible(amount int64, installments int) bool {
	if !r.Enabled {
		return false
	}
	if amount < r.MinAmount || amount > r.MaxAmount {
		return false
	}
	return installments <= r.MaxInstallments
}
