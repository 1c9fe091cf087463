package router

import (
	"context"
	"time"

	"parceltoken/internal/models"
)

// RailExecutor is the payment-rail collaborator: the actual gateway
// call. A returned error is retried per policy unless wrapped with
// Terminal.
type RailExecutor interface {
	Attempt(ctx context.Context, rail string, intent models.PaymentIntent) error
}

// Reconciler is invoked after a successful settlement. Implementations
// must tolerate more than one invocation for the same transaction id.
type Reconciler interface {
	Reconcile(ctx context.Context, outcome models.PaymentOutcome) error
}

// Config holds the retry, backoff and fallback policy.
type Config struct {
	MaxRetries        int           // attempts on the selected rail, default 3
	InitialDelay      time.Duration // default 100ms
	BackoffMultiplier float64       // default 2
	MaxDelay          time.Duration // backoff cap, default 5s
	FallbackOrder     []string      // preference order for the single fallback attempt
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if len(c.FallbackOrder) == 0 {
		c.FallbackOrder = []string{models.RailPix, models.RailCard, models.RailBoleto}
	}
}

// RailQuote is one entry of a cost-comparison query.
type RailQuote struct {
	Rail       string  `json:"rail"`
	FeePercent float64 `json:"fee_percent"`
	Fee        int64   `json:"fee"`
	NetAmount  int64   `json:"net_amount"`
	Priority   int     `json:"priority"`
}

// DefaultRules is the routing table used unless the caller supplies
// its own. Amounts in cents.
func DefaultRules() []models.RoutingRule {
	return []models.RoutingRule{
		{Rail: models.RailParcelToken, MinAmount: 1, MaxAmount: 500_000, MaxInstallments: 24, FeePercent: 0.49, Priority: 1, Enabled: true},
		{Rail: models.RailPix, MinAmount: 1, MaxAmount: 10_000_000, MaxInstallments: 12, FeePercent: 0.99, Priority: 1, Enabled: true},
		{Rail: models.RailBoleto, MinAmount: 1_000, MaxAmount: 5_000_000, MaxInstallments: 1, FeePercent: 1.99, Priority: 2, Enabled: true},
		{Rail: models.RailCard, MinAmount: 1, MaxAmount: 2_000_000, MaxInstallments: 12, FeePercent: 2.99, Priority: 3, Enabled: true},
	}
}
