package risk

import "time"

// Penalty weights per check. The total is capped at maxScore.
const (
	penaltyBlacklist       = 50
	penaltyVelocity        = 30
	penaltyVelocityWarning = 15
	penaltyAmount          = 20
	penaltyLocation        = 20
	penaltyDistanceWarning = 10

	maxScore = 100
)

// Config holds the risk engine thresholds.
type Config struct {
	// VelocityThreshold is the max same-user transactions inside
	// VelocityWindow before the velocity check hard-fails.
	VelocityThreshold int
	VelocityWindow    time.Duration

	// MaxTransactionAmount is the hard per-transaction cap, in cents.
	MaxTransactionAmount int64
	// DailyAmountCap bounds amount plus the user's same-calendar-day
	// total, in cents.
	DailyAmountCap int64

	// MaxSpeedKmh is the maximum plausible travel speed between two
	// located transactions; GraceKm is allowed on top of it.
	MaxSpeedKmh float64
	GraceKm     float64

	// BlockScore is the score at or above which a transaction is blocked.
	BlockScore int

	// HistoryRetention caps the rolling per-user history. The source
	// system never pruned; bounding it is a deliberate deviation.
	HistoryRetention time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		VelocityThreshold:    5,
		VelocityWindow:       time.Hour,
		MaxTransactionAmount: 1_000_000,
		DailyAmountCap:       2_000_000,
		MaxSpeedKmh:          60,
		GraceKm:              100,
		BlockScore:           70,
		HistoryRetention:     48 * time.Hour,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = d.VelocityThreshold
	}
	if c.VelocityWindow <= 0 {
		c.VelocityWindow = d.VelocityWindow
	}
	if c.MaxTransactionAmount <= 0 {
		c.MaxTransactionAmount = d.MaxTransactionAmount
	}
	if c.DailyAmountCap <= 0 {
		c.DailyAmountCap = d.DailyAmountCap
	}
	if c.MaxSpeedKmh <= 0 {
		c.MaxSpeedKmh = d.MaxSpeedKmh
	}
	if c.GraceKm <= 0 {
		c.GraceKm = d.GraceKm
	}
	if c.BlockScore <= 0 {
		c.BlockScore = d.BlockScore
	}
	if c.HistoryRetention <= 0 {
		c.HistoryRetention = d.HistoryRetention
	}
}
