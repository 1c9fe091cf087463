package models

import "time"

// Risk check names, used as keys in RiskResult.Checks and as flags.
const (
	RiskCheckBlacklist = "blacklist"
	RiskCheckVelocity  = "velocity"
	RiskCheckAmount    = "amount"
	RiskCheckLocation  = "location"
)

// Risk flags raised by individual checks.
const (
	FlagBlacklistedUser     = "blacklisted_user"
	FlagBlacklistedMerchant = "blacklisted_merchant"
	FlagBlacklistedDevice   = "blacklisted_device"
	FlagVelocityExceeded    = "velocity_exceeded"
	FlagVelocityWarning     = "velocity_warning"
	FlagAmountExceeded      = "amount_exceeded"
	FlagDailyAmountExceeded = "daily_amount_exceeded"
	FlagImplausibleTravel   = "implausible_travel"
	FlagDistanceWarning     = "distance_warning"
)

// GeoPoint is a WGS84 coordinate attached to a transaction attempt.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RiskContext is the input to a risk evaluation.
type RiskContext struct {
	TransactionID string    `json:"transaction_id"`
	UserID        uint      `json:"user_id"`
	MerchantID    uint      `json:"merchant_id"`
	Amount        int64     `json:"amount"`
	Rail          string    `json:"rail,omitempty"`
	IP            string    `json:"ip,omitempty"`
	DeviceID      string    `json:"device_id,omitempty"`
	Location      *GeoPoint `json:"location,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// RiskResult is the outcome of a risk evaluation. Checks maps a check
// name to whether it passed; a check absent from the map was not
// evaluated (blacklist hits short-circuit the rest).
type RiskResult struct {
	Score   int             `json:"score"`
	Blocked bool            `json:"blocked"`
	Flags   []string        `json:"flags"`
	Checks  map[string]bool `json:"checks"`
}

// RiskEvent is one retained entry of a user's rolling transaction
// history, feeding velocity and location checks.
type RiskEvent struct {
	UserID        uint      `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Location      *GeoPoint `json:"location,omitempty"`
	Blocked       bool      `json:"blocked"`
	Timestamp     time.Time `json:"timestamp"`
}
