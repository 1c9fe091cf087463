// Package risk scores incoming transaction attempts for fraud and
// abuse signals: blacklist hits, velocity, amount caps and implausible
// travel between located transactions.
package risk

import (
	"sync"
	"time"

	"parceltoken/internal/models"
)

// Service is the risk engine. It owns the rolling per-user transaction
// history that feeds the velocity and location checks; evaluating a
// transaction appends to that history, so checking is deliberately not
// a pure read.
type Service struct {
	config Config

	mu                   sync.Mutex
	history              map[uint][]models.RiskEvent
	blacklistedUsers     map[uint]struct{}
	blacklistedMerchants map[uint]struct{}
	blacklistedDevices   map[string]struct{}
}

// NewService creates a risk engine with the given thresholds; zero
// values fall back to DefaultConfig.
func NewService(config Config) *Service {
	config.applyDefaults()
	return &Service{
		config:               config,
		history:              make(map[uint][]models.RiskEvent),
		blacklistedUsers:     make(map[uint]struct{}),
		blacklistedMerchants: make(map[uint]struct{}),
		blacklistedDevices:   make(map[string]struct{}),
	}
}

// Check evaluates the transaction attempt. Checks run in fixed order:
// blacklist short-circuits everything else; velocity, amount and
// location accumulate weighted penalties. Except for blacklist hits,
// the attempt is appended to the user's rolling history whether or not
// it is blocked.
func (s *Service) Check(ctx models.RiskContext) models.RiskResult {
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := models.RiskResult{Checks: make(map[string]bool)}

	if flag, hit := s.blacklistHit(ctx); hit {
		result.Score = maxScore
		result.Blocked = true
		result.Flags = append(result.Flags, flag)
		result.Checks[models.RiskCheckBlacklist] = false
		return result
	}
	result.Checks[models.RiskCheckBlacklist] = true

	events := s.history[ctx.UserID]

	velocityFail := s.checkVelocity(&result, events, ctx)
	amountFail := s.checkAmount(&result, events, ctx)
	s.checkLocation(&result, events, ctx)

	if result.Score > maxScore {
		result.Score = maxScore
	}
	result.Blocked = result.Score >= s.config.BlockScore || velocityFail || amountFail

	s.append(ctx, result.Blocked)
	return result
}

func (s *Service) blacklistHit(ctx models.RiskContext) (string, bool) {
	if _, ok := s.blacklistedUsers[ctx.UserID]; ok {
		return models.FlagBlacklistedUser, true
	}
	if _, ok := s.blacklistedMerchants[ctx.MerchantID]; ok {
		return models.FlagBlacklistedMerchant, true
	}
	if ctx.DeviceID != "" {
		if _, ok := s.blacklistedDevices[ctx.DeviceID]; ok {
			return models.FlagBlacklistedDevice, true
		}
	}
	return "", false
}

// checkVelocity counts same-user transactions inside the trailing
// window. Reports whether the check hard-failed.
func (s *Service) checkVelocity(result *models.RiskResult, events []models.RiskEvent, ctx models.RiskContext) bool {
	cutoff := ctx.Timestamp.Add(-s.config.VelocityWindow)
	count := 0
	for _, ev := range events {
		if ev.Timestamp.After(cutoff) && !ev.Timestamp.After(ctx.Timestamp) {
			count++
		}
	}

	switch {
	case count >= s.config.VelocityThreshold:
		result.Score += penaltyVelocity
		result.Flags = append(result.Flags, models.FlagVelocityExceeded)
		result.Checks[models.RiskCheckVelocity] = false
		return true
	case count == s.config.VelocityThreshold-1:
		result.Score += penaltyVelocityWarning
		result.Flags = append(result.Flags, models.FlagVelocityWarning)
	}
	result.Checks[models.RiskCheckVelocity] = true
	return false
}

// checkAmount enforces the hard per-transaction cap and the daily
// accumulated cap. Reports whether the check hard-failed.
func (s *Service) checkAmount(result *models.RiskResult, events []models.RiskEvent, ctx models.RiskContext) bool {
	if ctx.Amount > s.config.MaxTransactionAmount {
		result.Score += penaltyAmount
		result.Flags = append(result.Flags, models.FlagAmountExceeded)
		result.Checks[models.RiskCheckAmount] = false
		return true
	}

	y, m, d := ctx.Timestamp.UTC().Date()
	var dailyTotal int64
	for _, ev := range events {
		ey, em, ed := ev.Timestamp.UTC().Date()
		if ey == y && em == m && ed == d {
			dailyTotal += ev.Amount
		}
	}
	if dailyTotal+ctx.Amount > s.config.DailyAmountCap {
		result.Score += penaltyAmount
		result.Flags = append(result.Flags, models.FlagDailyAmountExceeded)
		result.Checks[models.RiskCheckAmount] = false
		return true
	}

	result.Checks[models.RiskCheckAmount] = true
	return false
}

// checkLocation compares the attempt's coordinates with the
// immediately preceding located transaction and fails when the implied
// travel speed is physically implausible beyond the grace margin.
func (s *Service) checkLocation(result *models.RiskResult, events []models.RiskEvent, ctx models.RiskContext) {
	if ctx.Location == nil || len(events) == 0 {
		result.Checks[models.RiskCheckLocation] = true
		return
	}
	prev := events[len(events)-1]
	if prev.Location == nil {
		result.Checks[models.RiskCheckLocation] = true
		return
	}

	distanceKm := haversineKm(*prev.Location, *ctx.Location)
	elapsedHours := ctx.Timestamp.Sub(prev.Timestamp).Hours()
	if elapsedHours < 0 {
		elapsedHours = 0
	}
	plausibleKm := s.config.MaxSpeedKmh*elapsedHours + s.config.GraceKm

	switch {
	case distanceKm > plausibleKm:
		result.Score += penaltyLocation
		result.Flags = append(result.Flags, models.FlagImplausibleTravel)
		result.Checks[models.RiskCheckLocation] = false
	case distanceKm > s.config.MaxSpeedKmh*elapsedHours:
		// Inside the grace margin but beyond what travel explains.
		result.Score += penaltyDistanceWarning
		result.Flags = append(result.Flags, models.FlagDistanceWarning)
		result.Checks[models.RiskCheckLocation] = true
	default:
		result.Checks[models.RiskCheckLocation] = true
	}
}

// append records the evaluated attempt and prunes entries older than
// the retention window. Callers hold s.mu.
func (s *Service) append(ctx models.RiskContext, blocked bool) {
	events := append(s.history[ctx.UserID], models.RiskEvent{
		UserID:        ctx.UserID,
		TransactionID: ctx.TransactionID,
		Amount:        ctx.Amount,
		Location:      ctx.Location,
		Blocked:       blocked,
		Timestamp:     ctx.Timestamp,
	})
	s.history[ctx.UserID] = pruneBefore(events, ctx.Timestamp.Add(-s.config.HistoryRetention))
}

// Prune drops history entries older than the retention window across
// all users. Wired as a periodic maintenance task at process start.
func (s *Service) Prune(now time.Time) int {
	cutoff := now.Add(-s.config.HistoryRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, events := range s.history {
		kept := pruneBefore(events, cutoff)
		removed += len(events) - len(kept)
		if len(kept) == 0 {
			delete(s.history, userID)
		} else {
			s.history[userID] = kept
		}
	}
	return removed
}

func pruneBefore(events []models.RiskEvent, cutoff time.Time) []models.RiskEvent {
	idx := 0
	for idx < len(events) && !events[idx].Timestamp.After(cutoff) {
		idx++
	}
	return events[idx:]
}

// HistorySize returns the number of retained events for a user.
func (s *Service) HistorySize(userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history[userID])
}

// BlacklistUser adds a user to the blacklist.
func (s *Service) BlacklistUser(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklistedUsers[userID] = struct{}{}
}

// UnblacklistUser removes a user from the blacklist.
func (s *Service) UnblacklistUser(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blacklistedUsers, userID)
}

// BlacklistMerchant adds a merchant to the blacklist.
func (s *Service) BlacklistMerchant(merchantID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklistedMerchants[merchantID] = struct{}{}
}

// UnblacklistMerchant removes a merchant from the blacklist.
func (s *Service) UnblacklistMerchant(merchantID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blacklistedMerchants, merchantID)
}

// BlacklistDevice adds a device to the blacklist.
func (s *Service) BlacklistDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklistedDevices[deviceID] = struct{}{}
}

// UnblacklistDevice removes a device from the blacklist.
func (s *Service) UnblacklistDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blacklistedDevices, deviceID)
}
