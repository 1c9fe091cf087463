// Package router selects a payment rail for a validated intent and
// executes the settlement with bounded retries, exponential backoff
// and a single fallback attempt on an alternate rail.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"parceltoken/internal/models"
)

// Service is the payment router. The routing table is static per
// instance; execution state lives entirely in the returned outcome.
type Service struct {
	rules      []models.RoutingRule
	executor   RailExecutor
	reconciler Reconciler // optional
	config     Config
}

// NewService creates a router over the given rule table. reconciler
// may be nil.
func NewService(rules []models.RoutingRule, executor RailExecutor, reconciler Reconciler, config Config) *Service {
	if executor == nil {
		panic("rail executor is required")
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	config.applyDefaults()

	return &Service{
		rules:      rules,
		executor:   executor,
		reconciler: reconciler,
		config:     config,
	}
}

// SelectRail picks the rail for an intent. A preferred rail wins when
// its rule admits the amount and installment count; otherwise the
// cheapest eligible enabled rule wins, ties broken by ascending
// priority.
func (s *Service) SelectRail(intent models.PaymentIntent) (*models.RoutingRule, error) {
	if intent.PreferredRail != "" {
		if rule := s.findRule(intent.PreferredRail); rule != nil && rule.Eligible(intent.Amount, intent.Installments) {
			return rule, nil
		}
	}

	var best *models.RoutingRule
	for i := range s.rules {
		rule := &s.rules[i]
		if !rule.Eligible(intent.Amount, intent.Installments) {
			continue
		}
		if best == nil ||
			rule.FeePercent < best.FeePercent ||
			(rule.FeePercent == best.FeePercent && rule.Priority < best.Priority) {
			best = rule
		}
	}
	if best == nil {
		return nil, ErrNoEligibleRail
	}
	return best, nil
}

// Execute settles the intent: up to MaxRetries attempts on the selected
// rail with exponential backoff, then one uncounted attempt on a
// fallback rail. Routing failure is terminal with no attempt made.
// The backoff waits honor ctx cancellation.
func (s *Service) Execute(ctx context.Context, intent models.PaymentIntent) (*models.PaymentOutcome, error) {
	outcome := &models.PaymentOutcome{
		TransactionID: intent.TransactionID,
		Status:        models.PaymentStatusPending,
	}

	rule, err := s.SelectRail(intent)
	if err != nil {
		outcome.Status = models.PaymentStatusFailed
		outcome.LastError = err.Error()
		return outcome, err
	}

	outcome.Status = models.PaymentStatusProcessing
	outcome.Rail = rule.Rail

	lastErr := s.attemptWithRetries(ctx, rule, intent, outcome)
	if lastErr == nil {
		s.complete(ctx, rule, intent.Amount, outcome)
		return outcome, nil
	}
	if ctx.Err() != nil {
		outcome.Status = models.PaymentStatusCancelled
		outcome.LastError = ctx.Err().Error()
		return outcome, ctx.Err()
	}

	var terminal *TerminalError
	if errors.As(lastErr, &terminal) {
		outcome.Status = models.PaymentStatusFailed
		outcome.LastError = terminal.Err.Error()
		return outcome, terminal.Err
	}

	// Primary rail exhausted; one fallback attempt, uncounted against
	// the retry budget.
	fallback := s.selectFallback(intent, rule.Rail)
	if fallback != nil {
		outcome.UsedFallback = true
		outcome.Attempts++
		if err := s.executor.Attempt(ctx, fallback.Rail, intent); err == nil {
			outcome.Rail = fallback.Rail
			s.complete(ctx, fallback, intent.Amount, outcome)
			return outcome, nil
		} else {
			lastErr = err
		}
	}

	outcome.Status = models.PaymentStatusFailed
	outcome.LastError = lastErr.Error()
	return outcome, fmt.Errorf("settlement failed after %d attempts: %w", outcome.Attempts, lastErr)
}

// attemptWithRetries runs the retry loop on one rail. Returns nil on
// success, ctx.Err on cancellation, or the last rail error.
func (s *Service) attemptWithRetries(ctx context.Context, rule *models.RoutingRule, intent models.PaymentIntent, outcome *models.PaymentOutcome) error {
	var lastErr error
	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		outcome.Attempts++
		lastErr = s.executor.Attempt(ctx, rule.Rail, intent)
		if lastErr == nil {
			return nil
		}

		var terminal *TerminalError
		if errors.As(lastErr, &terminal) {
			return lastErr
		}
		if attempt == s.config.MaxRetries-1 {
			break
		}

		delay := s.backoffDelay(attempt)
		next := time.Now().Add(delay)
		outcome.NextRetryAt = &next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	outcome.NextRetryAt = nil
	return lastErr
}

// backoffDelay computes initialDelay * multiplier^attempt, capped.
func (s *Service) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.config.InitialDelay) * math.Pow(s.config.BackoffMultiplier, float64(attempt)))
	if delay > s.config.MaxDelay {
		delay = s.config.MaxDelay
	}
	return delay
}

// selectFallback walks the configured preference order, skipping the
// failed rail and anything ineligible.
func (s *Service) selectFallback(intent models.PaymentIntent, failedRail string) *models.RoutingRule {
	for _, rail := range s.config.FallbackOrder {
		if rail == failedRail {
			continue
		}
		rule := s.findRule(rail)
		if rule != nil && rule.Eligible(intent.Amount, intent.Installments) {
			return rule
		}
	}
	return nil
}

func (s *Service) complete(ctx context.Context, rule *models.RoutingRule, amount int64, outcome *models.PaymentOutcome) {
	outcome.Status = models.PaymentStatusSuccess
	outcome.Fee = Fee(amount, rule.FeePercent)
	outcome.NetAmount = amount - outcome.Fee
	now := time.Now()
	outcome.CompletedAt = &now
	outcome.NextRetryAt = nil

	if s.reconciler != nil {
		if err := s.reconciler.Reconcile(ctx, *outcome); err != nil {
			log.Printf("reconcile failed for %s: %v", outcome.TransactionID, err)
		}
	}
}

func (s *Service) findRule(rail string) *models.RoutingRule {
	for i := range s.rules {
		if s.rules[i].Rail == rail {
			return &s.rules[i]
		}
	}
	return nil
}

// Fee computes the rail fee in cents, rounded half away from zero.
func Fee(amount int64, feePercent float64) int64 {
	return int64(math.Round(float64(amount) * feePercent / 100))
}

// Recommend returns quotes for every rule eligible for the amount and
// installment count, cheapest first. Pure lookup, no state mutated.
func (s *Service) Recommend(amount int64, installments int) []RailQuote {
	var quotes []RailQuote
	for i := range s.rules {
		rule := &s.rules[i]
		if !rule.Eligible(amount, installments) {
			continue
		}
		fee := Fee(amount, rule.FeePercent)
		quotes = append(quotes, RailQuote{
			Rail:       rule.Rail,
			FeePercent: rule.FeePercent,
			Fee:        fee,
			NetAmount:  amount - fee,
			Priority:   rule.Priority,
		})
	}
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].FeePercent != quotes[j].FeePercent {
			return quotes[i].FeePercent < quotes[j].FeePercent
		}
		return quotes[i].Priority < quotes[j].Priority
	})
	return quotes
}

// AverageCostByRail returns the mean fee percentage of each rail's
// enabled rules. Pure lookup, no state mutated.
func (s *Service) AverageCostByRail() map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rule := range s.rules {
		if !rule.Enabled {
			continue
		}
		sums[rule.Rail] += rule.FeePercent
		counts[rule.Rail]++
	}
	avg := make(map[string]float64, len(sums))
	for rail, sum := range sums {
		avg[rail] = sum / float64(counts[rail])
	}
	return avg
}
