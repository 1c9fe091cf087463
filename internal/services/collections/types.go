package collections

import (
	"context"
	"time"

	"parceltoken/internal/models"
)

// Reminder decisions emitted by DueReminder.
const (
	ReminderSevenDays = "REMINDER_7_DAYS"
	ReminderThreeDays = "REMINDER_3_DAYS"
	ReminderOneDay    = "REMINDER_1_DAY"
	ReminderOverdue   = "OVERDUE"
	ReminderNone      = ""
)

// Config holds the billing policy. Rates are fractions (0.001 = 0.1%).
type Config struct {
	DailyInterestRate float64 // default 0.001
	InterestCap       float64 // fraction of principal, default 0.30
	FineBase          float64 // flat fraction once overdue, default 0.02
	FineDailyRate     float64 // per-day fraction, default 0.001
	FineDayCap        int     // days counted toward the daily fine, default 80
	FineCap           float64 // fraction of principal, default 0.10
	Surcharge         float64 // renegotiation surcharge, default 0.01
	TopDebtors        int     // entries in the delinquency ranking, default 10
}

// DefaultConfig returns the billing defaults.
func DefaultConfig() Config {
	return Config{
		DailyInterestRate: 0.001,
		InterestCap:       0.30,
		FineBase:          0.02,
		FineDailyRate:     0.001,
		FineDayCap:        80,
		FineCap:           0.10,
		Surcharge:         0.01,
		TopDebtors:        10,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.DailyInterestRate <= 0 {
		c.DailyInterestRate = d.DailyInterestRate
	}
	if c.InterestCap <= 0 {
		c.InterestCap = d.InterestCap
	}
	if c.FineBase <= 0 {
		c.FineBase = d.FineBase
	}
	if c.FineDailyRate <= 0 {
		c.FineDailyRate = d.FineDailyRate
	}
	if c.FineDayCap <= 0 {
		c.FineDayCap = d.FineDayCap
	}
	if c.FineCap <= 0 {
		c.FineCap = d.FineCap
	}
	if c.Surcharge <= 0 {
		c.Surcharge = d.Surcharge
	}
	if c.TopDebtors <= 0 {
		c.TopDebtors = d.TopDebtors
	}
}

// PaymentResult reports the outcome of applying a payment. Remaining
// is the shortfall when Success is false.
type PaymentResult struct {
	Success   bool   `json:"success"`
	TotalDue  int64  `json:"total_due"`
	Remaining int64  `json:"remaining"`
	NewStatus string `json:"new_status"`
}

// RenegotiateRequest restructures an installment onto a new schedule.
type RenegotiateRequest struct {
	InstallmentID string
	NewDueDate    time.Time
	// NewInstallmentCount splits the renegotiated total across N new
	// installments; 0 or 1 produces a single deferred installment.
	NewInstallmentCount int
	Reason              string
}

// RenegotiationResult carries the replacement schedule.
type RenegotiationResult struct {
	Installments []models.Installment `json:"installments"`
	TotalAmount  int64                `json:"total_amount"`
	Surcharge    int64                `json:"surcharge"`
	Reason       string               `json:"reason,omitempty"`
}

// BillingMetrics aggregates the installment portfolio.
type BillingMetrics struct {
	Total           int              `json:"total"`
	CountByStatus   map[string]int   `json:"count_by_status"`
	TotalAmount     int64            `json:"total_amount"`
	TotalPaid       int64            `json:"total_paid"`
	TotalInterest   int64            `json:"total_interest"`
	TotalFines      int64            `json:"total_fines"`
	DelinquencyRate float64          `json:"delinquency_rate"`
	AvgDaysOverdue  float64          `json:"avg_days_overdue"`
}

// Debtor is one entry of the delinquency ranking.
type Debtor struct {
	UserID       uint  `json:"user_id"`
	OverdueCount int   `json:"overdue_count"`
	TotalOverdue int64 `json:"total_overdue"`
}

// DelinquencyReport buckets overdue installments by age and ranks the
// largest debtors by total amount currently due.
type DelinquencyReport struct {
	TotalOverdue int            `json:"total_overdue"`
	AgingBuckets map[string]int `json:"aging_buckets"`
	TopDebtors   []Debtor       `json:"top_debtors"`
}

// EventSink receives billing state transitions. At-least-once
// delivery; the engine does not block on it.
type EventSink interface {
	InstallmentPaid(ctx context.Context, installment *models.Installment)
	InstallmentsRenegotiated(ctx context.Context, original *models.Installment, replacements []models.Installment)
}

// NoopEventSink discards all events.
type NoopEventSink struct{}

func (NoopEventSink) InstallmentPaid(context.Context, *models.Installment) {}
func (NoopEventSink) InstallmentsRenegotiated(context.Context, *models.Installment, []models.Installment) {
}

// ReminderNotifier receives due-reminder decisions.
type ReminderNotifier interface {
	ReminderDue(ctx context.Context, installment *models.Installment, reminder string)
}

// NoopReminderNotifier discards all reminders.
type NoopReminderNotifier struct{}

func (NoopReminderNotifier) ReminderDue(context.Context, *models.Installment, string) {}
