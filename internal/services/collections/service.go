// Package collections services the installment ledger after
// settlement: interest and fine accrual, payment application,
// renegotiation, reminders and delinquency reporting.
package collections

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"parceltoken/internal/models"
	"parceltoken/internal/repositories"

	"github.com/google/uuid"
)

// Service is the collections engine. Accrual math is pure; only
// ApplyPayment and Renegotiate touch the ledger.
type Service struct {
	repo     repositories.InstallmentRepository
	events   EventSink
	notifier ReminderNotifier
	config   Config
}

// NewService creates a collections engine. events and notifier may be
// nil; no-ops are substituted.
func NewService(repo repositories.InstallmentRepository, events EventSink, notifier ReminderNotifier, config Config) *Service {
	if repo == nil {
		panic("installment repository is required")
	}
	if events == nil {
		events = NoopEventSink{}
	}
	if notifier == nil {
		notifier = NoopReminderNotifier{}
	}
	config.applyDefaults()

	return &Service{
		repo:     repo,
		events:   events,
		notifier: notifier,
		config:   config,
	}
}

// Accrue computes the interest and fine owed on an installment at
// asOf. Both are zero for paid installments and when nothing is
// overdue yet.
func (s *Service) Accrue(installment *models.Installment, asOf time.Time) (interest, fine int64) {
	if installment.Status == models.InstallmentStatusPaid ||
		installment.Status == models.InstallmentStatusCancelled {
		return 0, 0
	}
	days := installment.DaysOverdue(asOf)
	if days == 0 {
		return 0, 0
	}

	principal := float64(installment.Amount)

	interestF := principal * s.config.DailyInterestRate * float64(days)
	interestCap := principal * s.config.InterestCap
	if interestF > interestCap {
		interestF = interestCap
	}

	fineDays := days
	if fineDays > s.config.FineDayCap {
		fineDays = s.config.FineDayCap
	}
	fineF := principal*s.config.FineBase + principal*s.config.FineDailyRate*float64(fineDays)
	fineCap := principal * s.config.FineCap
	if fineF > fineCap {
		fineF = fineCap
	}

	return round(interestF), round(fineF)
}

// TotalDue returns principal plus accrued interest and fine at asOf.
// Zero for paid installments; exactly the principal when nothing is
// overdue.
func (s *Service) TotalDue(installment *models.Installment, asOf time.Time) int64 {
	if installment.Status == models.InstallmentStatusPaid ||
		installment.Status == models.InstallmentStatusCancelled {
		return 0
	}
	interest, fine := s.Accrue(installment, asOf)
	return installment.Amount + interest + fine
}

// ApplyPayment settles an installment in full. A payment below the
// total due is rejected outright and reported as a shortfall, never
// partially applied.
func (s *Service) ApplyPayment(ctx context.Context, installmentID string, paidAmount int64, asOf time.Time) (*PaymentResult, error) {
	installment, err := s.repo.GetByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if installment.Status == models.InstallmentStatusPaid {
		return nil, ErrAlreadyPaid
	}
	if installment.Status == models.InstallmentStatusCancelled {
		return nil, ErrNotPayable
	}

	totalDue := s.TotalDue(installment, asOf)
	if paidAmount < totalDue {
		return &PaymentResult{
			Success:   false,
			TotalDue:  totalDue,
			Remaining: totalDue - paidAmount,
			NewStatus: installment.Status,
		}, nil
	}

	interest, fine := s.Accrue(installment, asOf)
	installment.Status = models.InstallmentStatusPaid
	installment.Interest = interest
	installment.Fine = fine
	installment.PaidAmount = paidAmount
	paidAt := asOf
	installment.PaidAt = &paidAt

	if err := s.repo.Update(ctx, installment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	s.events.InstallmentPaid(ctx, installment)

	return &PaymentResult{
		Success:   true,
		TotalDue:  totalDue,
		NewStatus: models.InstallmentStatusPaid,
	}, nil
}

// DueReminder decides which reminder, if any, applies at the given
// number of days until due. Callers invoke it once per day per
// installment; each boundary fires exactly once under that cadence.
func (s *Service) DueReminder(installment *models.Installment, daysUntilDue int) string {
	if !installment.Open() {
		return ReminderNone
	}
	switch {
	case daysUntilDue == 7:
		return ReminderSevenDays
	case daysUntilDue == 3:
		return ReminderThreeDays
	case daysUntilDue == 1:
		return ReminderOneDay
	case daysUntilDue < 0:
		return ReminderOverdue
	}
	return ReminderNone
}

// SendReminders scans the open ledger and dispatches reminder
// decisions to the notifier. Intended to run once per day.
func (s *Service) SendReminders(ctx context.Context, asOf time.Time) (int, error) {
	open, err := s.repo.ListOpen(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range open {
		installment := &open[i]
		daysUntilDue := int(installment.DueDate.Sub(asOf).Hours() / 24)
		if asOf.After(installment.DueDate) {
			daysUntilDue = -installment.DaysOverdue(asOf)
			if daysUntilDue == 0 {
				daysUntilDue = -1 // past due but under a day
			}
		}
		if reminder := s.DueReminder(installment, daysUntilDue); reminder != ReminderNone {
			s.notifier.ReminderDue(ctx, installment, reminder)
			sent++
		}
	}
	return sent, nil
}

// Renegotiate restructures an unpaid installment onto a new schedule
// with a flat surcharge on the outstanding total. The old installment
// is cancelled; total value is preserved across the replacements.
func (s *Service) Renegotiate(ctx context.Context, req RenegotiateRequest) (*RenegotiationResult, error) {
	installment, err := s.repo.GetByID(ctx, req.InstallmentID)
	if err != nil {
		return nil, err
	}
	if installment.Status == models.InstallmentStatusPaid {
		return nil, ErrAlreadyPaid
	}
	if installment.Status == models.InstallmentStatusCancelled {
		return nil, ErrNotPayable
	}

	now := time.Now()
	if !req.NewDueDate.After(now) {
		return nil, ErrPastDueDate
	}
	count := req.NewInstallmentCount
	if count < 0 {
		return nil, ErrInvalidSplit
	}
	if count == 0 {
		count = 1
	}

	outstanding := s.TotalDue(installment, now)
	newTotal := outstanding + round(float64(outstanding)*s.config.Surcharge)
	surcharge := newTotal - outstanding

	replacements := splitSchedule(installment, newTotal, count, now, req.NewDueDate)

	installment.Status = models.InstallmentStatusCancelled
	if err := s.repo.Update(ctx, installment); err != nil {
		return nil, fmt.Errorf("failed to retire installment: %w", err)
	}
	batch := make([]*models.Installment, len(replacements))
	for i := range replacements {
		batch[i] = &replacements[i]
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create renegotiated schedule: %w", err)
	}
	s.events.InstallmentsRenegotiated(ctx, installment, replacements)

	return &RenegotiationResult{
		Installments: replacements,
		TotalAmount:  newTotal,
		Surcharge:    surcharge,
		Reason:       req.Reason,
	}, nil
}

// splitSchedule divides total evenly across count installments with
// due dates spaced evenly between now and finalDue. Remainder cents go
// to the earliest installments so the sum is exact.
func splitSchedule(original *models.Installment, total int64, count int, now, finalDue time.Time) []models.Installment {
	base := total / int64(count)
	remainder := total - base*int64(count)
	interval := finalDue.Sub(now) / time.Duration(count)

	replacements := make([]models.Installment, count)
	for i := 0; i < count; i++ {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		due := now.Add(interval * time.Duration(i+1))
		if i == count-1 {
			due = finalDue
		}
		replacements[i] = models.Installment{
			ID:            uuid.NewString(),
			TransactionID: original.TransactionID,
			UserID:        original.UserID,
			Sequence:      i + 1,
			Amount:        amount,
			DueDate:       due,
			Status:        models.InstallmentStatusRenegotiated,
		}
	}
	return replacements
}

// Metrics aggregates the given installments at asOf. Interest and fine
// totals combine stamped values on settled records with live accrual
// on open ones.
func (s *Service) Metrics(installments []models.Installment, asOf time.Time) BillingMetrics {
	metrics := BillingMetrics{CountByStatus: make(map[string]int)}

	overdueCount := 0
	overdueDays := 0
	for i := range installments {
		installment := &installments[i]
		metrics.Total++
		metrics.CountByStatus[installment.Status]++
		metrics.TotalAmount += installment.Amount
		metrics.TotalPaid += installment.PaidAmount

		if installment.Status == models.InstallmentStatusPaid {
			metrics.TotalInterest += installment.Interest
			metrics.TotalFines += installment.Fine
			continue
		}
		if installment.Open() {
			interest, fine := s.Accrue(installment, asOf)
			metrics.TotalInterest += interest
			metrics.TotalFines += fine
			if days := installment.DaysOverdue(asOf); days > 0 {
				overdueCount++
				overdueDays += days
			}
		}
	}

	if metrics.Total > 0 {
		metrics.DelinquencyRate = float64(overdueCount) / float64(metrics.Total) * 100
	}
	if overdueCount > 0 {
		metrics.AvgDaysOverdue = float64(overdueDays) / float64(overdueCount)
	}
	return metrics
}

// DelinquencyReport buckets overdue installments into aging bands and
// ranks the top debtors by total amount currently due.
func (s *Service) DelinquencyReport(installments []models.Installment, asOf time.Time) DelinquencyReport {
	report := DelinquencyReport{
		AgingBuckets: map[string]int{
			"1-7":   0,
			"8-15":  0,
			"16-30": 0,
			"31-60": 0,
			"60+":   0,
		},
	}

	totals := make(map[uint]*Debtor)
	for i := range installments {
		installment := &installments[i]
		if !installment.Open() {
			continue
		}
		days := installment.DaysOverdue(asOf)
		if days == 0 {
			continue
		}

		report.TotalOverdue++
		report.AgingBuckets[agingBucket(days)]++

		debtor, ok := totals[installment.UserID]
		if !ok {
			debtor = &Debtor{UserID: installment.UserID}
			totals[installment.UserID] = debtor
		}
		debtor.OverdueCount++
		debtor.TotalOverdue += s.TotalDue(installment, asOf)
	}

	for _, debtor := range totals {
		report.TopDebtors = append(report.TopDebtors, *debtor)
	}
	sort.Slice(report.TopDebtors, func(i, j int) bool {
		if report.TopDebtors[i].TotalOverdue != report.TopDebtors[j].TotalOverdue {
			return report.TopDebtors[i].TotalOverdue > report.TopDebtors[j].TotalOverdue
		}
		return report.TopDebtors[i].UserID < report.TopDebtors[j].UserID
	})
	if len(report.TopDebtors) > s.config.TopDebtors {
		report.TopDebtors = report.TopDebtors[:s.config.TopDebtors]
	}
	return report
}

func agingBucket(days int) string {
	switch {
	case days <= 7:
		return "1-7"
	case days <= 15:
		return "8-15"
	case days <= 30:
		return "16-30"
	case days <= 60:
		return "31-60"
	default:
		return "60+"
	}
}

func round(f float64) int64 {
	return int64(math.Round(f))
}
