package models

import "time"

// Installment statuses
const (
	InstallmentStatusPending      = "pending"
	InstallmentStatusPaid         = "paid"
	InstallmentStatusOverdue      = "overdue"
	InstallmentStatusRenegotiated = "renegotiated"
	InstallmentStatusCancelled    = "cancelled"
)

// Installment is one scheduled partial payment owed against a settled
// transaction. Amounts are in cents; Interest and Fine hold the last
// accrued values stamped by the collections engine.
type Installment struct {
	ID            string     `gorm:"primarykey" json:"id"`
	TransactionID string     `gorm:"index;not null" json:"transaction_id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	Sequence      int        `json:"sequence"`
	Amount        int64      `gorm:"not null" json:"amount"`
	DueDate       time.Time  `gorm:"index" json:"due_date"`
	Status        string     `gorm:"not null;default:'pending'" json:"status"`
	Interest      int64      `gorm:"default:0" json:"interest"`
	Fine          int64      `gorm:"default:0" json:"fine"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PaidAmount    int64      `gorm:"default:0" json:"paid_amount"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DaysOverdue returns whole days past the due date at t, never negative.
func (i *Installment) DaysOverdue(t time.Time) int {
	if !t.After(i.DueDate) {
		return 0
	}
	return int(t.Sub(i.DueDate).Hours() / 24)
}

// Open reports whether the installment still carries an obligation.
func (i *Installment) Open() bool {
	return i.Status == InstallmentStatusPending || i.Status == InstallmentStatusOverdue ||
		i.Status == InstallmentStatusRenegotiated
}
