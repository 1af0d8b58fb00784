package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleStatus is the payment status of a single installment.
type ScheduleStatus string

const (
	ScheduleStatusUnpaid        ScheduleStatus = "UNPAID"
	ScheduleStatusPartiallyPaid ScheduleStatus = "PARTIALLY PAID"
	ScheduleStatusPaid          ScheduleStatus = "PAID"
)

// ScheduleEntry is one installment of a loan's amortization schedule. Entries
// are created in a batch at loan release and never deleted; only payment
// allocation mutates them afterwards.
type ScheduleEntry struct {
	ID            int32           `json:"id"`
	LoanID        int32           `json:"loanId"`
	InstallmentNo int32           `json:"installmentNo"`
	DueDate       time.Time       `json:"dueDate"`
	PrincipalDue  decimal.Decimal `json:"principalDue"`
	InterestDue   decimal.Decimal `json:"interestDue"`
	FeeDue        decimal.Decimal `json:"feeDue"`
	TotalDue      decimal.Decimal `json:"totalDue"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	Paid          bool            `json:"paid"`
	Status        ScheduleStatus  `json:"status"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// RemainingDue is what is still owed on this installment.
func (s *ScheduleEntry) RemainingDue() decimal.Decimal {
	return s.TotalDue.Sub(s.AmountPaid)
}

// ResolveScheduleStatus derives an installment's status from its cumulative
// paid amount. Comparisons operate on values rounded to 2 decimal places.
func ResolveScheduleStatus(amountPaid, totalDue decimal.Decimal) ScheduleStatus {
	paid := amountPaid.Round(2)
	due := totalDue.Round(2)
	switch {
	case paid.IsZero():
		return ScheduleStatusUnpaid
	case paid.GreaterThanOrEqual(due):
		return ScheduleStatusPaid
	default:
		return ScheduleStatusPartiallyPaid
	}
}

type ScheduleRepository interface {
	CreateBatch(ctx context.Context, tx any, entries []*ScheduleEntry) error
	GetByID(ctx context.Context, id int32) (*ScheduleEntry, error)
	ListByLoan(ctx context.Context, loanID int32) ([]*ScheduleEntry, error)
	// ListOpenByLoan returns entries with status != PAID ordered by ascending
	// due date, so the earliest obligation is settled first.
	ListOpenByLoan(ctx context.Context, tx any, loanID int32) ([]*ScheduleEntry, error)
	// ListTouchedByLoan returns entries with amount_paid != 0 ordered by
	// descending due date, so reversals unwind the most recent obligation first.
	ListTouchedByLoan(ctx context.Context, tx any, loanID int32) ([]*ScheduleEntry, error)
	// UpdateAllocation persists the allocation-owned fields of an entry:
	// amount_paid, paid, status and paid_at.
	UpdateAllocation(ctx context.Context, tx any, entry *ScheduleEntry) error
}
