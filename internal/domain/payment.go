package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus tags how an allocation step was applied.
type PaymentStatus string

const (
	// PaymentStatusFull marks a step that settled its installment in full.
	PaymentStatusFull PaymentStatus = "Full"
	// PaymentStatusPartial marks a step that left its installment partially paid.
	PaymentStatusPartial PaymentStatus = "Partial"
	// PaymentStatusAutoApplied marks overflow pushed onto the next open installment.
	PaymentStatusAutoApplied PaymentStatus = "auto-applied"
	// PaymentStatusOverpayment marks money received with no installment to apply
	// it to. It is surfaced as a standalone record, never silently dropped.
	PaymentStatusOverpayment PaymentStatus = "overpayment"
)

// PaymentRecord is one ledger row describing how a slice of a submitted
// payment was applied. A single submission may produce several records, one
// per installment it touched.
type PaymentRecord struct {
	ID            uuid.UUID       `json:"id"`
	ScheduleID    *int32          `json:"scheduleId,omitempty"`
	LoanID        int32           `json:"loanId"`
	AccountNumber string          `json:"accountNumber"`
	LoanRefNumber string          `json:"loanRefNumber"`
	Method        string          `json:"method"`
	Date          time.Time       `json:"date"`
	ReceiptNo     string          `json:"receiptNo"`
	Amount        decimal.Decimal `json:"amount"`
	PrincipalPaid decimal.Decimal `json:"principalPaid"`
	InterestPaid  decimal.Decimal `json:"interestPaid"`
	FeePaid       decimal.Decimal `json:"feePaid"`
	Status        PaymentStatus   `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type PaymentRepository interface {
	Insert(ctx context.Context, tx any, rec *PaymentRecord) error
	Update(ctx context.Context, tx any, rec *PaymentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)
}
