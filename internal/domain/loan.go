package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InterestMethod selects how interest is computed over the life of a loan.
type InterestMethod string

const (
	// InterestMethodFlat computes interest once on the net principal and
	// spreads it evenly across the term.
	InterestMethodFlat InterestMethod = "flat"
	// InterestMethodDiminishing recomputes interest each period on the
	// remaining balance.
	InterestMethodDiminishing InterestMethod = "diminishing"
)

// LoanStatus is the lifecycle status of a loan account.
type LoanStatus string

const (
	LoanStatusActive LoanStatus = "Active"
	LoanStatusClosed LoanStatus = "Closed"
)

type Loan struct {
	ID             int32           `json:"id"`
	AccountNumber  string          `json:"accountNumber"`
	RefNumber      string          `json:"refNumber"`
	Principal      decimal.Decimal `json:"principal"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	TermMonths     int32           `json:"termMonths"`
	ServiceFeeRate decimal.Decimal `json:"serviceFeeRate"`
	Method         InterestMethod  `json:"method"`
	ReleaseDate    time.Time       `json:"releaseDate"`
	ServiceFee     decimal.Decimal `json:"serviceFee"`
	TotalPayable   decimal.Decimal `json:"totalPayable"`
	Status         LoanStatus      `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (l *Loan) Validate() error {
	if l.AccountNumber == "" {
		return ErrLoanAccountRequired
	}
	if l.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrLoanPrincipalInvalid
	}
	if l.TermMonths < 1 {
		return ErrLoanTermInvalid
	}
	if l.InterestRate.IsNegative() {
		return ErrLoanRateInvalid
	}
	if l.Method != InterestMethodFlat && l.Method != InterestMethodDiminishing {
		return ErrLoanMethodInvalid
	}
	return nil
}

type LoanRepository interface {
	Create(ctx context.Context, tx any, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, id int32) (*Loan, error)
	GetByRefNumber(ctx context.Context, ref string) (*Loan, error)
	// OutstandingBalance aggregates what is still owed across the loan's
	// schedule. It is a read-only view; the engine never stores it.
	OutstandingBalance(ctx context.Context, tx any, loanID int32) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, tx any, loanID int32, status LoanStatus) error
}

// TxManager runs a function inside a single database transaction. The opaque
// tx value it hands out is accepted by every repository method that takes one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(tx any) error) error
}
