package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// LoanStatusPolicy selects how loan lifecycle status reacts to the
// outstanding balance after an allocation.
type LoanStatusPolicy string

const (
	// LoanStatusPolicyCloseOnly closes a loan once its outstanding balance
	// reaches zero and never reopens it. This is the default contract.
	LoanStatusPolicyCloseOnly LoanStatusPolicy = "close-only"
	// LoanStatusPolicyResync rewrites Active/Closed from the balance sign on
	// every resolution, reopening a loan if a reversal leaves money owed.
	LoanStatusPolicyResync LoanStatusPolicy = "resync"
)

// LoanService handles loan origination and lifecycle status
type LoanService struct {
	txm          domain.TxManager
	loanRepo     domain.LoanRepository
	scheduleRepo domain.ScheduleRepository
	statusPolicy LoanStatusPolicy
}

// NewLoanService creates a new LoanService
func NewLoanService(txm domain.TxManager, loanRepo domain.LoanRepository, scheduleRepo domain.ScheduleRepository, statusPolicy LoanStatusPolicy) *LoanService {
	if statusPolicy != LoanStatusPolicyResync {
		statusPolicy = LoanStatusPolicyCloseOnly
	}
	return &LoanService{
		txm:          txm,
		loanRepo:     loanRepo,
		scheduleRepo: scheduleRepo,
		statusPolicy: statusPolicy,
	}
}

// CreateLoanInput contains input for originating a loan
type CreateLoanInput struct {
	AccountNumber  string
	RefNumber      string
	Principal      decimal.Decimal
	InterestRate   decimal.Decimal
	TermMonths     int32
	ServiceFeeRate decimal.Decimal
	Method         domain.InterestMethod
	ReleaseDate    time.Time
}

// CreateLoan originates a loan: it computes the amortization schedule from
// the terms and inserts the loan together with its full installment batch in
// one transaction.
func (s *LoanService) CreateLoan(ctx context.Context, in CreateLoanInput) (*domain.Loan, error) {
	loan := &domain.Loan{
		AccountNumber:  strings.TrimSpace(in.AccountNumber),
		RefNumber:      strings.TrimSpace(in.RefNumber),
		Principal:      in.Principal,
		InterestRate:   in.InterestRate,
		TermMonths:     in.TermMonths,
		ServiceFeeRate: in.ServiceFeeRate,
		Method:         in.Method,
		ReleaseDate:    in.ReleaseDate,
		Status:         domain.LoanStatusActive,
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	if loan.RefNumber == "" {
		return nil, domain.ErrLoanRefRequired
	}

	result := ComputeAmortization(AmortizationInput{
		Principal:      in.Principal,
		AnnualRate:     in.InterestRate,
		TermMonths:     int(in.TermMonths),
		ServiceFeeRate: in.ServiceFeeRate,
		StartDate:      in.ReleaseDate,
		Method:         in.Method,
	}, true)
	if len(result.Schedule) == 0 {
		// Terms that only make sense as an exploratory preview cannot back a
		// released loan.
		return nil, domain.ErrInvalidInput
	}

	loan.ServiceFee = result.ServiceFee
	loan.TotalPayable = result.TotalPayable

	err := s.txm.WithinTx(ctx, func(tx any) error {
		created, err := s.loanRepo.Create(ctx, tx, loan)
		if err != nil {
			return fmt.Errorf("create loan: %w", err)
		}
		loan = created

		entries := make([]*domain.ScheduleEntry, len(result.Schedule))
		for i := range result.Schedule {
			e := result.Schedule[i]
			e.LoanID = loan.ID
			entries[i] = &e
		}
		if err := s.scheduleRepo.CreateBatch(ctx, tx, entries); err != nil {
			return fmt.Errorf("seed schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// PreviewLoan runs the calculator without touching persistence. Degenerate
// terms come back as an all-zero result, never an error, so the caller can
// recompute on every keystroke.
func (s *LoanService) PreviewLoan(in CreateLoanInput) AmortizationResult {
	return ComputeAmortization(AmortizationInput{
		Principal:      in.Principal,
		AnnualRate:     in.InterestRate,
		TermMonths:     int(in.TermMonths),
		ServiceFeeRate: in.ServiceFeeRate,
		StartDate:      in.ReleaseDate,
		Method:         in.Method,
	}, true)
}

// GetLoan retrieves a loan by ID
func (s *LoanService) GetLoan(ctx context.Context, id int32) (*domain.Loan, error) {
	return s.loanRepo.GetByID(ctx, id)
}

// GetSchedule retrieves the full installment schedule for a loan
func (s *LoanService) GetSchedule(ctx context.Context, loanID int32) ([]*domain.ScheduleEntry, error) {
	if _, err := s.loanRepo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.scheduleRepo.ListByLoan(ctx, loanID)
}

// ResolveStatusTx reads the loan's outstanding balance and conditionally
// transitions its lifecycle status, inside the caller's transaction.
//
// Under the default close-only policy the transition is one-directional:
// the loan closes when the balance reaches zero and is otherwise left
// untouched. The resync policy instead rewrites the status from the balance
// sign on every call.
func (s *LoanService) ResolveStatusTx(ctx context.Context, tx any, loanID int32) error {
	balance, err := s.loanRepo.OutstandingBalance(ctx, tx, loanID)
	if err != nil {
		return err
	}
	balance = balance.Round(2)

	if s.statusPolicy == LoanStatusPolicyResync {
		status := domain.LoanStatusActive
		if !balance.IsPositive() {
			status = domain.LoanStatusClosed
		}
		return s.loanRepo.UpdateStatus(ctx, tx, loanID, status)
	}

	if !balance.IsPositive() {
		return s.loanRepo.UpdateStatus(ctx, tx, loanID, domain.LoanStatusClosed)
	}
	return nil
}
