package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService distributes incoming payments and reversals across a loan's
// installment schedule and keeps the loan's lifecycle status in sync.
//
// Every operation runs inside a single transaction and is serialized per loan
// id, so two concurrent submissions can never observe the same stale
// remaining-due figures and double-allocate an installment.
type PaymentService struct {
	txm          domain.TxManager
	loanRepo     domain.LoanRepository
	scheduleRepo domain.ScheduleRepository
	paymentRepo  domain.PaymentRepository
	loanService  *LoanService

	mu        sync.Mutex
	loanLocks map[int32]*sync.Mutex
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(txm domain.TxManager, loanRepo domain.LoanRepository, scheduleRepo domain.ScheduleRepository, paymentRepo domain.PaymentRepository, loanService *LoanService) *PaymentService {
	return &PaymentService{
		txm:          txm,
		loanRepo:     loanRepo,
		scheduleRepo: scheduleRepo,
		paymentRepo:  paymentRepo,
		loanService:  loanService,
		loanLocks:    make(map[int32]*sync.Mutex),
	}
}

// AllocatePaymentInput contains one payment submission.
type AllocatePaymentInput struct {
	LoanRefNumber string
	AccountNumber string
	Amount        decimal.Decimal
	Method        string
	Date          time.Time
	ReceiptNo     string
}

// AllocatePayment applies a signed amount against a loan's schedule. A
// positive amount is distributed earliest-due-first and returns the ledger
// records describing exactly how it was applied; a negative amount unwinds
// previously applied money (see ReversePayment) and returns no records.
func (s *PaymentService) AllocatePayment(ctx context.Context, in AllocatePaymentInput) ([]*domain.PaymentRecord, error) {
	if in.LoanRefNumber == "" {
		return nil, domain.ErrLoanRefRequired
	}
	if in.Amount.IsZero() {
		return nil, domain.ErrPaymentAmountInvalid
	}
	if in.Amount.IsNegative() {
		if err := s.ReversePayment(ctx, in.LoanRefNumber, in.Amount.Abs()); err != nil {
			return nil, err
		}
		return []*domain.PaymentRecord{}, nil
	}

	loan, err := s.loanRepo.GetByRefNumber(ctx, in.LoanRefNumber)
	if err != nil {
		return nil, err
	}

	unlock := s.lockLoan(loan.ID)
	defer unlock()

	var records []*domain.PaymentRecord
	err = s.txm.WithinTx(ctx, func(tx any) error {
		records, err = s.allocate(ctx, tx, loan, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// allocate walks the open installments earliest due date first, settling each
// one before moving on. Installment processing is strictly sequential: each
// entry's remaining due depends on the residual left by the one before it.
func (s *PaymentService) allocate(ctx context.Context, tx any, loan *domain.Loan, in AllocatePaymentInput) ([]*domain.PaymentRecord, error) {
	entries, err := s.scheduleRepo.ListOpenByLoan(ctx, tx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("list open schedules: %w", err)
	}

	paidAt := in.Date
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	remaining := in.Amount
	records := make([]*domain.PaymentRecord, 0, len(entries))

	for _, entry := range entries {
		if !remaining.IsPositive() {
			break
		}
		remainingDue := entry.RemainingDue()
		if !remainingDue.IsPositive() {
			continue
		}

		allocation := decimal.Min(remaining, remainingDue)
		fee, interest, principal := splitAllocation(allocation, entry)

		entry.AmountPaid = entry.AmountPaid.Add(allocation)
		entry.Status = domain.ResolveScheduleStatus(entry.AmountPaid, entry.TotalDue)
		entry.Paid = entry.Status == domain.ScheduleStatusPaid
		if entry.AmountPaid.IsPositive() {
			t := paidAt
			entry.PaidAt = &t
		}
		if err := s.scheduleRepo.UpdateAllocation(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("update schedule %d: %w", entry.ID, err)
		}

		tag := domain.PaymentStatusPartial
		if entry.Status == domain.ScheduleStatusPaid {
			tag = domain.PaymentStatusFull
		}
		rec := s.newRecord(loan, in, entry, allocation, principal, interest, fee, tag)
		if err := s.paymentRepo.Insert(ctx, tx, rec); err != nil {
			return nil, fmt.Errorf("insert payment record: %w", err)
		}
		records = append(records, rec)

		remaining = remaining.Sub(allocation)
	}

	if remaining.IsPositive() {
		rec, err := s.applyOverflow(ctx, tx, loan, in, entries, remaining, paidAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := s.loanService.ResolveStatusTx(ctx, tx, loan.ID); err != nil {
		return nil, fmt.Errorf("resolve loan status: %w", err)
	}
	return records, nil
}

// applyOverflow handles money left after every open installment is settled.
// It lands entirely on the next installment that is still not fully paid,
// tagged auto-applied and forced to PARTIALLY PAID; with no such installment
// it becomes a standalone overpayment record, never silently dropped.
func (s *PaymentService) applyOverflow(ctx context.Context, tx any, loan *domain.Loan, in AllocatePaymentInput, entries []*domain.ScheduleEntry, remaining decimal.Decimal, paidAt time.Time) (*domain.PaymentRecord, error) {
	for _, entry := range entries {
		if entry.Status == domain.ScheduleStatusPaid {
			continue
		}

		fee, interest, principal := splitAllocation(remaining, entry)
		entry.AmountPaid = entry.AmountPaid.Add(remaining)
		entry.Status = domain.ScheduleStatusPartiallyPaid
		entry.Paid = false
		t := paidAt
		entry.PaidAt = &t
		if err := s.scheduleRepo.UpdateAllocation(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("update schedule %d: %w", entry.ID, err)
		}

		rec := s.newRecord(loan, in, entry, remaining, principal, interest, fee, domain.PaymentStatusAutoApplied)
		if err := s.paymentRepo.Insert(ctx, tx, rec); err != nil {
			return nil, fmt.Errorf("insert payment record: %w", err)
		}
		return rec, nil
	}

	rec := s.newRecord(loan, in, nil, remaining, remaining, decimal.Zero, decimal.Zero, domain.PaymentStatusOverpayment)
	if err := s.paymentRepo.Insert(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("insert overpayment record: %w", err)
	}
	return rec, nil
}

// ReversePayment unwinds a previously applied amount. It mirrors forward
// allocation but walks installments with money on them by descending due
// date, so the most recently incurred obligation is undone first. An amount
// exceeding everything applied on the schedule is rejected outright rather
// than partially consumed. Reversal mutates schedule state only; adjusting or
// removing the originating payment record is the caller's responsibility.
func (s *PaymentService) ReversePayment(ctx context.Context, loanRef string, amount decimal.Decimal) error {
	if loanRef == "" {
		return domain.ErrLoanRefRequired
	}
	if !amount.IsPositive() {
		return domain.ErrPaymentAmountInvalid
	}

	loan, err := s.loanRepo.GetByRefNumber(ctx, loanRef)
	if err != nil {
		return err
	}

	unlock := s.lockLoan(loan.ID)
	defer unlock()

	return s.txm.WithinTx(ctx, func(tx any) error {
		entries, err := s.scheduleRepo.ListTouchedByLoan(ctx, tx, loan.ID)
		if err != nil {
			return fmt.Errorf("list touched schedules: %w", err)
		}

		available := decimal.Zero
		for _, entry := range entries {
			available = available.Add(entry.AmountPaid)
		}
		if amount.GreaterThan(available) {
			return domain.ErrReversalExceedsPaid
		}

		remaining := amount
		for _, entry := range entries {
			if !remaining.IsPositive() {
				break
			}
			step := decimal.Min(remaining, entry.AmountPaid)
			entry.AmountPaid = entry.AmountPaid.Sub(step)
			entry.Status = domain.ResolveScheduleStatus(entry.AmountPaid, entry.TotalDue)
			entry.Paid = entry.Status == domain.ScheduleStatusPaid
			if entry.AmountPaid.IsZero() {
				entry.PaidAt = nil
			}
			if err := s.scheduleRepo.UpdateAllocation(ctx, tx, entry); err != nil {
				return fmt.Errorf("update schedule %d: %w", entry.ID, err)
			}
			remaining = remaining.Sub(step)
		}

		if err := s.loanService.ResolveStatusTx(ctx, tx, loan.ID); err != nil {
			return fmt.Errorf("resolve loan status: %w", err)
		}
		return nil
	})
}

// EditPaymentInput corrects an existing payment record tied to exactly one
// schedule entry. Amount is the new cumulative total for that entry, not a
// delta.
type EditPaymentInput struct {
	PaymentID  uuid.UUID
	ScheduleID int32
	Amount     decimal.Decimal
	Method     string
	Date       time.Time
	ReceiptNo  string
}

// AllocateEditedPayment replaces the paid amount on a single schedule entry
// and rewrites the originating payment record to match. The proportional
// breakdown and status are recomputed from scratch against that one entry.
func (s *PaymentService) AllocateEditedPayment(ctx context.Context, in EditPaymentInput) (*domain.PaymentRecord, error) {
	if in.PaymentID == uuid.Nil {
		return nil, domain.ErrPaymentIDRequired
	}
	if in.ScheduleID <= 0 {
		return nil, domain.ErrScheduleIDRequired
	}
	if in.Amount.IsNegative() {
		return nil, domain.ErrPaymentAmountInvalid
	}

	rec, err := s.paymentRepo.GetByID(ctx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if rec.ScheduleID == nil || *rec.ScheduleID != in.ScheduleID {
		return nil, domain.ErrPaymentScheduleLink
	}

	entry, err := s.scheduleRepo.GetByID(ctx, in.ScheduleID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockLoan(entry.LoanID)
	defer unlock()

	err = s.txm.WithinTx(ctx, func(tx any) error {
		fee, interest, principal := splitAllocation(in.Amount, entry)

		entry.AmountPaid = in.Amount
		entry.Status = domain.ResolveScheduleStatus(entry.AmountPaid, entry.TotalDue)
		entry.Paid = entry.Status == domain.ScheduleStatusPaid
		if entry.AmountPaid.IsPositive() {
			paidAt := in.Date
			if paidAt.IsZero() {
				paidAt = time.Now()
			}
			entry.PaidAt = &paidAt
		} else {
			entry.PaidAt = nil
		}
		if err := s.scheduleRepo.UpdateAllocation(ctx, tx, entry); err != nil {
			return fmt.Errorf("update schedule %d: %w", entry.ID, err)
		}

		rec.Amount = in.Amount
		rec.PrincipalPaid = principal
		rec.InterestPaid = interest
		rec.FeePaid = fee
		rec.Status = domain.PaymentStatusPartial
		if entry.Status == domain.ScheduleStatusPaid {
			rec.Status = domain.PaymentStatusFull
		}
		if in.Method != "" {
			rec.Method = in.Method
		}
		if !in.Date.IsZero() {
			rec.Date = in.Date
		}
		if in.ReceiptNo != "" {
			rec.ReceiptNo = in.ReceiptNo
		}
		if err := s.paymentRepo.Update(ctx, tx, rec); err != nil {
			return fmt.Errorf("update payment record: %w", err)
		}

		if err := s.loanService.ResolveStatusTx(ctx, tx, entry.LoanID); err != nil {
			return fmt.Errorf("resolve loan status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// splitAllocation divides an allocation into fee, interest and principal
// proportionally to the entry's original due composition. Principal absorbs
// the rounding slack so the three parts always sum exactly to the allocation.
// An entry with a zero total due routes the whole allocation to principal.
func splitAllocation(allocation decimal.Decimal, entry *domain.ScheduleEntry) (fee, interest, principal decimal.Decimal) {
	if entry.TotalDue.IsZero() {
		return decimal.Zero, decimal.Zero, allocation
	}
	fee = allocation.Mul(entry.FeeDue).Div(entry.TotalDue).Round(2)
	interest = allocation.Mul(entry.InterestDue).Div(entry.TotalDue).Round(2)
	principal = allocation.Sub(fee).Sub(interest)
	return fee, interest, principal
}

func (s *PaymentService) newRecord(loan *domain.Loan, in AllocatePaymentInput, entry *domain.ScheduleEntry, amount, principal, interest, fee decimal.Decimal, status domain.PaymentStatus) *domain.PaymentRecord {
	// Same default as the schedule's paid_at, so a caller omitting the date
	// can never write a zero-time ledger row.
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	rec := &domain.PaymentRecord{
		ID:            uuid.New(),
		LoanID:        loan.ID,
		AccountNumber: in.AccountNumber,
		LoanRefNumber: in.LoanRefNumber,
		Method:        in.Method,
		Date:          date,
		ReceiptNo:     in.ReceiptNo,
		Amount:        amount,
		PrincipalPaid: principal,
		InterestPaid:  interest,
		FeePaid:       fee,
		Status:        status,
	}
	if entry != nil {
		id := entry.ID
		rec.ScheduleID = &id
	}
	return rec
}

// lockLoan serializes allocation per loan id. The lock table only grows with
// the number of distinct loans touched by this process.
func (s *PaymentService) lockLoan(loanID int32) func() {
	s.mu.Lock()
	m, ok := s.loanLocks[loanID]
	if !ok {
		m = &sync.Mutex{}
		s.loanLocks[loanID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
