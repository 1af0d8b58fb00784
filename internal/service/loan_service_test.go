package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/coopware/lending-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

type loanFixture struct {
	txm       *testutil.MockTxManager
	loans     *testutil.MockLoanRepository
	schedules *testutil.MockScheduleRepository
	svc       *LoanService
}

func newLoanFixture(policy LoanStatusPolicy) *loanFixture {
	txm := testutil.NewMockTxManager()
	loans := testutil.NewMockLoanRepository()
	schedules := testutil.NewMockScheduleRepository()
	loans.Schedules = schedules
	return &loanFixture{
		txm:       txm,
		loans:     loans,
		schedules: schedules,
		svc:       NewLoanService(txm, loans, schedules, policy),
	}
}

func validLoanInput() CreateLoanInput {
	return CreateLoanInput{
		AccountNumber: "ACC-001",
		RefNumber:     "LN-001",
		Principal:     decimal.NewFromInt(10000),
		InterestRate:  decimal.NewFromInt(12),
		TermMonths:    12,
		Method:        domain.InterestMethodFlat,
		ReleaseDate:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateLoan_SeedsSchedule(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)

	loan, err := f.svc.CreateLoan(context.Background(), validLoanInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if loan.ID == 0 {
		t.Error("Expected loan to be assigned an ID")
	}
	if loan.Status != domain.LoanStatusActive {
		t.Errorf("Expected new loan Active, got %s", loan.Status)
	}
	if loan.TotalPayable.StringFixed(2) != "11200.00" {
		t.Errorf("Expected total payable 11200.00, got %s", loan.TotalPayable.StringFixed(2))
	}

	entries, err := f.schedules.ListByLoan(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 12 {
		t.Fatalf("Expected 12 seeded installments, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.LoanID != loan.ID {
			t.Errorf("Installment %d not linked to loan %d", entry.InstallmentNo, loan.ID)
		}
		if entry.Status != domain.ScheduleStatusUnpaid {
			t.Errorf("Installment %d: expected UNPAID, got %s", entry.InstallmentNo, entry.Status)
		}
	}

	// Loan row and schedule batch land in the same transaction.
	if f.txm.Calls != 1 {
		t.Errorf("Expected a single transaction, got %d", f.txm.Calls)
	}
}

func TestCreateLoan_Validation(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)

	cases := []struct {
		name   string
		mutate func(*CreateLoanInput)
		want   error
	}{
		{"missing account", func(in *CreateLoanInput) { in.AccountNumber = "" }, domain.ErrLoanAccountRequired},
		{"missing ref", func(in *CreateLoanInput) { in.RefNumber = "  " }, domain.ErrLoanRefRequired},
		{"zero principal", func(in *CreateLoanInput) { in.Principal = decimal.Zero }, domain.ErrLoanPrincipalInvalid},
		{"zero term", func(in *CreateLoanInput) { in.TermMonths = 0 }, domain.ErrLoanTermInvalid},
		{"negative rate", func(in *CreateLoanInput) { in.InterestRate = decimal.NewFromInt(-1) }, domain.ErrLoanRateInvalid},
		{"unknown method", func(in *CreateLoanInput) { in.Method = "balloon" }, domain.ErrLoanMethodInvalid},
	}
	for _, tc := range cases {
		in := validLoanInput()
		tc.mutate(&in)
		if _, err := f.svc.CreateLoan(context.Background(), in); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if f.txm.Calls != 0 {
		t.Errorf("Expected no transactions on validation failure, got %d", f.txm.Calls)
	}
}

func TestCreateLoan_RejectsDegenerateTerms(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)

	// A zero rate passes field validation but produces an empty schedule,
	// which cannot back a released loan.
	in := validLoanInput()
	in.InterestRate = decimal.Zero
	if _, err := f.svc.CreateLoan(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestPreviewLoan_DegenerateTermsYieldZeros(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)

	in := validLoanInput()
	in.Principal = decimal.Zero
	result := f.svc.PreviewLoan(in)

	if !result.TotalPayable.IsZero() || !result.MonthlyPayment.IsZero() {
		t.Errorf("Expected all-zero preview, got %+v", result)
	}
	if len(result.Schedule) != 0 {
		t.Errorf("Expected empty schedule, got %d entries", len(result.Schedule))
	}
}

func TestPreviewLoan_DoesNotPersist(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)

	result := f.svc.PreviewLoan(validLoanInput())
	if len(result.Schedule) != 12 {
		t.Fatalf("Expected 12 projected installments, got %d", len(result.Schedule))
	}
	if len(f.loans.Loans) != 0 || len(f.schedules.Entries) != 0 {
		t.Error("Expected preview to leave no rows behind")
	}
	if f.txm.Calls != 0 {
		t.Errorf("Expected no transactions for preview, got %d", f.txm.Calls)
	}
}

func TestGetSchedule_UnknownLoan(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)

	if _, err := f.svc.GetSchedule(context.Background(), 999); !errors.Is(err, domain.ErrLoanNotFound) {
		t.Errorf("Expected ErrLoanNotFound, got %v", err)
	}
}

func TestResolveStatusTx_CloseOnly(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)
	loan := &domain.Loan{AccountNumber: "ACC-001", RefNumber: "LN-001", Status: domain.LoanStatusActive}
	f.loans.AddLoan(loan)

	f.loans.OutstandingBalanceFn = func(int32) (decimal.Decimal, error) {
		return decimal.NewFromInt(500), nil
	}
	if err := f.svc.ResolveStatusTx(context.Background(), nil, loan.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if loan.Status != domain.LoanStatusActive {
		t.Errorf("Expected Active with money owed, got %s", loan.Status)
	}
	if len(f.loans.StatusUpdates) != 0 {
		t.Errorf("Expected no status write while balance is positive, got %d", len(f.loans.StatusUpdates))
	}

	f.loans.OutstandingBalanceFn = func(int32) (decimal.Decimal, error) {
		return decimal.Zero, nil
	}
	if err := f.svc.ResolveStatusTx(context.Background(), nil, loan.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if loan.Status != domain.LoanStatusClosed {
		t.Errorf("Expected Closed at zero balance, got %s", loan.Status)
	}
}

func TestResolveStatusTx_SubCentBalanceCloses(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyCloseOnly)
	loan := &domain.Loan{AccountNumber: "ACC-001", RefNumber: "LN-001", Status: domain.LoanStatusActive}
	f.loans.AddLoan(loan)

	// A residual below half a cent rounds to zero at 2 decimal places.
	f.loans.OutstandingBalanceFn = func(int32) (decimal.Decimal, error) {
		return decimal.RequireFromString("0.004"), nil
	}
	if err := f.svc.ResolveStatusTx(context.Background(), nil, loan.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if loan.Status != domain.LoanStatusClosed {
		t.Errorf("Expected Closed for sub-cent residual, got %s", loan.Status)
	}
}

func TestResolveStatusTx_ResyncReopens(t *testing.T) {
	f := newLoanFixture(LoanStatusPolicyResync)
	loan := &domain.Loan{AccountNumber: "ACC-001", RefNumber: "LN-001", Status: domain.LoanStatusClosed}
	f.loans.AddLoan(loan)

	f.loans.OutstandingBalanceFn = func(int32) (decimal.Decimal, error) {
		return decimal.NewFromInt(250), nil
	}
	if err := f.svc.ResolveStatusTx(context.Background(), nil, loan.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if loan.Status != domain.LoanStatusActive {
		t.Errorf("Expected reopened loan under resync, got %s", loan.Status)
	}
}

func TestNewLoanService_DefaultsToCloseOnly(t *testing.T) {
	f := newLoanFixture("")
	if f.svc.statusPolicy != LoanStatusPolicyCloseOnly {
		t.Errorf("Expected close-only default, got %s", f.svc.statusPolicy)
	}
}
