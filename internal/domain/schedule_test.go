package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestResolveScheduleStatus(t *testing.T) {
	cases := []struct {
		name       string
		amountPaid string
		totalDue   string
		want       ScheduleStatus
	}{
		{"nothing paid", "0", "933.33", ScheduleStatusUnpaid},
		{"partial", "500", "933.33", ScheduleStatusPartiallyPaid},
		{"one cent short", "933.32", "933.33", ScheduleStatusPartiallyPaid},
		{"exact", "933.33", "933.33", ScheduleStatusPaid},
		{"overpaid", "1000", "933.33", ScheduleStatusPaid},
		{"sub-cent short rounds up", "933.329", "933.33", ScheduleStatusPaid},
		{"sub-cent residual due", "0.004", "933.33", ScheduleStatusUnpaid},
		{"zero due zero paid", "0", "0", ScheduleStatusUnpaid},
		{"zero due with money on it", "50", "0", ScheduleStatusPaid},
	}

	for _, tc := range cases {
		got := ResolveScheduleStatus(
			decimal.RequireFromString(tc.amountPaid),
			decimal.RequireFromString(tc.totalDue),
		)
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestScheduleEntry_RemainingDue(t *testing.T) {
	entry := &ScheduleEntry{
		TotalDue:   decimal.RequireFromString("933.33"),
		AmountPaid: decimal.RequireFromString("500.00"),
	}
	if entry.RemainingDue().StringFixed(2) != "433.33" {
		t.Errorf("Expected remaining due 433.33, got %s", entry.RemainingDue())
	}
}

func TestLoan_Validate(t *testing.T) {
	valid := func() *Loan {
		return &Loan{
			AccountNumber: "ACC-001",
			Principal:     decimal.NewFromInt(10000),
			InterestRate:  decimal.NewFromInt(12),
			TermMonths:    12,
			Method:        InterestMethodFlat,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid loan, got %v", err)
	}

	loan := valid()
	loan.Method = InterestMethodDiminishing
	if err := loan.Validate(); err != nil {
		t.Errorf("Expected diminishing method to be accepted, got %v", err)
	}

	loan = valid()
	loan.InterestRate = decimal.Zero
	if err := loan.Validate(); err != nil {
		t.Errorf("Expected zero rate to pass field validation, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Loan)
		want   error
	}{
		{"missing account", func(l *Loan) { l.AccountNumber = "" }, ErrLoanAccountRequired},
		{"zero principal", func(l *Loan) { l.Principal = decimal.Zero }, ErrLoanPrincipalInvalid},
		{"zero term", func(l *Loan) { l.TermMonths = 0 }, ErrLoanTermInvalid},
		{"negative rate", func(l *Loan) { l.InterestRate = decimal.NewFromInt(-5) }, ErrLoanRateInvalid},
		{"bad method", func(l *Loan) { l.Method = "simple" }, ErrLoanMethodInvalid},
	}
	for _, tc := range cases {
		loan := valid()
		tc.mutate(loan)
		if err := loan.Validate(); err != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
