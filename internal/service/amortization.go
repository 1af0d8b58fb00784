package service

import (
	"time"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	oneHundred = decimal.NewFromInt(100)
	twelve     = decimal.NewFromInt(12)
)

// AmortizationInput holds the loan terms fed into the calculator.
type AmortizationInput struct {
	Principal      decimal.Decimal
	AnnualRate     decimal.Decimal // percent per annum
	TermMonths     int
	ServiceFeeRate decimal.Decimal // percent of principal, deducted upfront
	StartDate      time.Time
	Method         domain.InterestMethod
}

// AmortizationResult is the calculator output. MonthlyPrincipal and
// MonthlyInterest are only populated for the flat method.
type AmortizationResult struct {
	ServiceFee       decimal.Decimal
	NetPrincipal     decimal.Decimal
	TotalInterest    decimal.Decimal
	TotalPayable     decimal.Decimal
	MonthlyPayment   decimal.Decimal
	MonthlyPrincipal decimal.Decimal
	MonthlyInterest  decimal.Decimal
	Schedule         []domain.ScheduleEntry
}

// ComputeAmortization turns loan terms into summary totals and, when
// withSchedule is set, the full per-installment schedule.
//
// Invalid inputs (zero rate, principal or term, or a service fee that eats the
// whole principal) yield an all-zero result instead of an error so that live
// recalculation while a user edits a form never crashes.
func ComputeAmortization(in AmortizationInput, withSchedule bool) AmortizationResult {
	if in.AnnualRate.LessThanOrEqual(decimal.Zero) ||
		in.Principal.LessThanOrEqual(decimal.Zero) ||
		in.TermMonths <= 0 {
		return AmortizationResult{}
	}

	serviceFee := in.Principal.Mul(in.ServiceFeeRate.Div(oneHundred)).Round(2)
	netPrincipal := in.Principal.Sub(serviceFee)
	if netPrincipal.IsNegative() {
		return AmortizationResult{}
	}

	if in.Method == domain.InterestMethodDiminishing {
		return computeDiminishing(in, serviceFee, netPrincipal, withSchedule)
	}
	return computeFlat(in, serviceFee, netPrincipal, withSchedule)
}

// computeFlat spreads interest computed once on the net principal evenly
// across the term. The rounded monthly figures generally undershoot the exact
// totals, so the last installment absorbs the shortfall and the schedule sums
// to the totals exactly.
func computeFlat(in AmortizationInput, serviceFee, netPrincipal decimal.Decimal, withSchedule bool) AmortizationResult {
	term := decimal.NewFromInt(int64(in.TermMonths))

	totalInterest := netPrincipal.Mul(in.AnnualRate.Div(oneHundred)).Round(2)
	totalPayable := netPrincipal.Add(totalInterest)
	monthlyPrincipal := netPrincipal.Div(term).Round(2)
	monthlyInterest := totalInterest.Div(term).Round(2)
	monthlyPayment := monthlyPrincipal.Add(monthlyInterest)

	result := AmortizationResult{
		ServiceFee:       serviceFee,
		NetPrincipal:     netPrincipal,
		TotalInterest:    totalInterest,
		TotalPayable:     totalPayable,
		MonthlyPayment:   monthlyPayment,
		MonthlyPrincipal: monthlyPrincipal,
		MonthlyInterest:  monthlyInterest,
	}
	if !withSchedule {
		return result
	}

	result.Schedule = make([]domain.ScheduleEntry, 0, in.TermMonths)
	for i := 0; i < in.TermMonths; i++ {
		principalDue := monthlyPrincipal
		interestDue := monthlyInterest
		if i == in.TermMonths-1 {
			// Exact shortfall left by rounding the monthly figures.
			principalDue = principalDue.Add(netPrincipal.Sub(monthlyPrincipal.Mul(term)))
			interestDue = interestDue.Add(totalInterest.Sub(monthlyInterest.Mul(term)))
		}
		result.Schedule = append(result.Schedule, newScheduleEntry(in.StartDate, i, principalDue, interestDue))
	}
	return result
}

// computeDiminishing amortizes with a constant payment recomputing interest on
// the remaining balance each period. The final period pays off the exact
// remaining balance instead of deriving principal from the constant payment,
// so compounding rounding error can never leave a residual balance.
func computeDiminishing(in AmortizationInput, serviceFee, netPrincipal decimal.Decimal, withSchedule bool) AmortizationResult {
	monthlyRate := in.AnnualRate.Div(oneHundred).Div(twelve)
	n := decimal.NewFromInt(int64(in.TermMonths))

	// payment = P * r(1+r)^n / ((1+r)^n - 1)
	factor := decimal.NewFromInt(1).Add(monthlyRate).Pow(n)
	monthlyPayment := netPrincipal.Mul(monthlyRate).Mul(factor).
		Div(factor.Sub(decimal.NewFromInt(1))).Round(2)

	balance := netPrincipal
	totalInterest := decimal.Zero
	var schedule []domain.ScheduleEntry
	if withSchedule {
		schedule = make([]domain.ScheduleEntry, 0, in.TermMonths)
	}

	for i := 0; i < in.TermMonths; i++ {
		interestDue := balance.Mul(monthlyRate).Round(2)

		var principalDue decimal.Decimal
		if i == in.TermMonths-1 {
			principalDue = balance
			balance = decimal.Zero
		} else {
			principalDue = monthlyPayment.Sub(interestDue)
			balance = balance.Sub(principalDue)
		}

		// Accumulate the rounded per-period figure, matching what is displayed.
		totalInterest = totalInterest.Add(interestDue)

		if withSchedule {
			schedule = append(schedule, newScheduleEntry(in.StartDate, i, principalDue, interestDue))
		}
	}

	return AmortizationResult{
		ServiceFee:     serviceFee,
		NetPrincipal:   netPrincipal,
		TotalInterest:  totalInterest,
		TotalPayable:   netPrincipal.Add(totalInterest),
		MonthlyPayment: monthlyPayment,
		Schedule:       schedule,
	}
}

func newScheduleEntry(startDate time.Time, installmentNo int, principalDue, interestDue decimal.Decimal) domain.ScheduleEntry {
	principalDue = principalDue.Round(2)
	interestDue = interestDue.Round(2)
	return domain.ScheduleEntry{
		InstallmentNo: int32(installmentNo),
		DueDate:       startDate.AddDate(0, installmentNo, 0),
		PrincipalDue:  principalDue,
		InterestDue:   interestDue,
		FeeDue:        decimal.Zero,
		TotalDue:      principalDue.Add(interestDue).Round(2),
		AmountPaid:    decimal.Zero,
		Paid:          false,
		Status:        domain.ScheduleStatusUnpaid,
	}
}
