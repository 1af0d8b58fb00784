package domain

import "errors"

// Domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternalError    = errors.New("internal error")
	ErrLoanNotFound     = errors.New("loan not found")
	ErrLoanRefRequired  = errors.New("loan reference number is required")
	ErrLoanRefUnknown   = errors.New("loan reference number does not match any loan")
	ErrScheduleNotFound = errors.New("schedule entry not found")
	ErrPaymentNotFound  = errors.New("payment record not found")

	ErrLoanPrincipalInvalid = errors.New("loan principal must be positive")
	ErrLoanTermInvalid      = errors.New("loan term must be at least 1 month")
	ErrLoanRateInvalid      = errors.New("interest rate must not be negative")
	ErrLoanMethodInvalid    = errors.New("interest method must be flat or diminishing")
	ErrLoanAccountRequired  = errors.New("member account number is required")
	ErrPaymentAmountInvalid = errors.New("payment amount must be positive")
	ErrReversalExceedsPaid  = errors.New("reversal amount exceeds the amount paid on the schedule")
	ErrPaymentIDRequired    = errors.New("payment ID is required")
	ErrScheduleIDRequired   = errors.New("schedule ID is required")
	ErrPaymentScheduleLink  = errors.New("payment record is not tied to the given schedule entry")
)
