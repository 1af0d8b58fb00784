package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/coopware/lending-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// AllocatePaymentRequest represents one payment submission
type AllocatePaymentRequest struct {
	LoanRefNumber string `json:"loanRefNumber"`
	AccountNumber string `json:"accountNumber"`
	Amount        string `json:"amount"`
	Method        string `json:"method"`
	Date          string `json:"date"` // YYYY-MM-DD
	ReceiptNo     string `json:"receiptNo"`
}

// ReversePaymentRequest represents a payment reversal
type ReversePaymentRequest struct {
	LoanRefNumber string `json:"loanRefNumber"`
	Amount        string `json:"amount"` // magnitude to unwind
}

// EditPaymentRequest corrects an existing payment record
type EditPaymentRequest struct {
	ScheduleID int32  `json:"scheduleId"`
	Amount     string `json:"amount"` // new cumulative total for the entry
	Method     string `json:"method"`
	Date       string `json:"date"`
	ReceiptNo  string `json:"receiptNo"`
}

// PaymentRecordResponse represents a ledger row in API responses
type PaymentRecordResponse struct {
	ID            string `json:"id"`
	ScheduleID    *int32 `json:"scheduleId,omitempty"`
	LoanID        int32  `json:"loanId"`
	AccountNumber string `json:"accountNumber"`
	LoanRefNumber string `json:"loanRefNumber"`
	Method        string `json:"method"`
	Date          string `json:"date"`
	ReceiptNo     string `json:"receiptNo"`
	Amount        string `json:"amount"`
	PrincipalPaid string `json:"principalPaid"`
	InterestPaid  string `json:"interestPaid"`
	FeePaid       string `json:"feePaid"`
	Status        string `json:"status"`
}

// AllocatePayment handles POST /api/v1/payments
func (h *PaymentHandler) AllocatePayment(c echo.Context) error {
	var req AllocatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	date := time.Now()
	if req.Date != "" {
		if date, err = time.Parse("2006-01-02", req.Date); err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "date", Message: "Must be a YYYY-MM-DD date"},
			})
		}
	}

	records, err := h.paymentService.AllocatePayment(c.Request().Context(), service.AllocatePaymentInput{
		LoanRefNumber: req.LoanRefNumber,
		AccountNumber: req.AccountNumber,
		Amount:        amount,
		Method:        req.Method,
		Date:          date,
		ReceiptNo:     req.ReceiptNo,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanRefRequired),
			errors.Is(err, domain.ErrPaymentAmountInvalid),
			errors.Is(err, domain.ErrReversalExceedsPaid):
			return NewValidationError(c, err.Error(), nil)
		case errors.Is(err, domain.ErrLoanRefUnknown):
			return NewNotFoundError(c, "Loan not found for reference number")
		}
		log.Error().Err(err).Str("loan_ref", req.LoanRefNumber).Msg("Failed to allocate payment")
		return NewInternalError(c, "Failed to allocate payment")
	}

	log.Info().Str("loan_ref", req.LoanRefNumber).Str("amount", amount.StringFixed(2)).
		Int("ledger_entries", len(records)).Msg("Payment allocated")

	response := make([]PaymentRecordResponse, len(records))
	for i, rec := range records {
		response[i] = toPaymentRecordResponse(rec)
	}
	return c.JSON(http.StatusCreated, response)
}

// ReversePayment handles POST /api/v1/payments/reversals
func (h *PaymentHandler) ReversePayment(c echo.Context) error {
	var req ReversePaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	if err := h.paymentService.ReversePayment(c.Request().Context(), req.LoanRefNumber, amount); err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanRefRequired),
			errors.Is(err, domain.ErrPaymentAmountInvalid),
			errors.Is(err, domain.ErrReversalExceedsPaid):
			return NewValidationError(c, err.Error(), nil)
		case errors.Is(err, domain.ErrLoanRefUnknown):
			return NewNotFoundError(c, "Loan not found for reference number")
		}
		log.Error().Err(err).Str("loan_ref", req.LoanRefNumber).Msg("Failed to reverse payment")
		return NewInternalError(c, "Failed to reverse payment")
	}

	log.Info().Str("loan_ref", req.LoanRefNumber).Str("amount", amount.StringFixed(2)).Msg("Payment reversed")

	return c.NoContent(http.StatusNoContent)
}

// EditPayment handles PUT /api/v1/payments/:paymentId
func (h *PaymentHandler) EditPayment(c echo.Context) error {
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		return NewValidationError(c, "Invalid payment ID", nil)
	}

	var req EditPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	var date time.Time
	if req.Date != "" {
		if date, err = time.Parse("2006-01-02", req.Date); err != nil {
			return NewValidationError(c, "Invalid date", []ValidationError{
				{Field: "date", Message: "Must be a YYYY-MM-DD date"},
			})
		}
	}

	rec, err := h.paymentService.AllocateEditedPayment(c.Request().Context(), service.EditPaymentInput{
		PaymentID:  paymentID,
		ScheduleID: req.ScheduleID,
		Amount:     amount,
		Method:     req.Method,
		Date:       date,
		ReceiptNo:  req.ReceiptNo,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentIDRequired),
			errors.Is(err, domain.ErrScheduleIDRequired),
			errors.Is(err, domain.ErrPaymentAmountInvalid):
			return NewValidationError(c, err.Error(), nil)
		case errors.Is(err, domain.ErrPaymentNotFound):
			return NewNotFoundError(c, "Payment not found")
		case errors.Is(err, domain.ErrScheduleNotFound):
			return NewNotFoundError(c, "Schedule entry not found")
		case errors.Is(err, domain.ErrPaymentScheduleLink):
			return NewConflictError(c, err.Error())
		}
		log.Error().Err(err).Str("payment_id", paymentID.String()).Msg("Failed to edit payment")
		return NewInternalError(c, "Failed to edit payment")
	}

	log.Info().Str("payment_id", paymentID.String()).Str("amount", amount.StringFixed(2)).Msg("Payment edited")

	return c.JSON(http.StatusOK, toPaymentRecordResponse(rec))
}

func toPaymentRecordResponse(rec *domain.PaymentRecord) PaymentRecordResponse {
	return PaymentRecordResponse{
		ID:            rec.ID.String(),
		ScheduleID:    rec.ScheduleID,
		LoanID:        rec.LoanID,
		AccountNumber: rec.AccountNumber,
		LoanRefNumber: rec.LoanRefNumber,
		Method:        rec.Method,
		Date:          rec.Date.Format("2006-01-02"),
		ReceiptNo:     rec.ReceiptNo,
		Amount:        rec.Amount.StringFixed(2),
		PrincipalPaid: rec.PrincipalPaid.StringFixed(2),
		InterestPaid:  rec.InterestPaid.StringFixed(2),
		FeePaid:       rec.FeePaid.StringFixed(2),
		Status:        string(rec.Status),
	}
}
