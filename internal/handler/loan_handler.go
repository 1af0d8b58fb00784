package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/coopware/lending-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService *service.LoanService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// LoanRequest represents the create/preview loan request body
type LoanRequest struct {
	AccountNumber  string `json:"accountNumber"`
	RefNumber      string `json:"refNumber"`
	Principal      string `json:"principal"`
	InterestRate   string `json:"interestRate"`
	TermMonths     int32  `json:"termMonths"`
	ServiceFeeRate string `json:"serviceFeeRate"`
	Method         string `json:"method"`
	ReleaseDate    string `json:"releaseDate"` // YYYY-MM-DD
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID             int32  `json:"id"`
	AccountNumber  string `json:"accountNumber"`
	RefNumber      string `json:"refNumber"`
	Principal      string `json:"principal"`
	InterestRate   string `json:"interestRate"`
	TermMonths     int32  `json:"termMonths"`
	ServiceFeeRate string `json:"serviceFeeRate"`
	Method         string `json:"method"`
	ReleaseDate    string `json:"releaseDate"`
	ServiceFee     string `json:"serviceFee"`
	TotalPayable   string `json:"totalPayable"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

// ScheduleEntryResponse represents one installment in API responses
type ScheduleEntryResponse struct {
	ID            int32   `json:"id"`
	LoanID        int32   `json:"loanId"`
	InstallmentNo int32   `json:"installmentNo"`
	DueDate       string  `json:"dueDate"`
	PrincipalDue  string  `json:"principalDue"`
	InterestDue   string  `json:"interestDue"`
	FeeDue        string  `json:"feeDue"`
	TotalDue      string  `json:"totalDue"`
	AmountPaid    string  `json:"amountPaid"`
	Paid          bool    `json:"paid"`
	Status        string  `json:"status"`
	PaidAt        *string `json:"paidAt,omitempty"`
}

// PreviewResponse represents amortization totals plus the projected schedule
type PreviewResponse struct {
	ServiceFee       string                  `json:"serviceFee"`
	NetPrincipal     string                  `json:"netPrincipal"`
	TotalInterest    string                  `json:"totalInterest"`
	TotalPayable     string                  `json:"totalPayable"`
	MonthlyPayment   string                  `json:"monthlyPayment"`
	MonthlyPrincipal string                  `json:"monthlyPrincipal,omitempty"`
	MonthlyInterest  string                  `json:"monthlyInterest,omitempty"`
	Schedule         []ScheduleEntryResponse `json:"schedule"`
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req LoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	in, verr := parseLoanRequest(req)
	if verr != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{*verr})
	}

	loan, err := h.loanService.CreateLoan(c.Request().Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLoanAccountRequired),
			errors.Is(err, domain.ErrLoanRefRequired),
			errors.Is(err, domain.ErrLoanPrincipalInvalid),
			errors.Is(err, domain.ErrLoanTermInvalid),
			errors.Is(err, domain.ErrLoanRateInvalid),
			errors.Is(err, domain.ErrLoanMethodInvalid),
			errors.Is(err, domain.ErrInvalidInput):
			return NewValidationError(c, err.Error(), nil)
		}
		log.Error().Err(err).Str("ref_number", req.RefNumber).Msg("Failed to create loan")
		return NewInternalError(c, "Failed to create loan")
	}

	log.Info().Int32("loan_id", loan.ID).Str("ref_number", loan.RefNumber).Msg("Loan created")

	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// PreviewLoan handles POST /api/v1/loans/preview
func (h *LoanHandler) PreviewLoan(c echo.Context) error {
	var req LoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	// Preview tolerates incomplete terms: unparsable numbers become zero and
	// surface as an all-zero result.
	in := parseLoanRequestLoose(req)
	result := h.loanService.PreviewLoan(in)
	return c.JSON(http.StatusOK, toPreviewResponse(in.Method, result))
}

// GetLoan handles GET /api/v1/loans/:id
func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), int32(id))
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int("loan_id", id).Msg("Failed to get loan")
		return NewInternalError(c, "Failed to get loan")
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// GetSchedule handles GET /api/v1/loans/:id/schedule
func (h *LoanHandler) GetSchedule(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid loan ID", nil)
	}

	entries, err := h.loanService.GetSchedule(c.Request().Context(), int32(id))
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return NewNotFoundError(c, "Loan not found")
		}
		log.Error().Err(err).Int("loan_id", id).Msg("Failed to get loan schedule")
		return NewInternalError(c, "Failed to get loan schedule")
	}

	response := make([]ScheduleEntryResponse, len(entries))
	for i, entry := range entries {
		response[i] = toScheduleEntryResponse(entry)
	}
	return c.JSON(http.StatusOK, response)
}

func parseLoanRequest(req LoanRequest) (service.CreateLoanInput, *ValidationError) {
	var in service.CreateLoanInput
	var err error

	if in.Principal, err = decimal.NewFromString(req.Principal); err != nil {
		return in, &ValidationError{Field: "principal", Message: "Must be a valid decimal number"}
	}
	if in.InterestRate, err = decimal.NewFromString(req.InterestRate); err != nil {
		return in, &ValidationError{Field: "interestRate", Message: "Must be a valid decimal number"}
	}
	in.ServiceFeeRate = decimal.Zero
	if req.ServiceFeeRate != "" {
		if in.ServiceFeeRate, err = decimal.NewFromString(req.ServiceFeeRate); err != nil {
			return in, &ValidationError{Field: "serviceFeeRate", Message: "Must be a valid decimal number"}
		}
	}
	if in.ReleaseDate, err = time.Parse("2006-01-02", req.ReleaseDate); err != nil {
		return in, &ValidationError{Field: "releaseDate", Message: "Must be a YYYY-MM-DD date"}
	}
	in.AccountNumber = req.AccountNumber
	in.RefNumber = req.RefNumber
	in.TermMonths = req.TermMonths
	in.Method = domain.InterestMethod(req.Method)
	return in, nil
}

func parseLoanRequestLoose(req LoanRequest) service.CreateLoanInput {
	parse := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	releaseDate, err := time.Parse("2006-01-02", req.ReleaseDate)
	if err != nil {
		releaseDate = time.Now()
	}
	return service.CreateLoanInput{
		AccountNumber:  req.AccountNumber,
		RefNumber:      req.RefNumber,
		Principal:      parse(req.Principal),
		InterestRate:   parse(req.InterestRate),
		TermMonths:     req.TermMonths,
		ServiceFeeRate: parse(req.ServiceFeeRate),
		Method:         domain.InterestMethod(req.Method),
		ReleaseDate:    releaseDate,
	}
}

func toLoanResponse(loan *domain.Loan) LoanResponse {
	return LoanResponse{
		ID:             loan.ID,
		AccountNumber:  loan.AccountNumber,
		RefNumber:      loan.RefNumber,
		Principal:      loan.Principal.StringFixed(2),
		InterestRate:   loan.InterestRate.String(),
		TermMonths:     loan.TermMonths,
		ServiceFeeRate: loan.ServiceFeeRate.String(),
		Method:         string(loan.Method),
		ReleaseDate:    loan.ReleaseDate.Format("2006-01-02"),
		ServiceFee:     loan.ServiceFee.StringFixed(2),
		TotalPayable:   loan.TotalPayable.StringFixed(2),
		Status:         string(loan.Status),
		CreatedAt:      loan.CreatedAt.Format(time.RFC3339),
	}
}

func toScheduleEntryResponse(entry *domain.ScheduleEntry) ScheduleEntryResponse {
	resp := ScheduleEntryResponse{
		ID:            entry.ID,
		LoanID:        entry.LoanID,
		InstallmentNo: entry.InstallmentNo,
		DueDate:       entry.DueDate.Format("2006-01-02"),
		PrincipalDue:  entry.PrincipalDue.StringFixed(2),
		InterestDue:   entry.InterestDue.StringFixed(2),
		FeeDue:        entry.FeeDue.StringFixed(2),
		TotalDue:      entry.TotalDue.StringFixed(2),
		AmountPaid:    entry.AmountPaid.StringFixed(2),
		Paid:          entry.Paid,
		Status:        string(entry.Status),
	}
	if entry.PaidAt != nil {
		paidAt := entry.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &paidAt
	}
	return resp
}

func toPreviewResponse(method domain.InterestMethod, result service.AmortizationResult) PreviewResponse {
	resp := PreviewResponse{
		ServiceFee:     result.ServiceFee.StringFixed(2),
		NetPrincipal:   result.NetPrincipal.StringFixed(2),
		TotalInterest:  result.TotalInterest.StringFixed(2),
		TotalPayable:   result.TotalPayable.StringFixed(2),
		MonthlyPayment: result.MonthlyPayment.StringFixed(2),
		Schedule:       make([]ScheduleEntryResponse, len(result.Schedule)),
	}
	if method == domain.InterestMethodFlat {
		resp.MonthlyPrincipal = result.MonthlyPrincipal.StringFixed(2)
		resp.MonthlyInterest = result.MonthlyInterest.StringFixed(2)
	}
	for i := range result.Schedule {
		resp.Schedule[i] = toScheduleEntryResponse(&result.Schedule[i])
	}
	return resp
}
