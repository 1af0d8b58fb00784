package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/coopware/lending-backend/internal/service"
	"github.com/coopware/lending-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type paymentHandlerTest struct {
	handler   *PaymentHandler
	loans     *testutil.MockLoanRepository
	schedules *testutil.MockScheduleRepository
	payments  *testutil.MockPaymentRepository
}

func newPaymentHandlerTest() *paymentHandlerTest {
	txm := testutil.NewMockTxManager()
	loans := testutil.NewMockLoanRepository()
	schedules := testutil.NewMockScheduleRepository()
	payments := testutil.NewMockPaymentRepository()
	loans.Schedules = schedules

	loanService := service.NewLoanService(txm, loans, schedules, service.LoanStatusPolicyCloseOnly)
	paymentService := service.NewPaymentService(txm, loans, schedules, payments, loanService)
	return &paymentHandlerTest{
		handler:   NewPaymentHandler(paymentService),
		loans:     loans,
		schedules: schedules,
		payments:  payments,
	}
}

func (pt *paymentHandlerTest) seedLoanWithSchedule() *domain.Loan {
	loan := &domain.Loan{AccountNumber: "ACC-001", RefNumber: "LN-001", Status: domain.LoanStatusActive}
	pt.loans.AddLoan(loan)
	for i := int32(0); i < 2; i++ {
		pt.schedules.AddEntry(&domain.ScheduleEntry{
			LoanID:        loan.ID,
			InstallmentNo: i,
			DueDate:       time.Date(2025, time.Month(1+i), 15, 0, 0, 0, 0, time.UTC),
			PrincipalDue:  decimal.RequireFromString("833.33"),
			InterestDue:   decimal.RequireFromString("100.00"),
			TotalDue:      decimal.RequireFromString("933.33"),
			Status:        domain.ScheduleStatusUnpaid,
		})
	}
	return loan
}

func TestAllocatePayment_Success(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()
	pt.seedLoanWithSchedule()

	body := `{"loanRefNumber": "LN-001", "accountNumber": "ACC-001", "amount": "1000", "method": "cash", "date": "2025-02-01", "receiptNo": "OR-100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := pt.handler.AllocatePayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rec.Code)
	}

	var response []PaymentRecordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(response) != 2 {
		t.Fatalf("Expected 2 ledger entries, got %d", len(response))
	}
	if response[0].Status != "Full" || response[1].Status != "Partial" {
		t.Errorf("Expected [Full, Partial], got [%s, %s]", response[0].Status, response[1].Status)
	}
	if response[0].Amount != "933.33" || response[1].Amount != "66.67" {
		t.Errorf("Expected amounts 933.33/66.67, got %s/%s", response[0].Amount, response[1].Amount)
	}
}

func TestAllocatePayment_UnknownLoan(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()

	body := `{"loanRefNumber": "LN-999", "amount": "100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := pt.handler.AllocatePayment(c); err != nil {
		t.Fatalf("Expected no error (error should be in response), got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestAllocatePayment_InvalidAmount(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()
	pt.seedLoanWithSchedule()

	body := `{"loanRefNumber": "LN-001", "amount": "not-a-number"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := pt.handler.AllocatePayment(c); err != nil {
		t.Fatalf("Expected no error (error should be in response), got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if problem.Type != ErrorTypeValidation {
		t.Errorf("Expected validation problem type, got %s", problem.Type)
	}
}

func TestAllocatePayment_ZeroAmount(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()
	pt.seedLoanWithSchedule()

	body := `{"loanRefNumber": "LN-001", "amount": "0"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := pt.handler.AllocatePayment(c); err != nil {
		t.Fatalf("Expected no error (error should be in response), got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestReversePayment_Success(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()
	loan := pt.seedLoanWithSchedule()

	// Put money on the schedule first.
	for _, entry := range pt.schedules.Entries {
		if entry.LoanID == loan.ID {
			entry.AmountPaid = decimal.RequireFromString("500")
			entry.Status = domain.ScheduleStatusPartiallyPaid
		}
	}

	body := `{"loanRefNumber": "LN-001", "amount": "300"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/reversals", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := pt.handler.ReversePayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
}

func TestReversePayment_UnknownLoan(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()

	body := `{"loanRefNumber": "LN-999", "amount": "300"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/reversals", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := pt.handler.ReversePayment(c); err != nil {
		t.Fatalf("Expected no error (error should be in response), got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestEditPayment_Success(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()
	pt.seedLoanWithSchedule()

	// Allocate first so there is a record to correct.
	body := `{"loanRefNumber": "LN-001", "amount": "500", "method": "cash", "date": "2025-02-01", "receiptNo": "OR-100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := pt.handler.AllocatePayment(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	var created []PaymentRecordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(created) != 1 || created[0].ScheduleID == nil {
		t.Fatalf("Expected one linked record, got %+v", created)
	}

	editBody := `{"scheduleId": 1, "amount": "933.33", "receiptNo": "OR-101"}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/payments/"+created[0].ID, strings.NewReader(editBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("paymentId")
	c.SetParamValues(created[0].ID)

	if err := pt.handler.EditPayment(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var edited PaymentRecordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &edited); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if edited.Amount != "933.33" || edited.Status != "Full" {
		t.Errorf("Expected full 933.33 record, got %s %s", edited.Amount, edited.Status)
	}
	if edited.ReceiptNo != "OR-101" {
		t.Errorf("Expected receipt OR-101, got %s", edited.ReceiptNo)
	}
}

func TestEditPayment_InvalidID(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()

	req := httptest.NewRequest(http.MethodPut, "/api/v1/payments/not-a-uuid", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("paymentId")
	c.SetParamValues("not-a-uuid")

	if err := pt.handler.EditPayment(c); err != nil {
		t.Fatalf("Expected no error (error should be in response), got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestEditPayment_WrongScheduleLink(t *testing.T) {
	e := echo.New()
	pt := newPaymentHandlerTest()
	pt.seedLoanWithSchedule()

	body := `{"loanRefNumber": "LN-001", "amount": "500"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := pt.handler.AllocatePayment(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	var created []PaymentRecordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	// Point the edit at the second installment, not the one the record settled.
	editBody := `{"scheduleId": 2, "amount": "100"}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/payments/"+created[0].ID, strings.NewReader(editBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("paymentId")
	c.SetParamValues(created[0].ID)

	if err := pt.handler.EditPayment(c); err != nil {
		t.Fatalf("Expected no error (error should be in response), got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rec.Code)
	}
}
