package testutil

import (
	"context"
	"sort"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockTxManager is a mock implementation of domain.TxManager. It runs the
// function directly with a nil transaction handle.
type MockTxManager struct {
	BeginErr error
	Calls    int
}

// NewMockTxManager creates a new MockTxManager
func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithinTx runs fn with a nil transaction handle
func (m *MockTxManager) WithinTx(ctx context.Context, fn func(tx any) error) error {
	if m.BeginErr != nil {
		return m.BeginErr
	}
	m.Calls++
	return fn(nil)
}

// MockLoanRepository is a mock implementation of domain.LoanRepository
type MockLoanRepository struct {
	Loans     map[int32]*domain.Loan
	ByRef     map[string]*domain.Loan
	NextID    int32
	Schedules *MockScheduleRepository

	OutstandingBalanceFn func(loanID int32) (decimal.Decimal, error)
	UpdateStatusErr      error
	StatusUpdates        []domain.LoanStatus
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans:  make(map[int32]*domain.Loan),
		ByRef:  make(map[string]*domain.Loan),
		NextID: 1,
	}
}

// AddLoan adds a loan to the mock repository (helper for tests)
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) {
	if loan.ID == 0 {
		loan.ID = m.NextID
		m.NextID++
	}
	m.Loans[loan.ID] = loan
	if loan.RefNumber != "" {
		m.ByRef[loan.RefNumber] = loan
	}
}

// Create creates a new loan
func (m *MockLoanRepository) Create(ctx context.Context, tx any, loan *domain.Loan) (*domain.Loan, error) {
	m.AddLoan(loan)
	return loan, nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	if loan, ok := m.Loans[id]; ok {
		return loan, nil
	}
	return nil, domain.ErrLoanNotFound
}

// GetByRefNumber resolves a loan from its reference number
func (m *MockLoanRepository) GetByRefNumber(ctx context.Context, ref string) (*domain.Loan, error) {
	if loan, ok := m.ByRef[ref]; ok {
		return loan, nil
	}
	return nil, domain.ErrLoanRefUnknown
}

// OutstandingBalance sums remaining due across the linked schedule repository,
// unless OutstandingBalanceFn overrides it.
func (m *MockLoanRepository) OutstandingBalance(ctx context.Context, tx any, loanID int32) (decimal.Decimal, error) {
	if m.OutstandingBalanceFn != nil {
		return m.OutstandingBalanceFn(loanID)
	}
	balance := decimal.Zero
	if m.Schedules != nil {
		for _, entry := range m.Schedules.Entries {
			if entry.LoanID == loanID {
				balance = balance.Add(entry.TotalDue.Sub(entry.AmountPaid))
			}
		}
	}
	return balance, nil
}

// UpdateStatus sets the loan's lifecycle status
func (m *MockLoanRepository) UpdateStatus(ctx context.Context, tx any, loanID int32, status domain.LoanStatus) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	loan, ok := m.Loans[loanID]
	if !ok {
		return domain.ErrLoanNotFound
	}
	loan.Status = status
	m.StatusUpdates = append(m.StatusUpdates, status)
	return nil
}

// MockScheduleRepository is a mock implementation of domain.ScheduleRepository
type MockScheduleRepository struct {
	Entries map[int32]*domain.ScheduleEntry
	NextID  int32

	UpdateAllocationFn func(entry *domain.ScheduleEntry) error
	UpdateCount        int
}

// NewMockScheduleRepository creates a new MockScheduleRepository
func NewMockScheduleRepository() *MockScheduleRepository {
	return &MockScheduleRepository{
		Entries: make(map[int32]*domain.ScheduleEntry),
		NextID:  1,
	}
}

// AddEntry adds a schedule entry to the mock repository (helper for tests)
func (m *MockScheduleRepository) AddEntry(entry *domain.ScheduleEntry) {
	if entry.ID == 0 {
		entry.ID = m.NextID
		m.NextID++
	}
	m.Entries[entry.ID] = entry
}

// CreateBatch assigns IDs and stores the entries
func (m *MockScheduleRepository) CreateBatch(ctx context.Context, tx any, entries []*domain.ScheduleEntry) error {
	for _, entry := range entries {
		m.AddEntry(entry)
	}
	return nil
}

// GetByID retrieves a schedule entry by ID
func (m *MockScheduleRepository) GetByID(ctx context.Context, id int32) (*domain.ScheduleEntry, error) {
	if entry, ok := m.Entries[id]; ok {
		return entry, nil
	}
	return nil, domain.ErrScheduleNotFound
}

// ListByLoan retrieves all entries for a loan in installment order
func (m *MockScheduleRepository) ListByLoan(ctx context.Context, loanID int32) ([]*domain.ScheduleEntry, error) {
	entries := m.filter(func(e *domain.ScheduleEntry) bool { return e.LoanID == loanID })
	sort.Slice(entries, func(i, j int) bool { return entries[i].InstallmentNo < entries[j].InstallmentNo })
	return entries, nil
}

// ListOpenByLoan returns entries not fully paid, earliest due date first
func (m *MockScheduleRepository) ListOpenByLoan(ctx context.Context, tx any, loanID int32) ([]*domain.ScheduleEntry, error) {
	entries := m.filter(func(e *domain.ScheduleEntry) bool {
		return e.LoanID == loanID && e.Status != domain.ScheduleStatusPaid
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DueDate.Equal(entries[j].DueDate) {
			return entries[i].InstallmentNo < entries[j].InstallmentNo
		}
		return entries[i].DueDate.Before(entries[j].DueDate)
	})
	return entries, nil
}

// ListTouchedByLoan returns entries with money applied, latest due date first
func (m *MockScheduleRepository) ListTouchedByLoan(ctx context.Context, tx any, loanID int32) ([]*domain.ScheduleEntry, error) {
	entries := m.filter(func(e *domain.ScheduleEntry) bool {
		return e.LoanID == loanID && !e.AmountPaid.IsZero()
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DueDate.Equal(entries[j].DueDate) {
			return entries[i].InstallmentNo > entries[j].InstallmentNo
		}
		return entries[i].DueDate.After(entries[j].DueDate)
	})
	return entries, nil
}

// UpdateAllocation stores the updated entry
func (m *MockScheduleRepository) UpdateAllocation(ctx context.Context, tx any, entry *domain.ScheduleEntry) error {
	if m.UpdateAllocationFn != nil {
		if err := m.UpdateAllocationFn(entry); err != nil {
			return err
		}
	}
	if _, ok := m.Entries[entry.ID]; !ok {
		return domain.ErrScheduleNotFound
	}
	m.Entries[entry.ID] = entry
	m.UpdateCount++
	return nil
}

func (m *MockScheduleRepository) filter(keep func(*domain.ScheduleEntry) bool) []*domain.ScheduleEntry {
	var entries []*domain.ScheduleEntry
	for _, entry := range m.Entries {
		if keep(entry) {
			entries = append(entries, entry)
		}
	}
	return entries
}

// MockPaymentRepository is a mock implementation of domain.PaymentRepository
type MockPaymentRepository struct {
	Records  map[uuid.UUID]*domain.PaymentRecord
	Inserted []*domain.PaymentRecord

	InsertErr error
	UpdateErr error
}

// NewMockPaymentRepository creates a new MockPaymentRepository
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		Records: make(map[uuid.UUID]*domain.PaymentRecord),
	}
}

// Insert stores a new payment record
func (m *MockPaymentRepository) Insert(ctx context.Context, tx any, rec *domain.PaymentRecord) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Records[rec.ID] = rec
	m.Inserted = append(m.Inserted, rec)
	return nil
}

// Update rewrites an existing payment record
func (m *MockPaymentRepository) Update(ctx context.Context, tx any, rec *domain.PaymentRecord) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.Records[rec.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	m.Records[rec.ID] = rec
	return nil
}

// GetByID retrieves a payment record by ID
func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	if rec, ok := m.Records[id]; ok {
		return rec, nil
	}
	return nil, domain.ErrPaymentNotFound
}
