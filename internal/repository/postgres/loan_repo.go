package postgres

import (
	"context"
	"errors"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LoanRepository implements domain.LoanRepository using PostgreSQL
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `id, account_number, ref_number, principal, interest_rate, term_months,
	service_fee_rate, method, release_date, service_fee, total_payable, status, created_at, updated_at`

// Create inserts a new loan, optionally within a transaction
func (r *LoanRepository) Create(ctx context.Context, tx any, loan *domain.Loan) (*domain.Loan, error) {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return nil, err
	}

	principal, err := decimalToPgNumeric(loan.Principal)
	if err != nil {
		return nil, err
	}
	interestRate, err := decimalToPgNumeric(loan.InterestRate)
	if err != nil {
		return nil, err
	}
	serviceFeeRate, err := decimalToPgNumeric(loan.ServiceFeeRate)
	if err != nil {
		return nil, err
	}
	serviceFee, err := decimalToPgNumeric(loan.ServiceFee)
	if err != nil {
		return nil, err
	}
	totalPayable, err := decimalToPgNumeric(loan.TotalPayable)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `
		INSERT INTO loans (account_number, ref_number, principal, interest_rate, term_months,
			service_fee_rate, method, release_date, service_fee, total_payable, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+loanColumns,
		loan.AccountNumber, loan.RefNumber, principal, interestRate, loan.TermMonths,
		serviceFeeRate, string(loan.Method), loan.ReleaseDate, serviceFee, totalPayable, string(loan.Status))

	return scanLoan(row)
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// GetByRefNumber resolves a loan from its reference number
func (r *LoanRepository) GetByRefNumber(ctx context.Context, ref string) (*domain.Loan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE ref_number = $1`, ref)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanRefUnknown
		}
		return nil, err
	}
	return loan, nil
}

// OutstandingBalance sums what is still owed across the loan's schedule.
func (r *LoanRepository) OutstandingBalance(ctx context.Context, tx any, loanID int32) (decimal.Decimal, error) {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return decimal.Zero, err
	}

	var balance pgtype.Numeric
	row := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_due - amount_paid), 0)
		FROM loan_schedules
		WHERE loan_id = $1`, loanID)
	if err := row.Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return pgNumericToDecimal(balance), nil
}

// UpdateStatus sets the loan's lifecycle status
func (r *LoanRepository) UpdateStatus(ctx context.Context, tx any, loanID int32, status domain.LoanStatus) error {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE loans SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), loanID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan           domain.Loan
		principal      pgtype.Numeric
		interestRate   pgtype.Numeric
		serviceFeeRate pgtype.Numeric
		serviceFee     pgtype.Numeric
		totalPayable   pgtype.Numeric
		method         string
		status         string
	)
	err := row.Scan(&loan.ID, &loan.AccountNumber, &loan.RefNumber, &principal, &interestRate,
		&loan.TermMonths, &serviceFeeRate, &method, &loan.ReleaseDate, &serviceFee,
		&totalPayable, &status, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}

	loan.Principal = pgNumericToDecimal(principal)
	loan.InterestRate = pgNumericToDecimal(interestRate)
	loan.ServiceFeeRate = pgNumericToDecimal(serviceFeeRate)
	loan.ServiceFee = pgNumericToDecimal(serviceFee)
	loan.TotalPayable = pgNumericToDecimal(totalPayable)
	loan.Method = domain.InterestMethod(method)
	loan.Status = domain.LoanStatus(status)
	return &loan, nil
}
