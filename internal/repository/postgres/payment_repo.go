package postgres

import (
	"context"
	"errors"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository implements domain.PaymentRepository using PostgreSQL
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Insert writes one ledger row describing an allocation step
func (r *PaymentRepository) Insert(ctx context.Context, tx any, rec *domain.PaymentRecord) error {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return err
	}

	amount, err := decimalToPgNumeric(rec.Amount)
	if err != nil {
		return err
	}
	principalPaid, err := decimalToPgNumeric(rec.PrincipalPaid)
	if err != nil {
		return err
	}
	interestPaid, err := decimalToPgNumeric(rec.InterestPaid)
	if err != nil {
		return err
	}
	feePaid, err := decimalToPgNumeric(rec.FeePaid)
	if err != nil {
		return err
	}

	scheduleID := pgtype.Int4{}
	if rec.ScheduleID != nil {
		scheduleID.Int32 = *rec.ScheduleID
		scheduleID.Valid = true
	}

	row := q.QueryRow(ctx, `
		INSERT INTO loan_payments (id, schedule_id, loan_id, account_number, loan_ref_number,
			method, date, receipt_no, amount, principal_paid, interest_paid, fee_paid, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		rec.ID, scheduleID, rec.LoanID, rec.AccountNumber, rec.LoanRefNumber,
		rec.Method, rec.Date, rec.ReceiptNo, amount, principalPaid, interestPaid,
		feePaid, string(rec.Status))
	return row.Scan(&rec.CreatedAt)
}

// Update rewrites a ledger row after a payment correction
func (r *PaymentRepository) Update(ctx context.Context, tx any, rec *domain.PaymentRecord) error {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return err
	}

	amount, err := decimalToPgNumeric(rec.Amount)
	if err != nil {
		return err
	}
	principalPaid, err := decimalToPgNumeric(rec.PrincipalPaid)
	if err != nil {
		return err
	}
	interestPaid, err := decimalToPgNumeric(rec.InterestPaid)
	if err != nil {
		return err
	}
	feePaid, err := decimalToPgNumeric(rec.FeePaid)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE loan_payments
		SET method = $1, date = $2, receipt_no = $3, amount = $4,
			principal_paid = $5, interest_paid = $6, fee_paid = $7, status = $8
		WHERE id = $9`,
		rec.Method, rec.Date, rec.ReceiptNo, amount,
		principalPaid, interestPaid, feePaid, string(rec.Status), rec.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// GetByID retrieves a payment record by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	var (
		rec           domain.PaymentRecord
		scheduleID    pgtype.Int4
		amount        pgtype.Numeric
		principalPaid pgtype.Numeric
		interestPaid  pgtype.Numeric
		feePaid       pgtype.Numeric
		status        string
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, schedule_id, loan_id, account_number, loan_ref_number, method, date,
			receipt_no, amount, principal_paid, interest_paid, fee_paid, status, created_at
		FROM loan_payments
		WHERE id = $1`, id)
	err := row.Scan(&rec.ID, &scheduleID, &rec.LoanID, &rec.AccountNumber, &rec.LoanRefNumber,
		&rec.Method, &rec.Date, &rec.ReceiptNo, &amount, &principalPaid, &interestPaid,
		&feePaid, &status, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	if scheduleID.Valid {
		rec.ScheduleID = &scheduleID.Int32
	}
	rec.Amount = pgNumericToDecimal(amount)
	rec.PrincipalPaid = pgNumericToDecimal(principalPaid)
	rec.InterestPaid = pgNumericToDecimal(interestPaid)
	rec.FeePaid = pgNumericToDecimal(feePaid)
	rec.Status = domain.PaymentStatus(status)
	return &rec, nil
}
