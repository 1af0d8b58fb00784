package postgres

import (
	"context"
	"errors"

	"github.com/coopware/lending-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScheduleRepository implements domain.ScheduleRepository using PostgreSQL
type ScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

const scheduleColumns = `id, loan_id, installment_no, due_date, principal_due, interest_due,
	fee_due, total_due, amount_paid, paid, status, paid_at, created_at, updated_at`

// CreateBatch inserts a loan's full installment set at release time.
func (r *ScheduleRepository) CreateBatch(ctx context.Context, tx any, entries []*domain.ScheduleEntry) error {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		principalDue, err := decimalToPgNumeric(entry.PrincipalDue)
		if err != nil {
			return err
		}
		interestDue, err := decimalToPgNumeric(entry.InterestDue)
		if err != nil {
			return err
		}
		feeDue, err := decimalToPgNumeric(entry.FeeDue)
		if err != nil {
			return err
		}
		totalDue, err := decimalToPgNumeric(entry.TotalDue)
		if err != nil {
			return err
		}

		row := q.QueryRow(ctx, `
			INSERT INTO loan_schedules (loan_id, installment_no, due_date, principal_due,
				interest_due, fee_due, total_due, amount_paid, paid, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, false, $8)
			RETURNING id`,
			entry.LoanID, entry.InstallmentNo, entry.DueDate, principalDue,
			interestDue, feeDue, totalDue, string(entry.Status))
		if err := row.Scan(&entry.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a schedule entry by its ID
func (r *ScheduleRepository) GetByID(ctx context.Context, id int32) (*domain.ScheduleEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM loan_schedules WHERE id = $1`, id)
	entry, err := scanScheduleEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, err
	}
	return entry, nil
}

// ListByLoan retrieves all installments for a loan in installment order
func (r *ScheduleRepository) ListByLoan(ctx context.Context, loanID int32) ([]*domain.ScheduleEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM loan_schedules
		WHERE loan_id = $1
		ORDER BY installment_no ASC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScheduleEntries(rows)
}

// ListOpenByLoan returns entries not yet fully paid, earliest due date first.
func (r *ScheduleRepository) ListOpenByLoan(ctx context.Context, tx any, loanID int32) ([]*domain.ScheduleEntry, error) {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM loan_schedules
		WHERE loan_id = $1 AND status <> $2
		ORDER BY due_date ASC, installment_no ASC`, loanID, string(domain.ScheduleStatusPaid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScheduleEntries(rows)
}

// ListTouchedByLoan returns entries with money applied, latest due date first.
func (r *ScheduleRepository) ListTouchedByLoan(ctx context.Context, tx any, loanID int32) ([]*domain.ScheduleEntry, error) {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM loan_schedules
		WHERE loan_id = $1 AND amount_paid <> 0
		ORDER BY due_date DESC, installment_no DESC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScheduleEntries(rows)
}

// UpdateAllocation persists the allocation-owned fields of an entry
func (r *ScheduleRepository) UpdateAllocation(ctx context.Context, tx any, entry *domain.ScheduleEntry) error {
	q, err := asQuerier(r.pool, tx)
	if err != nil {
		return err
	}

	amountPaid, err := decimalToPgNumeric(entry.AmountPaid)
	if err != nil {
		return err
	}

	paidAt := pgtype.Timestamptz{}
	if entry.PaidAt != nil {
		paidAt.Time = *entry.PaidAt
		paidAt.Valid = true
	}

	tag, err := q.Exec(ctx, `
		UPDATE loan_schedules
		SET amount_paid = $1, paid = $2, status = $3, paid_at = $4, updated_at = NOW()
		WHERE id = $5`,
		amountPaid, entry.Paid, string(entry.Status), paidAt, entry.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func scanScheduleEntries(rows pgx.Rows) ([]*domain.ScheduleEntry, error) {
	var entries []*domain.ScheduleEntry
	for rows.Next() {
		entry, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanScheduleEntry(row pgx.Row) (*domain.ScheduleEntry, error) {
	var (
		entry        domain.ScheduleEntry
		principalDue pgtype.Numeric
		interestDue  pgtype.Numeric
		feeDue       pgtype.Numeric
		totalDue     pgtype.Numeric
		amountPaid   pgtype.Numeric
		status       string
		paidAt       pgtype.Timestamptz
	)
	err := row.Scan(&entry.ID, &entry.LoanID, &entry.InstallmentNo, &entry.DueDate,
		&principalDue, &interestDue, &feeDue, &totalDue, &amountPaid, &entry.Paid,
		&status, &paidAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}

	entry.PrincipalDue = pgNumericToDecimal(principalDue)
	entry.InterestDue = pgNumericToDecimal(interestDue)
	entry.FeeDue = pgNumericToDecimal(feeDue)
	entry.TotalDue = pgNumericToDecimal(totalDue)
	entry.AmountPaid = pgNumericToDecimal(amountPaid)
	entry.Status = domain.ScheduleStatus(status)
	if paidAt.Valid {
		entry.PaidAt = &paidAt.Time
	}
	return &entry, nil
}
