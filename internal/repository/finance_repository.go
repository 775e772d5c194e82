package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/campushub-api/internal/models"
)

const financeColumns = `id, student_id, type, amount_cents, currency, description, reference, due_date, paid_at, created_by, created_at, updated_at`

// FinanceRepository provides database access for finance records.
type FinanceRepository struct {
	db *sqlx.DB
}

// NewFinanceRepository creates a new instance of FinanceRepository.
func NewFinanceRepository(db *sqlx.DB) *FinanceRepository {
	return &FinanceRepository{db: db}
}

// Create inserts a finance record.
func (r *FinanceRepository) Create(ctx context.Context, record *models.FinanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO finance_records (id, student_id, type, amount_cents, currency, description, reference, due_date, paid_at, created_by, created_at, updated_at)
		VALUES (:id, :student_id, :type, :amount_cents, :currency, :description, :reference, :due_date, :paid_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create finance record: %w", err)
	}
	return nil
}

// List returns finance records matching the filter with a total count.
func (r *FinanceRepository) List(ctx context.Context, filter models.FinanceFilter) ([]models.FinanceRecord, int, error) {
	baseQuery := `FROM finance_records WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Unpaid {
		conditions = append(conditions, "type = 'INVOICE' AND paid_at IS NULL")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", financeColumns, baseQuery, pageSize, offset)

	var records []models.FinanceRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list finance records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count finance records: %w", err)
	}

	return records, total, nil
}

// FindByID returns a finance record by identifier.
func (r *FinanceRepository) FindByID(ctx context.Context, id string) (*models.FinanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM finance_records WHERE id = $1 LIMIT 1`, financeColumns)
	var record models.FinanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find finance record by id: %w", err)
	}
	return &record, nil
}

// MarkInvoicePaid stamps paid_at on an open invoice.
func (r *FinanceRepository) MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) error {
	const query = `UPDATE finance_records SET paid_at = $2, updated_at = $3 WHERE id = $1 AND type = 'INVOICE' AND paid_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, paidAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	return nil
}

// Summary totals invoiced and paid amounts for a student.
func (r *FinanceRepository) Summary(ctx context.Context, studentID string) (*models.FinanceSummary, error) {
	const query = `SELECT
		COALESCE(SUM(amount_cents) FILTER (WHERE type = 'INVOICE'), 0) AS invoiced_cents,
		COALESCE(SUM(amount_cents) FILTER (WHERE type = 'PAYMENT'), 0) AS paid_cents
		FROM finance_records WHERE student_id = $1`
	var summary models.FinanceSummary
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		return nil, fmt.Errorf("finance summary: %w", err)
	}
	summary.StudentID = studentID
	summary.OutstandingCents = summary.InvoicedCents - summary.PaidCents
	return &summary, nil
}
