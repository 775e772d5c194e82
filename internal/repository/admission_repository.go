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

const admissionColumns = `id, applicant_name, email, birth_date, guardian_name, guardian_phone, prior_school, notes, status, submitted_by, decided_by, decided_at, created_at, updated_at`

// AdmissionRepository provides database access for admission applications.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository creates a new instance of AdmissionRepository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// Create inserts an application in PENDING state.
func (r *AdmissionRepository) Create(ctx context.Context, app *models.AdmissionApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = models.AdmissionPending
	}
	const query = `INSERT INTO admission_applications (id, applicant_name, email, birth_date, guardian_name, guardian_phone, prior_school, notes, status, submitted_by, created_at, updated_at)
		VALUES (:id, :applicant_name, :email, :birth_date, :guardian_name, :guardian_phone, :prior_school, :notes, :status, :submitted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create admission application: %w", err)
	}
	return nil
}

// List returns applications matching the filter with a total count.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionApplication, int, error) {
	baseQuery := `FROM admission_applications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(applicant_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", admissionColumns, baseQuery, pageSize, offset)

	var apps []models.AdmissionApplication
	if err := r.db.SelectContext(ctx, &apps, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list admission applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count admission applications: %w", err)
	}

	return apps, total, nil
}

// FindByID returns an application by identifier.
func (r *AdmissionRepository) FindByID(ctx context.Context, id string) (*models.AdmissionApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM admission_applications WHERE id = $1 LIMIT 1`, admissionColumns)
	var app models.AdmissionApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admission application by id: %w", err)
	}
	return &app, nil
}

// UpdateStatus moves an application to a new status, recording the decider
// for terminal states.
func (r *AdmissionRepository) UpdateStatus(ctx context.Context, id string, status models.AdmissionStatus, decidedBy *string, decidedAt *time.Time) error {
	const query = `UPDATE admission_applications SET status = $2, decided_by = $3, decided_at = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, decidedBy, decidedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update admission status: %w", err)
	}
	return nil
}
