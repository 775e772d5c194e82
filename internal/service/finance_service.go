package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/campushub-api/internal/models"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
	"github.com/campushub/campushub-api/pkg/export"
)

const financeSummaryTTL = 5 * time.Minute

type financeRepository interface {
	Create(ctx context.Context, record *models.FinanceRecord) error
	List(ctx context.Context, filter models.FinanceFilter) ([]models.FinanceRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.FinanceRecord, error)
	MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) error
	Summary(ctx context.Context, studentID string) (*models.FinanceSummary, error)
}

// FinanceService manages invoices and payments on student accounts. The
// outstanding-balance summary is cached in Redis and invalidated on every
// write for the student.
type FinanceService struct {
	repo      financeRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFinanceService constructs a FinanceService instance.
func NewFinanceService(repo financeRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *FinanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FinanceService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Create posts a new invoice or payment.
func (s *FinanceService) Create(ctx context.Context, req models.CreateFinanceRecordRequest, createdBy string) (*models.FinanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finance payload")
	}

	now := time.Now().UTC()
	record := &models.FinanceRecord{
		ID:          uuid.NewString(),
		StudentID:   req.StudentID,
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Description: req.Description,
		Reference:   req.Reference,
		DueDate:     req.DueDate,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store finance record")
	}

	s.invalidateSummary(ctx, req.StudentID)
	return record, nil
}

// List returns finance records matching the filter.
func (s *FinanceService) List(ctx context.Context, filter models.FinanceFilter) ([]models.FinanceRecord, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list finance records")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single finance record.
func (s *FinanceService) Get(ctx context.Context, id string) (*models.FinanceRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "finance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load finance record")
	}
	return record, nil
}

// MarkPaid settles an open invoice.
func (s *FinanceService) MarkPaid(ctx context.Context, id string) (*models.FinanceRecord, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Type != models.FinanceInvoice {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only invoices can be marked paid")
	}
	if record.PaidAt != nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "invoice already paid")
	}

	now := time.Now().UTC()
	if err := s.repo.MarkInvoicePaid(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoice paid")
	}

	record.PaidAt = &now
	s.invalidateSummary(ctx, record.StudentID)
	return record, nil
}

// Summary returns the student's invoiced, paid and outstanding totals,
// served from cache when possible.
func (s *FinanceService) Summary(ctx context.Context, studentID string) (*models.FinanceSummary, error) {
	key := financeSummaryKey(studentID)

	var cached models.FinanceSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	summary, err := s.repo.Summary(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build finance summary")
	}
	summary.StudentID = studentID
	summary.OutstandingCents = summary.InvoicedCents - summary.PaidCents

	if err := s.cache.Set(ctx, key, summary, financeSummaryTTL); err != nil {
		s.logger.Warn("failed to cache finance summary", zap.String("key", key), zap.Error(err))
	}

	return summary, nil
}

// Statement builds an exportable account statement for a student.
func (s *FinanceService) Statement(ctx context.Context, studentID string) (*export.Dataset, error) {
	records, _, err := s.repo.List(ctx, models.FinanceFilter{StudentID: studentID, Page: 1, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list finance records")
	}

	dataset := &export.Dataset{
		Title:   fmt.Sprintf("Account statement %s", studentID),
		Headers: []string{"Date", "Type", "Description", "Amount", "Status"},
	}
	for _, record := range records {
		status := "-"
		if record.Type == models.FinanceInvoice {
			if record.PaidAt != nil {
				status = "PAID"
			} else {
				status = "OPEN"
			}
		}
		dataset.Rows = append(dataset.Rows, []string{
			record.CreatedAt.Format("2006-01-02"),
			string(record.Type),
			record.Description,
			formatCents(record.AmountCents, record.Currency),
			status,
		})
	}
	return dataset, nil
}

func (s *FinanceService) invalidateSummary(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, financeSummaryKey(studentID)); err != nil {
		s.logger.Warn("failed to invalidate finance summary cache", zap.String("student_id", studentID), zap.Error(err))
	}
}

func financeSummaryKey(studentID string) string {
	return fmt.Sprintf("finance:summary:%s", studentID)
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}
