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

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, studentID, term string) ([]models.GradeSummary, error)
}

// GradeService manages grade entries and per-student report exports.
type GradeService struct {
	repo      gradeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService instance.
func NewGradeService(repo gradeRepository, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GradeService{repo: repo, validator: validate, logger: logger}
}

// List returns grades matching the filter.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single grade entry.
func (s *GradeService) Get(ctx context.Context, id string) (*models.Grade, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// Create records a new grade entry attributed to the acting teacher.
func (s *GradeService) Create(ctx context.Context, req models.CreateGradeRequest, recordedBy string) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	now := time.Now().UTC()
	grade := &models.Grade{
		ID:         uuid.NewString(),
		StudentID:  req.StudentID,
		Subject:    req.Subject,
		Term:       req.Term,
		Score:      req.Score,
		Weight:     req.Weight,
		Remarks:    req.Remarks,
		RecordedBy: recordedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	return grade, nil
}

// Update applies the non-nil fields of the request to the grade entry.
func (s *GradeService) Update(ctx context.Context, id string, req models.UpdateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}

	if req.Score != nil {
		grade.Score = *req.Score
	}
	if req.Weight != nil {
		grade.Weight = *req.Weight
	}
	if req.Remarks != nil {
		grade.Remarks = req.Remarks
	}
	grade.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	return grade, nil
}

// Delete removes a grade entry.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	return nil
}

// Summary returns the weighted per-subject averages for a student and term.
func (s *GradeService) Summary(ctx context.Context, studentID, term string) ([]models.GradeSummary, error) {
	summaries, err := s.repo.Summary(ctx, studentID, term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build grade summary")
	}
	return summaries, nil
}

// Report builds an exportable report card dataset for a student and term.
func (s *GradeService) Report(ctx context.Context, studentID, term string) (*export.Dataset, error) {
	summaries, err := s.Summary(ctx, studentID, term)
	if err != nil {
		return nil, err
	}

	dataset := &export.Dataset{
		Title:   fmt.Sprintf("Report card %s (%s)", studentID, term),
		Headers: []string{"Subject", "Term", "Weighted Average", "Entries"},
	}
	for _, row := range summaries {
		dataset.Rows = append(dataset.Rows, []string{
			row.Subject,
			row.Term,
			fmt.Sprintf("%.2f", row.WeightedMean),
			fmt.Sprintf("%d", row.EntryCount),
		})
	}
	return dataset, nil
}
