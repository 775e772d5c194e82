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
)

type admissionRepository interface {
	Create(ctx context.Context, app *models.AdmissionApplication) error
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionApplication, int, error)
	FindByID(ctx context.Context, id string) (*models.AdmissionApplication, error)
	UpdateStatus(ctx context.Context, id string, status models.AdmissionStatus, decidedBy *string, decidedAt *time.Time) error
}

// AdmissionService manages the application pipeline from public submission
// to staff decision.
type AdmissionService struct {
	repo      admissionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdmissionService constructs an AdmissionService instance.
func NewAdmissionService(repo admissionRepository, validate *validator.Validate, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionService{repo: repo, validator: validate, logger: logger}
}

// Submit files a new application. submittedBy is nil for anonymous
// submissions from the public form.
func (s *AdmissionService) Submit(ctx context.Context, req models.SubmitAdmissionRequest, submittedBy *string) (*models.AdmissionApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	now := time.Now().UTC()
	app := &models.AdmissionApplication{
		ID:            uuid.NewString(),
		ApplicantName: req.ApplicantName,
		Email:         req.Email,
		BirthDate:     req.BirthDate,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		PriorSchool:   req.PriorSchool,
		Notes:         req.Notes,
		Status:        models.AdmissionPending,
		SubmittedBy:   submittedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store application")
	}

	s.logger.Info("admission application submitted", zap.String("application_id", app.ID))
	return app, nil
}

// List returns applications matching the filter.
func (s *AdmissionService) List(ctx context.Context, filter models.AdmissionFilter) ([]models.AdmissionApplication, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return apps, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single application.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.AdmissionApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

// Decide moves an application along the review pipeline. ACCEPTED and
// REJECTED are terminal; an illegal transition is rejected before any write.
func (s *AdmissionService) Decide(ctx context.Context, id string, req models.DecideAdmissionRequest, decidedBy string) (*models.AdmissionApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.ValidAdmissionTransition(app.Status, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot move application from %s to %s", app.Status, req.Status))
	}

	var by *string
	var at *time.Time
	if req.Status == models.AdmissionAccepted || req.Status == models.AdmissionRejected {
		now := time.Now().UTC()
		by, at = &decidedBy, &now
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status, by, at); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
	}

	app.Status = req.Status
	app.DecidedBy = by
	app.DecidedAt = at
	return app, nil
}
