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

const attendanceSummaryTTL = 5 * time.Minute

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	Summary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error)
}

// AttendanceService manages daily attendance records. Summaries are cached
// in Redis and invalidated whenever a record for the student changes.
type AttendanceService struct {
	repo      attendanceRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Record marks a student's status for a date. Recording the same student and
// date again overwrites the previous status.
func (s *AttendanceService) Record(ctx context.Context, req models.RecordAttendanceRequest, recordedBy string) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	now := time.Now().UTC()
	record := &models.AttendanceRecord{
		ID:         uuid.NewString(),
		StudentID:  req.StudentID,
		Date:       req.Date.Truncate(24 * time.Hour),
		Status:     req.Status,
		Note:       req.Note,
		RecordedBy: recordedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	if err := s.cache.Invalidate(ctx, attendanceSummaryPattern(req.StudentID)); err != nil {
		s.logger.Warn("failed to invalidate attendance summary cache", zap.String("student_id", req.StudentID), zap.Error(err))
	}

	return record, nil
}

// RecordBulk marks many students in one call. Records are applied in order;
// the first failure aborts and reports how many were written.
func (s *AttendanceService) RecordBulk(ctx context.Context, req models.BulkAttendanceRequest, recordedBy string) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	written := make([]models.AttendanceRecord, 0, len(req.Records))
	touched := make(map[string]struct{}, len(req.Records))
	for i, entry := range req.Records {
		record, err := s.Record(ctx, entry, recordedBy)
		if err != nil {
			return written, appErrors.Wrap(err, appErrors.FromError(err).Code, appErrors.FromError(err).Status,
				fmt.Sprintf("bulk attendance stopped at record %d of %d", i+1, len(req.Records)))
		}
		written = append(written, *record)
		touched[entry.StudentID] = struct{}{}
	}

	s.logger.Info("bulk attendance recorded", zap.Int("records", len(written)), zap.Int("students", len(touched)))
	return written, nil
}

// List returns attendance records matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 31
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single attendance record.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance record")
	}
	return record, nil
}

// Summary returns per-status counts for a student over a date range, served
// from cache when possible.
func (s *AttendanceService) Summary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error) {
	key := attendanceSummaryKey(studentID, from, to)

	var cached models.AttendanceSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	summary, err := s.repo.Summary(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance summary")
	}
	summary.StudentID = studentID

	if err := s.cache.Set(ctx, key, summary, attendanceSummaryTTL); err != nil {
		s.logger.Warn("failed to cache attendance summary", zap.String("key", key), zap.Error(err))
	}

	return summary, nil
}

func attendanceSummaryKey(studentID string, from, to time.Time) string {
	return fmt.Sprintf("attendance:summary:%s:%s:%s", studentID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func attendanceSummaryPattern(studentID string) string {
	return fmt.Sprintf("attendance:summary:%s:*", studentID)
}
