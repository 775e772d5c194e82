package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/campushub-api/internal/models"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
)

type mockAdmissionRepo struct {
	apps map[string]*models.AdmissionApplication
}

func newMockAdmissionRepo() *mockAdmissionRepo {
	return &mockAdmissionRepo{apps: map[string]*models.AdmissionApplication{}}
}

func (m *mockAdmissionRepo) Create(_ context.Context, app *models.AdmissionApplication) error {
	m.apps[app.ID] = app
	return nil
}

func (m *mockAdmissionRepo) List(_ context.Context, _ models.AdmissionFilter) ([]models.AdmissionApplication, int, error) {
	out := make([]models.AdmissionApplication, 0, len(m.apps))
	for _, a := range m.apps {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *mockAdmissionRepo) FindByID(_ context.Context, id string) (*models.AdmissionApplication, error) {
	app, ok := m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (m *mockAdmissionRepo) UpdateStatus(_ context.Context, id string, status models.AdmissionStatus, decidedBy *string, decidedAt *time.Time) error {
	app, ok := m.apps[id]
	if !ok {
		return sql.ErrNoRows
	}
	app.Status = status
	app.DecidedBy = decidedBy
	app.DecidedAt = decidedAt
	return nil
}

func submitTestApplication(t *testing.T, svc *AdmissionService, submittedBy *string) *models.AdmissionApplication {
	t.Helper()
	app, err := svc.Submit(context.Background(), models.SubmitAdmissionRequest{
		ApplicantName: "Mia Larasati",
		Email:         "mia@example.com",
		BirthDate:     time.Date(2014, 6, 2, 0, 0, 0, 0, time.UTC),
		GuardianName:  "Rudi Larasati",
		GuardianPhone: "+62-811-000-111",
	}, submittedBy)
	require.NoError(t, err)
	return app
}

func TestAdmissionSubmitStartsPending(t *testing.T) {
	repo := newMockAdmissionRepo()
	svc := NewAdmissionService(repo, nil, zap.NewNop())

	app := submitTestApplication(t, svc, nil)
	assert.Equal(t, models.AdmissionPending, app.Status)
	assert.Nil(t, app.SubmittedBy)
	assert.Nil(t, app.DecidedBy)
}

func TestAdmissionSubmitRecordsAuthenticatedSubmitter(t *testing.T) {
	repo := newMockAdmissionRepo()
	svc := NewAdmissionService(repo, nil, zap.NewNop())

	submitter := "parent-1"
	app := submitTestApplication(t, svc, &submitter)
	require.NotNil(t, app.SubmittedBy)
	assert.Equal(t, "parent-1", *app.SubmittedBy)
}

func TestAdmissionDecideStampsTerminalDecisions(t *testing.T) {
	repo := newMockAdmissionRepo()
	svc := NewAdmissionService(repo, nil, zap.NewNop())
	app := submitTestApplication(t, svc, nil)

	moved, err := svc.Decide(context.Background(), app.ID, models.DecideAdmissionRequest{Status: models.AdmissionReviewing}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionReviewing, moved.Status)
	assert.Nil(t, moved.DecidedBy, "review is not a decision")

	accepted, err := svc.Decide(context.Background(), app.ID, models.DecideAdmissionRequest{Status: models.AdmissionAccepted}, "admin-1")
	require.NoError(t, err)
	require.NotNil(t, accepted.DecidedBy)
	assert.Equal(t, "admin-1", *accepted.DecidedBy)
	require.NotNil(t, accepted.DecidedAt)
}

func TestAdmissionDecideRejectsIllegalTransitions(t *testing.T) {
	repo := newMockAdmissionRepo()
	svc := NewAdmissionService(repo, nil, zap.NewNop())
	app := submitTestApplication(t, svc, nil)

	_, err := svc.Decide(context.Background(), app.ID, models.DecideAdmissionRequest{Status: models.AdmissionRejected}, "admin-1")
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), app.ID, models.DecideAdmissionRequest{Status: models.AdmissionReviewing}, "admin-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, models.AdmissionRejected, repo.apps[app.ID].Status, "failed transition must not write")
}

func TestAdmissionDecideUnknownApplication(t *testing.T) {
	svc := NewAdmissionService(newMockAdmissionRepo(), nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), "missing", models.DecideAdmissionRequest{Status: models.AdmissionReviewing}, "admin-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
