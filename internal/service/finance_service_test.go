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

type mockFinanceRepo struct {
	records      map[string]*models.FinanceRecord
	summary      models.FinanceSummary
	summaryCalls int
}

func newMockFinanceRepo() *mockFinanceRepo {
	return &mockFinanceRepo{records: map[string]*models.FinanceRecord{}}
}

func (m *mockFinanceRepo) Create(_ context.Context, record *models.FinanceRecord) error {
	m.records[record.ID] = record
	return nil
}

func (m *mockFinanceRepo) List(_ context.Context, filter models.FinanceFilter) ([]models.FinanceRecord, int, error) {
	var out []models.FinanceRecord
	for _, r := range m.records {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockFinanceRepo) FindByID(_ context.Context, id string) (*models.FinanceRecord, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (m *mockFinanceRepo) MarkInvoicePaid(_ context.Context, id string, paidAt time.Time) error {
	record, ok := m.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	record.PaidAt = &paidAt
	return nil
}

func (m *mockFinanceRepo) Summary(_ context.Context, _ string) (*models.FinanceSummary, error) {
	m.summaryCalls++
	s := m.summary
	return &s, nil
}

func newTestFinanceService(t *testing.T) (*FinanceService, *mockFinanceRepo) {
	t.Helper()
	repo := newMockFinanceRepo()
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	return NewFinanceService(repo, cache, nil, zap.NewNop()), repo
}

func createInvoice(t *testing.T, svc *FinanceService, cents int64) *models.FinanceRecord {
	t.Helper()
	record, err := svc.Create(context.Background(), models.CreateFinanceRecordRequest{
		StudentID:   "student-1",
		Type:        models.FinanceInvoice,
		AmountCents: cents,
		Currency:    "IDR",
		Description: "Tuition term 1",
	}, "admin-1")
	require.NoError(t, err)
	return record
}

func TestFinanceCreateRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestFinanceService(t)

	_, err := svc.Create(context.Background(), models.CreateFinanceRecordRequest{
		StudentID:   "student-1",
		Type:        models.FinanceInvoice,
		AmountCents: 0,
		Currency:    "IDR",
		Description: "Tuition",
	}, "admin-1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestFinanceMarkPaidSettlesInvoiceOnce(t *testing.T) {
	svc, repo := newTestFinanceService(t)
	invoice := createInvoice(t, svc, 250_000_00)

	paid, err := svc.MarkPaid(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, repo.records[invoice.ID].PaidAt)

	_, err = svc.MarkPaid(context.Background(), invoice.ID)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrDuplicateEntry.Code, appErr.Code)
}

func TestFinanceMarkPaidRejectsPayments(t *testing.T) {
	svc, _ := newTestFinanceService(t)
	payment, err := svc.Create(context.Background(), models.CreateFinanceRecordRequest{
		StudentID:   "student-1",
		Type:        models.FinancePayment,
		AmountCents: 100_000_00,
		Currency:    "IDR",
		Description: "Bank transfer",
	}, "admin-1")
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), payment.ID)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestFinanceSummaryComputesOutstanding(t *testing.T) {
	svc, repo := newTestFinanceService(t)
	repo.summary = models.FinanceSummary{InvoicedCents: 500_000_00, PaidCents: 150_000_00, Currency: "IDR"}

	summary, err := svc.Summary(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, int64(350_000_00), summary.OutstandingCents)
	assert.Equal(t, "student-1", summary.StudentID)
}

func TestFinanceWriteInvalidatesSummaryCache(t *testing.T) {
	svc, repo := newTestFinanceService(t)
	repo.summary = models.FinanceSummary{InvoicedCents: 100_00, Currency: "IDR"}

	_, err := svc.Summary(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.summaryCalls)

	_, err = svc.Summary(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.summaryCalls, "second read must come from cache")

	createInvoice(t, svc, 200_00)

	repo.summary = models.FinanceSummary{InvoicedCents: 300_00, Currency: "IDR"}
	refreshed, err := svc.Summary(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.summaryCalls)
	assert.Equal(t, int64(300_00), refreshed.OutstandingCents)
}

func TestFinanceStatementMarksOpenInvoices(t *testing.T) {
	svc, _ := newTestFinanceService(t)
	invoice := createInvoice(t, svc, 250_000_00)
	_, err := svc.Create(context.Background(), models.CreateFinanceRecordRequest{
		StudentID:   "student-1",
		Type:        models.FinancePayment,
		AmountCents: 100_000_00,
		Currency:    "IDR",
		Description: "Partial payment",
	}, "admin-1")
	require.NoError(t, err)

	dataset, err := svc.Statement(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Type", "Description", "Amount", "Status"}, dataset.Headers)
	require.Len(t, dataset.Rows, 2)

	statuses := map[string]string{}
	for _, row := range dataset.Rows {
		statuses[row[1]] = row[4]
	}
	assert.Equal(t, "OPEN", statuses["INVOICE"])
	assert.Equal(t, "-", statuses["PAYMENT"])

	_, err = svc.MarkPaid(context.Background(), invoice.ID)
	require.NoError(t, err)
	dataset, err = svc.Statement(context.Background(), "student-1")
	require.NoError(t, err)
	statuses = map[string]string{}
	for _, row := range dataset.Rows {
		statuses[row[1]] = row[4]
	}
	assert.Equal(t, "PAID", statuses["INVOICE"])
}
