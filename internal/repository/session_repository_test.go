package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/campushub-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func sessionRows(token string, expiresAt time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "ip_address", "user_agent"}).
		AddRow("s1", "u1", token, expiresAt, now, "127.0.0.1", "test-agent")
}

func TestSessionCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Session{
		UserID:    "u1",
		Token:     "refresh-token",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRotateSwapsTokenInPlace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	expiresAt := time.Now().Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sessions SET token = $2, expires_at = $3 WHERE token = $1 AND expires_at > NOW() RETURNING")).
		WithArgs("old-token", "new-token", expiresAt).
		WillReturnRows(sessionRows("new-token", expiresAt))

	session, err := repo.Rotate(context.Background(), "old-token", "new-token", expiresAt)
	require.NoError(t, err)
	assert.Equal(t, "new-token", session.Token)
	assert.Equal(t, "u1", session.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRotateConsumedTokenReturnsNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery("UPDATE sessions SET token").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Rotate(context.Background(), "already-used", "new-token", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionFindByTokenIgnoresExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, token, expires_at, created_at, ip_address, user_agent FROM sessions WHERE token = $1 AND expires_at > NOW() LIMIT 1")).
		WithArgs("expired-token").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByToken(context.Background(), "expired-token")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionDeleteByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.DeleteByUser(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionDeleteExpiredReportsCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at <= NOW()")).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionDeleteExpiredSurfacesRowCountError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rowsErr := errors.New("rows affected unavailable")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at <= NOW()")).
		WillReturnResult(sqlmock.NewErrorResult(rowsErr))

	_, err := repo.DeleteExpired(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rowsErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
