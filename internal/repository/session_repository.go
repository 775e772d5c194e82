package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushub/campushub-api/internal/models"
)

const sessionColumns = `id, user_id, token, expires_at, created_at, ip_address, user_agent`

// SessionRepository tracks server-side refresh-token sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, user_id, token, expires_at, created_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Rotate atomically swaps the token and expiry on the session row holding
// oldToken, provided it has not expired. The single conditional UPDATE is
// what guarantees at-most-one successful rotation when two refresh calls
// race on the same token: the loser matches zero rows and gets
// sql.ErrNoRows.
func (r *SessionRepository) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*models.Session, error) {
	query := fmt.Sprintf(`UPDATE sessions SET token = $2, expires_at = $3 WHERE token = $1 AND expires_at > NOW() RETURNING %s`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, oldToken, newToken, expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	return &session, nil
}

// FindByToken returns the unexpired session holding the exact token value.
// Expired sessions are treated as absent.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE token = $1 AND expires_at > NOW() LIMIT 1`, sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by token: %w", err)
	}
	return &session, nil
}

// DeleteByUser removes every session owned by the user. Used by logout and
// password reset, both of which end access everywhere.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry. Called periodically as
// housekeeping; correctness never depends on it since every read path checks
// expiry itself.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= NOW()`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted sessions: %w", err)
	}
	return affected, nil
}

// CountByUser returns the number of live sessions a user holds.
func (r *SessionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND expires_at > NOW()`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count user sessions: %w", err)
	}
	return count, nil
}
