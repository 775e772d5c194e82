package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushub/campushub-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, active, email_verified_at, last_login, reset_token_hash, reset_token_expires_at, created_at, updated_at`

// UserRepository provides database access for users and their role profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address. Emails are stored lowercase;
// the lookup normalises the argument so matching is case-insensitive.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// CreateWithProfile inserts the user and its role-specific profile in one
// transaction. Either both rows exist afterwards or neither does.
func (r *UserRepository) CreateWithProfile(ctx context.Context, user *models.User, profile models.Profile) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const userQuery = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if err := insertProfile(ctx, tx, user, profile, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user tx: %w", err)
	}
	return nil
}

func insertProfile(ctx context.Context, tx *sqlx.Tx, user *models.User, profile models.Profile, now time.Time) error {
	switch user.Role {
	case models.RoleStudent:
		if profile.Student == nil {
			return fmt.Errorf("student profile required for role %s", user.Role)
		}
		p := profile.Student
		p.UserID = user.ID
		p.CreatedAt = now
		p.UpdatedAt = now
		if p.GuardianIDs == nil {
			p.GuardianIDs = pq.StringArray{}
		}
		const q = `INSERT INTO student_profiles (user_id, enrollment_no, class_id, guardian_ids, medical_notes, created_at, updated_at) VALUES (:user_id, :enrollment_no, :class_id, :guardian_ids, :medical_notes, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, p); err != nil {
			return fmt.Errorf("create student profile: %w", err)
		}
	case models.RoleTeacher:
		if profile.Teacher == nil {
			return fmt.Errorf("teacher profile required for role %s", user.Role)
		}
		p := profile.Teacher
		p.UserID = user.ID
		p.CreatedAt = now
		p.UpdatedAt = now
		if p.Subjects == nil {
			p.Subjects = pq.StringArray{}
		}
		const q = `INSERT INTO teacher_profiles (user_id, subjects, homeroom_class_id, created_at, updated_at) VALUES (:user_id, :subjects, :homeroom_class_id, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, p); err != nil {
			return fmt.Errorf("create teacher profile: %w", err)
		}
	case models.RoleParent:
		if profile.Parent == nil {
			return fmt.Errorf("parent profile required for role %s", user.Role)
		}
		p := profile.Parent
		p.UserID = user.ID
		p.CreatedAt = now
		p.UpdatedAt = now
		if p.ChildIDs == nil {
			p.ChildIDs = pq.StringArray{}
		}
		const q = `INSERT INTO parent_profiles (user_id, occupation, child_ids, created_at, updated_at) VALUES (:user_id, :occupation, :child_ids, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, p); err != nil {
			return fmt.Errorf("create parent profile: %w", err)
		}
	case models.RoleAdmin:
		if profile.Admin == nil {
			return fmt.Errorf("admin profile required for role %s", user.Role)
		}
		p := profile.Admin
		p.UserID = user.ID
		p.CreatedAt = now
		p.UpdatedAt = now
		const q = `INSERT INTO admin_profiles (user_id, title, created_at, updated_at) VALUES (:user_id, :title, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, p); err != nil {
			return fmt.Errorf("create admin profile: %w", err)
		}
	default:
		return fmt.Errorf("unknown role %q", user.Role)
	}
	return nil
}

// FindProfile loads the role-specific profile for a user.
func (r *UserRepository) FindProfile(ctx context.Context, userID string, role models.UserRole) (models.Profile, error) {
	var profile models.Profile
	switch role {
	case models.RoleStudent:
		var p models.StudentProfile
		const q = `SELECT user_id, enrollment_no, class_id, guardian_ids, medical_notes, created_at, updated_at FROM student_profiles WHERE user_id = $1`
		if err := r.db.GetContext(ctx, &p, q, userID); err != nil {
			return profile, fmt.Errorf("find student profile: %w", err)
		}
		profile.Student = &p
	case models.RoleTeacher:
		var p models.TeacherProfile
		const q = `SELECT user_id, subjects, homeroom_class_id, created_at, updated_at FROM teacher_profiles WHERE user_id = $1`
		if err := r.db.GetContext(ctx, &p, q, userID); err != nil {
			return profile, fmt.Errorf("find teacher profile: %w", err)
		}
		profile.Teacher = &p
	case models.RoleParent:
		var p models.ParentProfile
		const q = `SELECT user_id, occupation, child_ids, created_at, updated_at FROM parent_profiles WHERE user_id = $1`
		if err := r.db.GetContext(ctx, &p, q, userID); err != nil {
			return profile, fmt.Errorf("find parent profile: %w", err)
		}
		profile.Parent = &p
	case models.RoleAdmin:
		var p models.AdminProfile
		const q = `SELECT user_id, title, created_at, updated_at FROM admin_profiles WHERE user_id = $1`
		if err := r.db.GetContext(ctx, &p, q, userID); err != nil {
			return profile, fmt.Errorf("find admin profile: %w", err)
		}
		profile.Admin = &p
	default:
		return profile, fmt.Errorf("unknown role %q", role)
	}
	return profile, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash and clears any outstanding
// reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetResetToken stores the hash and expiry for a password-reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, tokenHash, expiresAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// FindByResetTokenHash returns the user holding an unexpired reset token with
// the given hash. Expired tokens are treated as absent.
func (r *UserRepository) FindByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE reset_token_hash = $1 AND reset_token_expires_at > NOW() LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, tokenHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	return &user, nil
}

// SetEmailVerified records the email verification timestamp.
func (r *UserRepository) SetEmailVerified(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET email_verified_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}
	return nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"created_at": true,
		"updated_at": true,
		"full_name":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// Update updates mutable fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Deactivate performs a soft delete by marking the user inactive.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}
