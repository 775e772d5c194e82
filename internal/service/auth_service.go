package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/campushub-api/internal/models"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
)

const verifyPurpose = "email_verification"

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateWithProfile(ctx context.Context, user *models.User, profile models.Profile) error
	FindProfile(ctx context.Context, userID string, role models.UserRole) (models.Profile, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
	SetEmailVerified(ctx context.Context, id string, ts time.Time) error
}

type authSessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*models.Session, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// authMailer is the out-of-band email collaborator. Sends are fire and
// forget; delivery failure never fails the triggering operation.
type authMailer interface {
	EnqueueVerification(to, name, token string)
	EnqueuePasswordReset(to, name, token string)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret string
	SessionExpiry      time.Duration
	RememberMeExpiry   time.Duration
	VerifyTokenExpiry  time.Duration
	ResetTokenExpiry   time.Duration
	BcryptCost         int
	Issuer             string
}

// AuthService implements the credential and session lifecycle: login,
// registration, token refresh with single-use rotation, logout, password
// reset and email verification.
type AuthService struct {
	users     authUserRepository
	sessions  authSessionRepository
	mailer    authMailer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, sessions authSessionRepository, mailer authMailer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.BcryptCost < bcrypt.MinCost {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, sessions: sessions, mailer: mailer, metrics: metrics, validator: validate, logger: logger, config: config}
}

// Login authenticates a user and returns issued tokens. A missing user, a
// deactivated account and a wrong password all produce the identical
// INVALID_CREDENTIALS failure so callers cannot probe which emails exist.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordLoginAttempt(false)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		s.metrics.RecordLoginAttempt(false)
		return nil, appErrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.RecordLoginAttempt(false)
		return nil, appErrors.ErrInvalidCredentials
	}
	s.metrics.RecordLoginAttempt(true)

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	sessionExpiry := s.sessionExpiry(req.RememberMe)
	refreshToken, err := s.generateRefreshToken(user.ID, sessionExpiry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	// Other sessions are intentionally untouched: multi-device login is
	// allowed.
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: sessionExpiry,
		CreatedAt: time.Now().UTC(),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     time.Now().UTC(),
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
	}, nil
}

// Register creates a user together with its role-specific profile in one
// transaction and triggers the verification mail.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	profile, err := profileForRole(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
	}

	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		// Two registrations can pass the FindByEmail check at once; the
		// unique index on email decides the loser.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if token, err := s.generateVerifyToken(user.Email); err != nil {
		s.logger.Warn("failed to mint verification token", zap.Error(err))
	} else {
		s.mailer.EnqueueVerification(user.Email, user.FullName, token)
	}

	return &models.RegisterResponse{
		User: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
		},
		Message: "registration successful, please verify your email",
	}, nil
}

// profileForRole enforces the tagged-union contract: exactly one profile
// section must be present and it must match the role discriminator.
func profileForRole(req models.RegisterRequest) (models.Profile, error) {
	var profile models.Profile
	sections := 0
	if req.Student != nil {
		sections++
	}
	if req.Teacher != nil {
		sections++
	}
	if req.Parent != nil {
		sections++
	}
	if req.Admin != nil {
		sections++
	}
	if sections != 1 {
		return profile, appErrors.Clone(appErrors.ErrValidation, "exactly one role profile section is required")
	}

	mismatch := appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("profile section does not match role %s", req.Role))
	switch req.Role {
	case models.RoleStudent:
		if req.Student == nil {
			return profile, mismatch
		}
		profile.Student = &models.StudentProfile{
			EnrollmentNo: req.Student.EnrollmentNo,
			ClassID:      req.Student.ClassID,
			GuardianIDs:  req.Student.GuardianIDs,
			MedicalNotes: req.Student.MedicalNotes,
		}
	case models.RoleTeacher:
		if req.Teacher == nil {
			return profile, mismatch
		}
		profile.Teacher = &models.TeacherProfile{
			Subjects:        req.Teacher.Subjects,
			HomeroomClassID: req.Teacher.HomeroomClassID,
		}
	case models.RoleParent:
		if req.Parent == nil {
			return profile, mismatch
		}
		profile.Parent = &models.ParentProfile{
			Occupation: req.Parent.Occupation,
			ChildIDs:   req.Parent.ChildIDs,
		}
	case models.RoleAdmin:
		if req.Admin == nil {
			return profile, mismatch
		}
		profile.Admin = &models.AdminProfile{Title: req.Admin.Title}
	default:
		return profile, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	return profile, nil
}

// Refresh exchanges a refresh token for a new pair. The session row is
// consumed with a single conditional update, so a given refresh token
// succeeds at most once even under concurrent calls.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest) (*models.RefreshResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	claims, err := s.parseRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidSession, "invalid session")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidSession, "invalid session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidSession, "invalid session")
	}

	sessionExpiry := time.Now().UTC().Add(s.config.SessionExpiry)
	newRefresh, err := s.generateRefreshToken(user.ID, sessionExpiry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	session, err := s.sessions.Rotate(ctx, req.RefreshToken, newRefresh, sessionExpiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidSession, "invalid session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate session")
	}
	if session.UserID != user.ID {
		return nil, appErrors.Clone(appErrors.ErrInvalidSession, "invalid session")
	}
	s.metrics.RecordSessionRotation()

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access token")
	}

	return &models.RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     time.Now().UTC(),
	}, nil
}

// Logout ends access everywhere for the token's owner by deleting all of
// their sessions. An unparseable token is swallowed on purpose — the caller
// wanted out and there is nothing useful to report — but persistence
// failures still surface.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.parseAccessTokenLax(accessToken)
	if err != nil {
		s.logger.Debug("logout with unparseable token", zap.Error(err))
		return nil
	}

	if err := s.sessions.DeleteByUser(ctx, claims.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sessions")
	}
	return nil
}

// ForgotPassword starts the reset flow. The response is identical whether or
// not the email exists; only the hash of the mailed token is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forgot password payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return nil
	}

	rawToken, err := generateOpaqueToken()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reset token")
	}

	expiresAt := time.Now().UTC().Add(s.config.ResetTokenExpiry)
	if err := s.users.SetResetToken(ctx, user.ID, hashOpaqueToken(rawToken), expiresAt); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset token")
	}

	s.mailer.EnqueuePasswordReset(user.Email, user.FullName, rawToken)
	return nil
}

// ResetPassword consumes a reset token, overwrites the password hash and
// invalidates every session so the user must log in again everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	user, err := s.users.FindByResetTokenHash(ctx, hashOpaqueToken(req.Token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "invalid or expired reset token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reset token")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.BcryptCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate sessions")
	}
	return nil
}

// VerifyEmail consumes a signed verification token and stamps the user's
// email as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	claims, err := s.parseVerifyToken(req.Token)
	if err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidToken, "invalid verification token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if user.EmailVerifiedAt != nil {
		return nil
	}

	if err := s.users.SetEmailVerified(ctx, user.ID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark email verified")
	}
	return nil
}

// ResendVerification re-sends the verification mail. Unknown and already
// verified addresses both yield the same silent success.
func (s *AuthService) ResendVerification(ctx context.Context, req models.ResendVerificationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if user.EmailVerifiedAt != nil || !user.Active {
		return nil
	}

	token, err := s.generateVerifyToken(user.Email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint verification token")
	}
	s.mailer.EnqueueVerification(user.Email, user.FullName, token)
	return nil
}

// Me returns the user with its role-specific nested profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserWithProfile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	profile, err := s.users.FindProfile(ctx, user.ID, user.Role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	return &models.UserWithProfile{User: *user, Profile: profile}, nil
}

// ValidateAccessToken parses and validates an access token, distinguishing
// expiry from any other defect so clients know when a refresh is worth
// attempting.
func (s *AuthService) ValidateAccessToken(tokenString string) (*models.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.ErrTokenExpired
		}
		return nil, appErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.ErrInvalidToken
	}

	return claims, nil
}

// LoadIdentity re-fetches the user so deactivation since token issuance is
// caught on the very next request.
func (s *AuthService) LoadIdentity(ctx context.Context, userID string) (*models.Identity, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.ErrUserInactive
	}
	return &models.Identity{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
		Active:   user.Active,
	}, nil
}

// TouchLastLogin updates last_login in the background. In this system "last
// login" means last authenticated request, so it is bumped on every request
// that passes the auth middleware; failures are logged and dropped.
func (s *AuthService) TouchLastLogin(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.users.UpdateLastLogin(ctx, userID, time.Now().UTC()); err != nil {
		s.logger.Debug("failed to touch last login", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *AuthService) sessionExpiry(rememberMe bool) time.Time {
	now := time.Now().UTC()
	if rememberMe {
		return now.Add(s.config.RememberMeExpiry)
	}
	return now.Add(s.config.SessionExpiry)
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.AccessClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

// generateRefreshToken signs a token carrying the user id only. The jti
// guarantees two tokens minted in the same second still differ, which the
// unique session token column depends on.
func (s *AuthService) generateRefreshToken(userID string, expiresAt time.Time) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.RefreshTokenSecret))
}

func (s *AuthService) parseRefreshToken(tokenString string) (*models.RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.RefreshTokenSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.RefreshClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid refresh claims")
	}
	return claims, nil
}

// parseAccessTokenLax accepts expired tokens; logout should work with a
// token that just ran out.
func (s *AuthService) parseAccessTokenLax(tokenString string) (*models.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.AccessClaims)
	if !ok || claims.UserID == "" {
		return nil, fmt.Errorf("invalid access claims")
	}
	return claims, nil
}

func (s *AuthService) generateVerifyToken(email string) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.VerifyClaims{
		Email:   email,
		Purpose: verifyPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.VerifyTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) parseVerifyToken(tokenString string) (*models.VerifyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.VerifyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrTokenExpired, "verification token has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid verification token")
	}
	claims, ok := token.Claims.(*models.VerifyClaims)
	if !ok || !token.Valid || subtle.ConstantTimeCompare([]byte(claims.Purpose), []byte(verifyPurpose)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid verification token")
	}
	return claims, nil
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashOpaqueToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
