package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/campushub-api/internal/models"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	findErr      error
	createErr    error

	createdUser    *models.User
	createdProfile models.Profile

	resetTokenHash   string
	resetExpiresAt   time.Time
	userByResetHash  *models.User
	passwordUpdated  string
	verifiedAt       *time.Time
	lastLoginUpdated bool
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	user, ok := m.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) CreateWithProfile(ctx context.Context, user *models.User, profile models.Profile) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.createdUser = user
	m.createdProfile = profile
	return nil
}

func (m *mockUserRepo) FindProfile(ctx context.Context, userID string, role models.UserRole) (models.Profile, error) {
	return models.Profile{}, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdated = passwordHash
	return nil
}

func (m *mockUserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	m.resetTokenHash = tokenHash
	m.resetExpiresAt = expiresAt
	return nil
}

func (m *mockUserRepo) FindByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	if m.userByResetHash != nil && m.resetTokenHash == tokenHash {
		return m.userByResetHash, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) SetEmailVerified(ctx context.Context, id string, ts time.Time) error {
	m.verifiedAt = &ts
	return nil
}

type mockSessionRepo struct {
	sessions    map[string]*models.Session
	deletedUser string
	deleteErr   error
	createErr   error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.sessions == nil {
		m.sessions = make(map[string]*models.Session)
	}
	m.sessions[session.Token] = session
	return nil
}

func (m *mockSessionRepo) Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*models.Session, error) {
	session, ok := m.sessions[oldToken]
	if !ok || session.ExpiresAt.Before(time.Now()) {
		return nil, sql.ErrNoRows
	}
	delete(m.sessions, oldToken)
	rotated := *session
	rotated.Token = newToken
	rotated.ExpiresAt = expiresAt
	m.sessions[newToken] = &rotated
	return &rotated, nil
}

func (m *mockSessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedUser = userID
	for token, session := range m.sessions {
		if session.UserID == userID {
			delete(m.sessions, token)
		}
	}
	return nil
}

type mockMailer struct {
	verifications []string
	resets        []string
	resetTokens   []string
}

func (m *mockMailer) EnqueueVerification(to, name, token string) {
	m.verifications = append(m.verifications, to)
}

func (m *mockMailer) EnqueuePasswordReset(to, name, token string) {
	m.resets = append(m.resets, to)
	m.resetTokens = append(m.resetTokens, token)
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "access-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenSecret: "refresh-secret",
		SessionExpiry:      7 * 24 * time.Hour,
		RememberMeExpiry:   30 * 24 * time.Hour,
		VerifyTokenExpiry:  24 * time.Hour,
		ResetTokenExpiry:   10 * time.Minute,
		BcryptCost:         bcrypt.MinCost,
		Issuer:             "campushub-test",
	}
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "user@example.com",
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         models.RoleStudent,
		Active:       true,
	}
}

func newTestAuthService(users *mockUserRepo, sessions *mockSessionRepo, mail *mockMailer) *AuthService {
	return NewAuthService(users, sessions, mail, nil, validator.New(), zap.NewNop(), testAuthConfig())
}

func TestLoginSuccess(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	sessions := &mockSessionRepo{}
	svc := newTestAuthService(users, sessions, &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, user.ID, res.User.ID)
	assert.True(t, users.lastLoginUpdated)

	session, ok := sessions.sessions[res.RefreshToken]
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), session.ExpiresAt, time.Minute)
}

func TestLoginRememberMeExtendsSession(t *testing.T) {
	user := activeUser(t, "password123")
	sessions := &mockSessionRepo{}
	svc := newTestAuthService(&mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}, sessions, &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123", RememberMe: true})
	require.NoError(t, err)

	session := sessions.sessions[res.RefreshToken]
	require.NotNil(t, session)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), session.ExpiresAt, time.Minute)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	user := activeUser(t, "password123")
	inactive := activeUser(t, "password123")
	inactive.Email = "inactive@example.com"
	inactive.Active = false

	svc := newTestAuthService(&mockUserRepo{usersByEmail: map[string]*models.User{
		user.Email:     user,
		inactive.Email: inactive,
	}}, &mockSessionRepo{}, &mockMailer{})

	cases := []models.LoginRequest{
		{Email: "missing@example.com", Password: "password123"},
		{Email: inactive.Email, Password: "password123"},
		{Email: user.Email, Password: "wrong-password"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Message, appErr.Message)
	}
}

func TestRefreshRotatesAndConsumesToken(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{
		usersByEmail: map[string]*models.User{user.Email: user},
		usersByID:    map[string]*models.User{user.ID: user},
	}
	sessions := &mockSessionRepo{}
	svc := newTestAuthService(users, sessions, &mockMailer{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The consumed token must not work a second time.
	_, err = svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidSession.Code, appErrors.FromError(err).Code)

	// The rotated token still works.
	_, err = svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: refreshed.RefreshToken})
	require.NoError(t, err)
}

func TestRefreshRejectsInactiveUser(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{
		usersByEmail: map[string]*models.User{user.Email: user},
		usersByID:    map[string]*models.User{user.ID: user},
	}
	sessions := &mockSessionRepo{}
	svc := newTestAuthService(users, sessions, &mockMailer{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)

	user.Active = false
	_, err = svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidSession.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, &mockSessionRepo{}, &mockMailer{})

	_, err := svc.Refresh(context.Background(), models.RefreshRequest{RefreshToken: "not-a-jwt"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidSession.Code, appErrors.FromError(err).Code)
}

func TestLogoutDeletesAllSessions(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	sessions := &mockSessionRepo{}
	svc := newTestAuthService(users, sessions, &mockMailer{})

	first, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)
	require.Len(t, sessions.sessions, 2)

	require.NoError(t, svc.Logout(context.Background(), first.AccessToken))
	assert.Equal(t, user.ID, sessions.deletedUser)
	assert.Empty(t, sessions.sessions)
}

func TestLogoutSwallowsUnparseableToken(t *testing.T) {
	sessions := &mockSessionRepo{}
	svc := newTestAuthService(&mockUserRepo{}, sessions, &mockMailer{})

	require.NoError(t, svc.Logout(context.Background(), "garbage"))
	assert.Empty(t, sessions.deletedUser)
}

func TestLogoutPropagatesStoreFailure(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	sessions := &mockSessionRepo{deleteErr: sql.ErrConnDone}
	svc := newTestAuthService(users, sessions, &mockMailer{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.AccessToken)
	require.Error(t, err)
}

func TestForgotPasswordUnknownEmailSendsNothing(t *testing.T) {
	mail := &mockMailer{}
	svc := newTestAuthService(&mockUserRepo{}, &mockSessionRepo{}, mail)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@example.com"}))
	assert.Empty(t, mail.resets)
}

func TestForgotPasswordStoresHashNotToken(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	mail := &mockMailer{}
	svc := newTestAuthService(users, &mockSessionRepo{}, mail)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: user.Email}))
	require.Len(t, mail.resetTokens, 1)
	assert.NotEmpty(t, users.resetTokenHash)
	assert.NotEqual(t, mail.resetTokens[0], users.resetTokenHash)
	assert.Equal(t, hashOpaqueToken(mail.resetTokens[0]), users.resetTokenHash)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), users.resetExpiresAt, time.Minute)
}

func TestResetPasswordPurgesSessions(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{
		usersByEmail:    map[string]*models.User{user.Email: user},
		userByResetHash: user,
	}
	sessions := &mockSessionRepo{}
	mail := &mockMailer{}
	svc := newTestAuthService(users, sessions, mail)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: user.Email}))
	require.Len(t, mail.resetTokens, 1)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{
		Token:       mail.resetTokens[0],
		NewPassword: "brand-new-password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, users.passwordUpdated)
	assert.Equal(t, user.ID, sessions.deletedUser)
	assert.Empty(t, sessions.sessions)
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, &mockSessionRepo{}, &mockMailer{})

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "bogus", NewPassword: "brand-new-password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	user := activeUser(t, "password123")
	svc := newTestAuthService(&mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}, &mockSessionRepo{}, &mockMailer{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    user.Email,
		Password: "password123",
		FullName: "Someone Else",
		Role:     models.RoleStudent,
		Student:  &models.StudentRegistration{EnrollmentNo: "S-001"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEntry.Code, appErrors.FromError(err).Code)
}

func TestRegisterMapsUniqueViolationToDuplicate(t *testing.T) {
	users := &mockUserRepo{
		createErr: fmt.Errorf("create user: %w", &pq.Error{Code: "23505", Constraint: "users_email_key"}),
	}
	svc := newTestAuthService(users, &mockSessionRepo{}, &mockMailer{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "racer@example.com",
		Password: "password123",
		FullName: "Second Racer",
		Role:     models.RoleStudent,
		Student:  &models.StudentRegistration{EnrollmentNo: "S-002"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateEntry.Code, appErrors.FromError(err).Code)
	assert.Nil(t, users.createdUser)
}

func TestRegisterProfileMustMatchRole(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, &mockSessionRepo{}, &mockMailer{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "password123",
		FullName: "New User",
		Role:     models.RoleTeacher,
		Student:  &models.StudentRegistration{EnrollmentNo: "S-001"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterCreatesProfileAndQueuesVerification(t *testing.T) {
	users := &mockUserRepo{}
	mail := &mockMailer{}
	svc := newTestAuthService(users, &mockSessionRepo{}, mail)

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "password123",
		FullName: "New User",
		Role:     models.RoleStudent,
		Student:  &models.StudentRegistration{EnrollmentNo: "S-001"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	require.NotNil(t, users.createdUser)
	assert.NotEqual(t, "password123", users.createdUser.PasswordHash)
	require.NotNil(t, users.createdProfile.Student)
	assert.Equal(t, "S-001", users.createdProfile.Student.EnrollmentNo)
	assert.Equal(t, []string{"new@example.com"}, mail.verifications)
}

func TestValidateAccessTokenDistinguishesExpiry(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := newTestAuthService(users, &mockSessionRepo{}, &mockMailer{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Role, claims.Role)

	_, err = svc.ValidateAccessToken("garbage")
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)

	expiredSvc := NewAuthService(users, &mockSessionRepo{}, &mockMailer{}, nil, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "access-secret",
		AccessTokenExpiry:  -time.Minute,
		RefreshTokenSecret: "refresh-secret",
		SessionExpiry:      time.Hour,
		BcryptCost:         bcrypt.MinCost,
	})
	expiredLogin, err := expiredSvc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "password123"})
	require.NoError(t, err)

	_, err = expiredSvc.ValidateAccessToken(expiredLogin.AccessToken)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
}

func TestLoadIdentityReflectsDeactivation(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{usersByID: map[string]*models.User{user.ID: user}}
	svc := newTestAuthService(users, &mockSessionRepo{}, &mockMailer{})

	identity, err := svc.LoadIdentity(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, identity.Email)

	user.Active = false
	_, err = svc.LoadIdentity(context.Background(), user.ID)
	assert.Equal(t, appErrors.ErrUserInactive.Code, appErrors.FromError(err).Code)

	_, err = svc.LoadIdentity(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrUserNotFound.Code, appErrors.FromError(err).Code)
}

func TestVerifyEmailIsIdempotent(t *testing.T) {
	user := activeUser(t, "password123")
	users := &mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}
	svc := newTestAuthService(users, &mockSessionRepo{}, &mockMailer{})

	token, err := svc.generateVerifyToken(user.Email)
	require.NoError(t, err)

	require.NoError(t, svc.VerifyEmail(context.Background(), models.VerifyEmailRequest{Token: token}))
	require.NotNil(t, users.verifiedAt)
	first := *users.verifiedAt
	user.EmailVerifiedAt = &first

	require.NoError(t, svc.VerifyEmail(context.Background(), models.VerifyEmailRequest{Token: token}))
	assert.Equal(t, first, *users.verifiedAt)
}

func TestResendVerificationSkipsVerifiedAndUnknown(t *testing.T) {
	user := activeUser(t, "password123")
	now := time.Now().UTC()
	user.EmailVerifiedAt = &now
	mail := &mockMailer{}
	svc := newTestAuthService(&mockUserRepo{usersByEmail: map[string]*models.User{user.Email: user}}, &mockSessionRepo{}, mail)

	require.NoError(t, svc.ResendVerification(context.Background(), models.ResendVerificationRequest{Email: user.Email}))
	require.NoError(t, svc.ResendVerification(context.Background(), models.ResendVerificationRequest{Email: "nobody@example.com"}))
	assert.Empty(t, mail.verifications)
}
