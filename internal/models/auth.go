package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	User         UserInfo  `json:"user"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Role-specific registration sections. Exactly one must be present and it
// must match the role discriminator; the mutually exclusive pointer fields
// are the closest Go rendering of a per-role tagged union.

// StudentRegistration carries the student profile fields at sign-up.
type StudentRegistration struct {
	EnrollmentNo string   `json:"enrollment_no" validate:"required"`
	ClassID      *string  `json:"class_id,omitempty"`
	GuardianIDs  []string `json:"guardian_ids,omitempty"`
	MedicalNotes *string  `json:"medical_notes,omitempty"`
}

// TeacherRegistration carries the teacher profile fields at sign-up.
type TeacherRegistration struct {
	Subjects        []string `json:"subjects" validate:"required,min=1"`
	HomeroomClassID *string  `json:"homeroom_class_id,omitempty"`
}

// ParentRegistration carries the parent profile fields at sign-up.
type ParentRegistration struct {
	Occupation *string  `json:"occupation,omitempty"`
	ChildIDs   []string `json:"child_ids,omitempty"`
}

// AdminRegistration carries the admin profile fields at sign-up.
type AdminRegistration struct {
	Title *string `json:"title,omitempty"`
}

// RegisterRequest creates a user together with its role-specific profile.
type RegisterRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	FullName string   `json:"full_name" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT PARENT"`

	Student *StudentRegistration `json:"student,omitempty"`
	Teacher *TeacherRegistration `json:"teacher,omitempty"`
	Parent  *ParentRegistration  `json:"parent,omitempty"`
	Admin   *AdminRegistration   `json:"admin,omitempty"`
}

// RegisterResponse returns the created user and a next-step hint.
type RegisterResponse struct {
	User    UserInfo `json:"user"`
	Message string   `json:"message"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshResponse returns the rotated token pair.
type RefreshResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow with the mailed token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// VerifyEmailRequest confirms ownership of the registered address.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResendVerificationRequest re-sends the verification mail.
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// AccessClaims is the JWT payload for short-lived access tokens.
type AccessClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// RefreshClaims is the JWT payload for refresh tokens; it carries the user id
// only.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// VerifyClaims is the JWT payload for email-verification tokens.
type VerifyClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}
