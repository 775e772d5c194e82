package models

import (
	"time"

	"github.com/lib/pq"
)

// Role profiles are one-to-one extensions of User, one table per role.
// Exactly one profile row exists per user and its table matches the user's
// role field; both rows are written in the same transaction at registration.

// StudentProfile holds attributes specific to STUDENT users.
type StudentProfile struct {
	UserID       string         `db:"user_id" json:"user_id"`
	EnrollmentNo string         `db:"enrollment_no" json:"enrollment_no"`
	ClassID      *string        `db:"class_id" json:"class_id,omitempty"`
	GuardianIDs  pq.StringArray `db:"guardian_ids" json:"guardian_ids"`
	MedicalNotes *string        `db:"medical_notes" json:"medical_notes,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// TeacherProfile holds attributes specific to TEACHER users.
type TeacherProfile struct {
	UserID          string         `db:"user_id" json:"user_id"`
	Subjects        pq.StringArray `db:"subjects" json:"subjects"`
	HomeroomClassID *string        `db:"homeroom_class_id" json:"homeroom_class_id,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// ParentProfile holds attributes specific to PARENT users.
type ParentProfile struct {
	UserID     string         `db:"user_id" json:"user_id"`
	Occupation *string        `db:"occupation" json:"occupation,omitempty"`
	ChildIDs   pq.StringArray `db:"child_ids" json:"child_ids"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminProfile holds attributes specific to ADMIN users.
type AdminProfile struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Title     *string   `db:"title" json:"title,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Profile bundles the possible role profiles; at most one field is set,
// matching the owning user's role.
type Profile struct {
	Student *StudentProfile `json:"student,omitempty"`
	Teacher *TeacherProfile `json:"teacher,omitempty"`
	Parent  *ParentProfile  `json:"parent,omitempty"`
	Admin   *AdminProfile   `json:"admin,omitempty"`
}

// UserWithProfile is the /auth/me projection: the user plus its role-specific
// nested profile.
type UserWithProfile struct {
	User
	Profile Profile `json:"profile"`
}
