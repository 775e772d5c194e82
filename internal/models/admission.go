package models

import "time"

// AdmissionStatus tracks an application through review.
type AdmissionStatus string

const (
	AdmissionPending   AdmissionStatus = "PENDING"
	AdmissionReviewing AdmissionStatus = "REVIEWING"
	AdmissionAccepted  AdmissionStatus = "ACCEPTED"
	AdmissionRejected  AdmissionStatus = "REJECTED"
)

// AdmissionApplication is a prospective student's submission. Applications
// may be submitted anonymously; SubmittedBy is set when the submitter was
// authenticated.
type AdmissionApplication struct {
	ID            string          `db:"id" json:"id"`
	ApplicantName string          `db:"applicant_name" json:"applicant_name"`
	Email         string          `db:"email" json:"email"`
	BirthDate     time.Time       `db:"birth_date" json:"birth_date"`
	GuardianName  string          `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string          `db:"guardian_phone" json:"guardian_phone"`
	PriorSchool   *string         `db:"prior_school" json:"prior_school,omitempty"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	Status        AdmissionStatus `db:"status" json:"status"`
	SubmittedBy   *string         `db:"submitted_by" json:"submitted_by,omitempty"`
	DecidedBy     *string         `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt     *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// SubmitAdmissionRequest is the public application form payload.
type SubmitAdmissionRequest struct {
	ApplicantName string    `json:"applicant_name" validate:"required"`
	Email         string    `json:"email" validate:"required,email"`
	BirthDate     time.Time `json:"birth_date" validate:"required"`
	GuardianName  string    `json:"guardian_name" validate:"required"`
	GuardianPhone string    `json:"guardian_phone" validate:"required"`
	PriorSchool   *string   `json:"prior_school,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
}

// DecideAdmissionRequest moves an application to a new status.
type DecideAdmissionRequest struct {
	Status AdmissionStatus `json:"status" validate:"required,oneof=REVIEWING ACCEPTED REJECTED"`
}

// AdmissionFilter scopes application listings.
type AdmissionFilter struct {
	Status   *AdmissionStatus
	Search   string
	Page     int
	PageSize int
}

// ValidAdmissionTransition reports whether an application may move between
// the two statuses. Decisions are terminal.
func ValidAdmissionTransition(from, to AdmissionStatus) bool {
	switch from {
	case AdmissionPending:
		return to == AdmissionReviewing || to == AdmissionAccepted || to == AdmissionRejected
	case AdmissionReviewing:
		return to == AdmissionAccepted || to == AdmissionRejected
	default:
		return false
	}
}
