package models

import "time"

// Grade is a single scored entry for a student in a subject and term.
type Grade struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Subject    string    `db:"subject" json:"subject"`
	Term       string    `db:"term" json:"term"`
	Score      float64   `db:"score" json:"score"`
	Weight     float64   `db:"weight" json:"weight"`
	Remarks    *string   `db:"remarks" json:"remarks,omitempty"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CreateGradeRequest records a new score for a student.
type CreateGradeRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Subject   string  `json:"subject" validate:"required"`
	Term      string  `json:"term" validate:"required"`
	Score     float64 `json:"score" validate:"min=0,max=100"`
	Weight    float64 `json:"weight" validate:"gt=0"`
	Remarks   *string `json:"remarks,omitempty"`
}

// UpdateGradeRequest adjusts an existing entry. Nil fields are left unchanged.
type UpdateGradeRequest struct {
	Score   *float64 `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Weight  *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Remarks *string  `json:"remarks,omitempty"`
}

// GradeFilter scopes grade listings.
type GradeFilter struct {
	StudentID string
	Subject   string
	Term      string
	Page      int
	PageSize  int
}

// GradeSummary aggregates a student's weighted average per subject.
type GradeSummary struct {
	Subject      string  `db:"subject" json:"subject"`
	Term         string  `db:"term" json:"term"`
	WeightedMean float64 `db:"weighted_mean" json:"weighted_mean"`
	EntryCount   int     `db:"entry_count" json:"entry_count"`
}
