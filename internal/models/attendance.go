package models

import "time"

// AttendanceStatus enumerates the recordable states for a school day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// AttendanceRecord marks one student's status for one date.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Note       *string          `db:"note" json:"note,omitempty"`
	RecordedBy string           `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// RecordAttendanceRequest marks (or corrects) one student's status for one
// date.
type RecordAttendanceRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	Date      time.Time        `json:"date" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Note      *string          `json:"note,omitempty"`
}

// BulkAttendanceRequest records a whole class in one call, typically the
// morning roll.
type BulkAttendanceRequest struct {
	Records []RecordAttendanceRequest `json:"records" validate:"required,min=1,max=200,dive"`
}

// AttendanceFilter scopes attendance listings.
type AttendanceFilter struct {
	StudentID string
	From      *time.Time
	To        *time.Time
	Status    *AttendanceStatus
	Page      int
	PageSize  int
}

// AttendanceSummary aggregates per-status counts for a student over a range.
type AttendanceSummary struct {
	StudentID string `json:"student_id"`
	Present   int    `db:"present" json:"present"`
	Absent    int    `db:"absent" json:"absent"`
	Late      int    `db:"late" json:"late"`
	Excused   int    `db:"excused" json:"excused"`
}
