package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/campushub/campushub-api/internal/models"
)

// ListGrades returns grade entries for the query.
func (c *Client) ListGrades(ctx context.Context, studentID, subject, term string) (*[]models.Grade, error) {
	query := url.Values{}
	if studentID != "" {
		query.Set("student_id", studentID)
	}
	if subject != "" {
		query.Set("subject", subject)
	}
	if term != "" {
		query.Set("term", term)
	}
	return getCached[[]models.Grade](ctx, c, "/grades?"+query.Encode())
}

// CreateGrade records a new score and invalidates cached grade reads.
func (c *Client) CreateGrade(ctx context.Context, req models.CreateGradeRequest) (*models.Grade, error) {
	var out models.Grade
	if _, err := c.do(ctx, http.MethodPost, "/grades", req, &out); err != nil {
		return nil, err
	}
	c.cache.invalidatePrefix("/grades")
	return &out, nil
}

// GradeSummary returns the weighted per-subject averages for a student.
func (c *Client) GradeSummary(ctx context.Context, studentID, term string) (*[]models.GradeSummary, error) {
	path := fmt.Sprintf("/grades/students/%s/summary?term=%s", url.PathEscape(studentID), url.QueryEscape(term))
	return getCached[[]models.GradeSummary](ctx, c, path)
}

// RecordAttendance marks a student's status and invalidates cached
// attendance reads.
func (c *Client) RecordAttendance(ctx context.Context, req models.RecordAttendanceRequest) (*models.AttendanceRecord, error) {
	var out models.AttendanceRecord
	if _, err := c.do(ctx, http.MethodPost, "/attendance", req, &out); err != nil {
		return nil, err
	}
	c.cache.invalidatePrefix("/attendance")
	return &out, nil
}

// AttendanceSummary returns per-status counts for a student over a range.
func (c *Client) AttendanceSummary(ctx context.Context, studentID, from, to string) (*models.AttendanceSummary, error) {
	path := fmt.Sprintf("/attendance/students/%s/summary?from=%s&to=%s", url.PathEscape(studentID), url.QueryEscape(from), url.QueryEscape(to))
	return getCached[models.AttendanceSummary](ctx, c, path)
}

// SendMessage delivers a direct message.
func (c *Client) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	var out models.Message
	if _, err := c.do(ctx, http.MethodPost, "/messages", req, &out); err != nil {
		return nil, err
	}
	c.cache.invalidatePrefix("/messages")
	return &out, nil
}

// Inbox returns the authenticated user's received messages.
func (c *Client) Inbox(ctx context.Context, unreadOnly bool) (*[]models.Message, error) {
	path := "/messages?box=inbox"
	if unreadOnly {
		path += "&unread=true"
	}
	return getCached[[]models.Message](ctx, c, path)
}

// SubmitAdmission files an application; works unauthenticated.
func (c *Client) SubmitAdmission(ctx context.Context, req models.SubmitAdmissionRequest) (*models.AdmissionApplication, error) {
	var out models.AdmissionApplication
	if _, err := c.do(ctx, http.MethodPost, "/admissions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinanceSummary returns a student's outstanding balance.
func (c *Client) FinanceSummary(ctx context.Context, studentID string) (*models.FinanceSummary, error) {
	path := fmt.Sprintf("/finance/students/%s/summary", url.PathEscape(studentID))
	return getCached[models.FinanceSummary](ctx, c, path)
}

// CreateFinanceRecord posts an invoice or payment and invalidates cached
// finance reads.
func (c *Client) CreateFinanceRecord(ctx context.Context, req models.CreateFinanceRecordRequest) (*models.FinanceRecord, error) {
	var out models.FinanceRecord
	if _, err := c.do(ctx, http.MethodPost, "/finance", req, &out); err != nil {
		return nil, err
	}
	c.cache.invalidatePrefix("/finance")
	return &out, nil
}
