package models

import "time"

// FinanceRecordType distinguishes charges from settlements.
type FinanceRecordType string

const (
	FinanceInvoice FinanceRecordType = "INVOICE"
	FinancePayment FinanceRecordType = "PAYMENT"
)

// FinanceRecord is an invoice or payment on a student's account. Amounts are
// stored in minor units (cents) to avoid float drift.
type FinanceRecord struct {
	ID          string            `db:"id" json:"id"`
	StudentID   string            `db:"student_id" json:"student_id"`
	Type        FinanceRecordType `db:"type" json:"type"`
	AmountCents int64             `db:"amount_cents" json:"amount_cents"`
	Currency    string            `db:"currency" json:"currency"`
	Description string            `db:"description" json:"description"`
	Reference   *string           `db:"reference" json:"reference,omitempty"`
	DueDate     *time.Time        `db:"due_date" json:"due_date,omitempty"`
	PaidAt      *time.Time        `db:"paid_at" json:"paid_at,omitempty"`
	CreatedBy   string            `db:"created_by" json:"created_by"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// CreateFinanceRecordRequest posts an invoice or payment to a student's
// account.
type CreateFinanceRecordRequest struct {
	StudentID   string            `json:"student_id" validate:"required"`
	Type        FinanceRecordType `json:"type" validate:"required,oneof=INVOICE PAYMENT"`
	AmountCents int64             `json:"amount_cents" validate:"gt=0"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	Description string            `json:"description" validate:"required"`
	Reference   *string           `json:"reference,omitempty"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
}

// FinanceFilter scopes finance listings.
type FinanceFilter struct {
	StudentID string
	Type      *FinanceRecordType
	Unpaid    bool
	Page      int
	PageSize  int
}

// FinanceSummary is the cached outstanding-balance projection per student.
type FinanceSummary struct {
	StudentID        string `json:"student_id"`
	InvoicedCents    int64  `db:"invoiced_cents" json:"invoiced_cents"`
	PaidCents        int64  `db:"paid_cents" json:"paid_cents"`
	OutstandingCents int64  `json:"outstanding_cents"`
	Currency         string `json:"currency"`
}
