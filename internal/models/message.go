package models

import "time"

// Message is a direct message between two users.
type Message struct {
	ID          string     `db:"id" json:"id"`
	SenderID    string     `db:"sender_id" json:"sender_id"`
	RecipientID string     `db:"recipient_id" json:"recipient_id"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// SendMessageRequest composes a new direct message.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Body        string `json:"body" validate:"required"`
}

// MessageBox selects which side of the conversation to list.
type MessageBox string

const (
	MessageInbox  MessageBox = "inbox"
	MessageOutbox MessageBox = "outbox"
)

// MessageFilter scopes message listings for one user.
type MessageFilter struct {
	UserID     string
	Box        MessageBox
	UnreadOnly bool
	Page       int
	PageSize   int
}
