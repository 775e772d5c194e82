package models

import "time"

// Session is a server-tracked refresh-token record. The token column stores
// the full signed refresh JWT; rotation replaces token and expiry in place so
// a consumed token can never be replayed. A user may hold any number of
// concurrent sessions.
type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
}
