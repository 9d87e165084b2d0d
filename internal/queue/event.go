// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// VerificationQueue is the durable queue carrying verification mail requests.
const VerificationQueue = "auth.verification"

// VerificationRequested is published after registration and on resend.  It
// carries everything the mail worker needs so it never touches the database.
type VerificationRequested struct {
	UserID      uint64    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestedAt time.Time `json:"requested_at"`
}
