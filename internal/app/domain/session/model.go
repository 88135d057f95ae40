// Package session defines server-side session records backing the
// signed token a client presents.
package session

import "time"

// Session ties a hashed auth token to a user. Sessions are revocable:
// deleting the row invalidates the token regardless of its expiry.
type Session struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	TokenHash  string    `json:"-" db:"token_hash"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// Expired reports whether the session is past its expiry at the given
// instant.
func (s Session) Expired(at time.Time) bool {
	return !s.ExpiresAt.IsZero() && at.After(s.ExpiresAt)
}
