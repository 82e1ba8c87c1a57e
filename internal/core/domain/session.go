package domain

import "time"

// Session is the server-side half of a login. A user has at most one; the
// token itself is never stored, only its SHA-256 hash.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the session is still usable at now.
func (s *Session) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
