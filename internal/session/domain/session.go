package domain

import "time"

// Session binds a user to a currently-valid refresh token. Only the hash of
// the refresh token is persisted; the raw value never reaches storage.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
	Valid            bool
	InvalidatedAt    *time.Time // set exactly once, when Valid flips to false
	DeviceInfo       string
	IPAddress        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Metadata is optional provenance recorded at session creation. It is never
// required for correctness.
type Metadata struct {
	DeviceInfo string
	IPAddress  string
}

// Active reports whether the session is usable at the given instant: still
// flagged valid and not past its absolute expiry.
func (s *Session) Active(now time.Time) bool {
	return s.Valid && now.Before(s.ExpiresAt)
}
