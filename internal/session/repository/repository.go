package repository

import (
	"context"
	"time"

	"tokenvault/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) for
// missing rows; errors are reserved for storage failures. The conditional
// updates (InvalidateByTokenHash, InvalidateAllByUser) must apply atomically
// against the store so that concurrent callers cannot both observe success.
type Repository interface {
	// Create inserts a new session row. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// FindValidByTokenHash returns the user's valid, unexpired session
	// holding the given refresh token hash, or nil.
	FindValidByTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error)
	// ListByUser returns the user's sessions, newest first. valid filters by
	// the validity flag when non-nil.
	ListByUser(ctx context.Context, userID string, valid *bool) ([]*domain.Session, error)
	// InvalidateByTokenHash flips the matching valid session to invalid in a
	// single conditional update and returns the invalidated row, or nil when
	// no valid match existed (already rotated, already invalid, or expired).
	InvalidateByTokenHash(ctx context.Context, userID, tokenHash string, at time.Time) (*domain.Session, error)
	// InvalidateAllByUser flips every valid session of the user to invalid in
	// one statement and returns the invalidated rows newest first. An empty
	// result with nil error means the user had no valid session.
	InvalidateAllByUser(ctx context.Context, userID string, at time.Time) ([]*domain.Session, error)
	// DeleteExpired removes rows whose expiry passed before the cutoff and
	// returns the count. Maintenance only; the hot path never depends on it.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
