// Package store is the single point of truth for session persistence. Every
// storage call goes through the retry executor; atomicity of rotation and
// bulk invalidation is delegated to the repository's conditional updates.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tokenvault/internal/retry"
	"tokenvault/internal/session/domain"
	"tokenvault/internal/session/repository"
	"tokenvault/internal/token"
)

var (
	// ErrNoValidSession is returned when a lookup or bulk invalidation finds
	// no currently-valid session for the user.
	ErrNoValidSession = errors.New("session not found or already invalidated")
	// ErrRotationDenied is returned when rotation finds no valid session for
	// the presented refresh token: unknown, expired, or already rotated.
	ErrRotationDenied = errors.New("refresh token not bound to a valid session")
)

// Store exposes session CRUD plus the atomic rotation primitive. Sessions
// are created with a pre-generated id so a retried insert after a lost
// response fails on the primary key instead of duplicating the row.
type Store struct {
	repo repository.Repository
	exec *retry.Executor
	now  func() time.Time
}

// New returns a Store over repo, wrapping each storage call with exec.
func New(repo repository.Repository, exec *retry.Executor) *Store {
	return &Store{repo: repo, exec: exec, now: time.Now}
}

// Create persists a new valid session for userID holding refreshToken
// (hashed before storage) until expiresAt.
func (s *Store) Create(ctx context.Context, userID, refreshToken string, expiresAt time.Time, meta domain.Metadata) (*domain.Session, error) {
	now := s.now().UTC()
	sess := &domain.Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		RefreshTokenHash: token.HashRefresh(refreshToken),
		ExpiresAt:        expiresAt,
		Valid:            true,
		DeviceInfo:       meta.DeviceInfo,
		IPAddress:        meta.IPAddress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := s.exec.Do(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// FindValid returns the user's valid, unexpired session holding
// refreshToken, or ErrNoValidSession. An invalidated match is reported the
// same as no match.
func (s *Store) FindValid(ctx context.Context, userID, refreshToken string) (*domain.Session, error) {
	hash := token.HashRefresh(refreshToken)
	sess, err := retry.Run(ctx, s.exec, func(ctx context.Context) (*domain.Session, error) {
		return s.repo.FindValidByTokenHash(ctx, userID, hash)
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoValidSession
	}
	return sess, nil
}

// ListForUser returns the user's sessions, newest first, optionally filtered
// by validity.
func (s *Store) ListForUser(ctx context.Context, userID string, valid *bool) ([]*domain.Session, error) {
	return retry.Run(ctx, s.exec, func(ctx context.Context) ([]*domain.Session, error) {
		return s.repo.ListByUser(ctx, userID, valid)
	})
}

// Rotate invalidates the valid session matching (userID, oldRefreshToken) in
// one compare-and-swap update and returns the just-invalidated session. Of
// two concurrent callers exactly one succeeds; the other gets
// ErrRotationDenied, as does a retry of a rotate that already applied.
func (s *Store) Rotate(ctx context.Context, userID, oldRefreshToken string) (*domain.Session, error) {
	hash := token.HashRefresh(oldRefreshToken)
	at := s.now().UTC()
	sess, err := retry.Run(ctx, s.exec, func(ctx context.Context) (*domain.Session, error) {
		return s.repo.InvalidateByTokenHash(ctx, userID, hash, at)
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrRotationDenied
	}
	return sess, nil
}

// InvalidateAllForUser invalidates every valid session of the user in one
// atomic unit and returns the most recently created of them for reporting.
// Returns ErrNoValidSession when the user had none.
func (s *Store) InvalidateAllForUser(ctx context.Context, userID string) (*domain.Session, error) {
	at := s.now().UTC()
	invalidated, err := retry.Run(ctx, s.exec, func(ctx context.Context) ([]*domain.Session, error) {
		return s.repo.InvalidateAllByUser(ctx, userID, at)
	})
	if err != nil {
		return nil, err
	}
	if len(invalidated) == 0 {
		return nil, ErrNoValidSession
	}
	return invalidated[0], nil
}

// CleanExpired deletes sessions whose expiry has passed and returns the
// count. Advisory maintenance; correctness of the hot path never depends on
// expired rows being gone.
func (s *Store) CleanExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC()
	return retry.Run(ctx, s.exec, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteExpired(ctx, cutoff)
	})
}
