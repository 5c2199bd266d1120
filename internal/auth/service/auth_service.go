// Package service implements the token lifecycle orchestration: generate,
// validate, refresh, and logout. It composes the token codec with the session
// store and never touches storage directly.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tokenvault/internal/observe"
	"tokenvault/internal/session/domain"
	"tokenvault/internal/session/store"
	"tokenvault/internal/token"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	// ErrInvalidToken means the presented bearer token could not be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRefreshToken means the refresh token is unverifiable, expired,
	// or not bound to a valid session (including already rotated).
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrNoActiveSession means logout found nothing to invalidate.
	ErrNoActiveSession = errors.New("no active session for user")
)

// TokenPair is a freshly minted access/refresh credential pair. ExpiresIn is
// the access token's remaining lifetime in whole seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// TokenStatus reports the outcome of validating an access token. An invalid
// token yields the zero value; validity is data here, not an error.
type TokenStatus struct {
	UserID    string
	IsValid   bool
	ExpiresIn int64
}

// LogoutReceipt reports which session a logout invalidated and when.
type LogoutReceipt struct {
	Message    string
	SessionID  string
	LogoutTime time.Time
}

// AuthService orchestrates the token codec and the session store. A (user,
// refresh token) pair moves Active -> Rotated/Invalidated or Active ->
// Expired; there is no way back to Active.
type AuthService struct {
	codec      *token.Codec
	sessions   *store.Store
	emitter    observe.Emitter
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. The TTLs
// come from configuration, already parsed and validated at startup.
func NewAuthService(codec *token.Codec, sessions *store.Store, emitter observe.Emitter, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		codec:      codec,
		sessions:   sessions,
		emitter:    emitter,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// GenerateTokens mints an access/refresh pair for userID and persists a new
// valid session bound to the refresh token. The refresh token is a signed
// token like the access token, with the longer refresh TTL.
func (s *AuthService) GenerateTokens(ctx context.Context, userID string, meta domain.Metadata) (*TokenPair, error) {
	accessToken, accessExp, err := s.codec.Mint(userID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refreshToken, refreshExp, err := s.codec.Mint(userID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	sess, err := s.sessions.Create(ctx, userID, refreshToken, refreshExp, meta)
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, observe.Event{
		Name:      observe.EventSessionCreated,
		UserID:    userID,
		SessionID: sess.ID,
	})

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.secondsUntil(accessExp),
	}, nil
}

// ValidateToken verifies an access token and reports the result as data. Any
// verification failure, expired, bad signature, or undecodable, yields
// {UserID: "", IsValid: false, ExpiresIn: 0} and never an error.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) *TokenStatus {
	userID, exp, err := s.codec.Verify(tokenString)
	if err != nil {
		s.emitter.Emit(ctx, observe.Event{
			Name:   observe.EventTokenRejected,
			Detail: err.Error(),
		})
		return &TokenStatus{}
	}
	s.emitter.Emit(ctx, observe.Event{
		Name:   observe.EventTokenValidated,
		UserID: userID,
	})
	return &TokenStatus{
		UserID:    userID,
		IsValid:   true,
		ExpiresIn: s.secondsUntil(exp),
	}
}

// Refresh rotates the presented refresh token: the matching valid session is
// invalidated and a fresh pair is minted and persisted. The old token is
// single-use; once rotation succeeds it can never succeed again, including
// for a concurrent caller racing on the same token.
func (s *AuthService) Refresh(ctx context.Context, oldRefreshToken string, meta domain.Metadata) (*TokenPair, error) {
	userID, _, err := s.codec.Verify(oldRefreshToken)
	if err != nil {
		s.emitter.Emit(ctx, observe.Event{
			Name:   observe.EventRotationDenied,
			Detail: err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	old, err := s.sessions.Rotate(ctx, userID, oldRefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrRotationDenied) {
			s.emitter.Emit(ctx, observe.Event{
				Name:   observe.EventRotationDenied,
				UserID: userID,
				Detail: err.Error(),
			})
			return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
		}
		return nil, err
	}
	s.emitter.Emit(ctx, observe.Event{
		Name:      observe.EventSessionRotated,
		UserID:    userID,
		SessionID: old.ID,
	})

	return s.GenerateTokens(ctx, userID, meta)
}

// Logout resolves the owning user from the presented token (access or
// refresh) and invalidates every valid session of that user. The receipt
// names the most recently created of the invalidated sessions.
func (s *AuthService) Logout(ctx context.Context, tokenString string) (*LogoutReceipt, error) {
	userID, _, err := s.codec.Verify(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	latest, err := s.sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoValidSession) {
			return nil, fmt.Errorf("%w: %w", ErrNoActiveSession, err)
		}
		return nil, err
	}
	s.emitter.Emit(ctx, observe.Event{
		Name:      observe.EventSessionInvalidated,
		UserID:    userID,
		SessionID: latest.ID,
	})

	logoutTime := s.now().UTC()
	if latest.InvalidatedAt != nil {
		logoutTime = *latest.InvalidatedAt
	}
	return &LogoutReceipt{
		Message:    "logged out",
		SessionID:  latest.ID,
		LogoutTime: logoutTime,
	}, nil
}

func (s *AuthService) secondsUntil(exp time.Time) int64 {
	remaining := int64(exp.Sub(s.now()).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
