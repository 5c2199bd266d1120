package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tokenvault/internal/retry"
	"tokenvault/internal/session/domain"
	"tokenvault/internal/token"
)

type memRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Session
}

func newMemRepo() *memRepo {
	return &memRepo{m: make(map[string]*domain.Session)}
}

func (r *memRepo) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[s.ID]; ok {
		return errors.New("duplicate session id")
	}
	// Mirror the partial unique index on valid refresh token hashes.
	for _, existing := range r.m {
		if s.Valid && existing.Valid && existing.RefreshTokenHash == s.RefreshTokenHash {
			return &pgconn.PgError{Code: "23505", ConstraintName: "idx_sessions_valid_refresh_token"}
		}
	}
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memRepo) FindValidByTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, s := range r.m {
		if s.UserID == userID && s.RefreshTokenHash == tokenHash && s.Active(now) {
			s2 := *s
			return &s2, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListByUser(ctx context.Context, userID string, valid *bool) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.UserID != userID {
			continue
		}
		if valid != nil && s.Valid != *valid {
			continue
		}
		s2 := *s
		out = append(out, &s2)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) InvalidateByTokenHash(ctx context.Context, userID, tokenHash string, at time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.UserID == userID && s.RefreshTokenHash == tokenHash && s.Active(at) {
			s.Valid = false
			t := at
			s.InvalidatedAt = &t
			s.UpdatedAt = at
			s2 := *s
			return &s2, nil
		}
	}
	return nil, nil
}

func (r *memRepo) InvalidateAllByUser(ctx context.Context, userID string, at time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.UserID == userID && s.Valid {
			s.Valid = false
			t := at
			s.InvalidatedAt = &t
			s.UpdatedAt = at
			s2 := *s
			out = append(out, &s2)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.m {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}

func newTestStore(t *testing.T) (*Store, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	exec := retry.NewExecutor(retry.Policy{MaxAttempts: 3, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}, retry.TransientStorage)
	return New(repo, exec), repo
}

func TestStore_CreateAndFindValid(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := st.Create(ctx, "u1", "refresh-1", time.Now().Add(time.Hour), domain.Metadata{DeviceInfo: "cli", IPAddress: "127.0.0.1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" || !sess.Valid {
		t.Fatalf("created session not valid: %+v", sess)
	}
	if sess.RefreshTokenHash != token.HashRefresh("refresh-1") {
		t.Error("refresh token stored unhashed or with wrong hash")
	}
	if !sess.ExpiresAt.After(sess.CreatedAt) {
		t.Error("expiresAt must be strictly after createdAt")
	}

	got, err := st.FindValid(ctx, "u1", "refresh-1")
	if err != nil {
		t.Fatalf("FindValid: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("FindValid returned %q, want %q", got.ID, sess.ID)
	}

	if _, err := st.FindValid(ctx, "u1", "unknown-token"); !errors.Is(err, ErrNoValidSession) {
		t.Errorf("unknown token: want ErrNoValidSession, got %v", err)
	}
	if _, err := st.FindValid(ctx, "u2", "refresh-1"); !errors.Is(err, ErrNoValidSession) {
		t.Errorf("wrong user: want ErrNoValidSession, got %v", err)
	}
}

func TestStore_FindValidSkipsExpired(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Create(ctx, "u1", "refresh-1", time.Now().Add(-time.Minute), domain.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := st.FindValid(ctx, "u1", "refresh-1"); !errors.Is(err, ErrNoValidSession) {
		t.Errorf("expired session: want ErrNoValidSession, got %v", err)
	}
}

func TestStore_RotateIsSingleUse(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	created, err := st.Create(ctx, "u1", "refresh-1", time.Now().Add(time.Hour), domain.Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	old, err := st.Rotate(ctx, "u1", "refresh-1")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if old.ID != created.ID {
		t.Errorf("rotated session %q, want %q", old.ID, created.ID)
	}
	if old.Valid {
		t.Error("rotated session still flagged valid")
	}
	if old.InvalidatedAt == nil {
		t.Error("rotated session has no invalidation timestamp")
	}

	if _, err := st.Rotate(ctx, "u1", "refresh-1"); !errors.Is(err, ErrRotationDenied) {
		t.Errorf("second rotate: want ErrRotationDenied, got %v", err)
	}
	if _, err := st.FindValid(ctx, "u1", "refresh-1"); !errors.Is(err, ErrNoValidSession) {
		t.Errorf("rotated token still resolves: %v", err)
	}
}

func TestStore_ConcurrentRotateHasOneWinner(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Create(ctx, "u1", "refresh-1", time.Now().Add(time.Hour), domain.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const callers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		denied int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := st.Rotate(ctx, "u1", "refresh-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrRotationDenied):
				denied++
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if denied != callers-1 {
		t.Errorf("denied = %d, want %d", denied, callers-1)
	}
}

func TestStore_InvalidateAllForUser(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	first, err := st.Create(ctx, "u1", "refresh-1", time.Now().Add(time.Hour), domain.Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Distinct CreatedAt so "most recent" is well defined.
	time.Sleep(2 * time.Millisecond)
	second, err := st.Create(ctx, "u1", "refresh-2", time.Now().Add(time.Hour), domain.Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	latest, err := st.InvalidateAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("InvalidateAllForUser: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("reported session %q, want most recent %q", latest.ID, second.ID)
	}
	if latest.Valid || latest.InvalidatedAt == nil {
		t.Errorf("reported session not invalidated: %+v", latest)
	}

	for _, tok := range []string{"refresh-1", "refresh-2"} {
		if _, err := st.FindValid(ctx, "u1", tok); !errors.Is(err, ErrNoValidSession) {
			t.Errorf("token %q still valid after invalidate-all", tok)
		}
	}
	_ = first

	if _, err := st.InvalidateAllForUser(ctx, "u1"); !errors.Is(err, ErrNoValidSession) {
		t.Errorf("second invalidate-all: want ErrNoValidSession, got %v", err)
	}
}

func TestStore_CleanExpired(t *testing.T) {
	st, repo := newTestStore(t)
	ctx := context.Background()

	if _, err := st.Create(ctx, "u1", "live", time.Now().Add(time.Hour), domain.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := st.Create(ctx, "u1", "dead-1", time.Now().Add(-time.Hour), domain.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := st.Create(ctx, "u2", "dead-2", time.Now().Add(-time.Minute), domain.Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := st.CleanExpired(ctx)
	if err != nil {
		t.Fatalf("CleanExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("cleaned %d, want 2", n)
	}
	repo.mu.Lock()
	remaining := len(repo.m)
	repo.mu.Unlock()
	if remaining != 1 {
		t.Errorf("remaining rows = %d, want 1", remaining)
	}
}

// flakyRepo fails the first n calls of each operation with a transient error.
type flakyRepo struct {
	*memRepo
	mu       sync.Mutex
	failures int
}

func (r *flakyRepo) trip() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return syscall.ECONNRESET
	}
	return nil
}

func (r *flakyRepo) Create(ctx context.Context, s *domain.Session) error {
	if err := r.trip(); err != nil {
		return err
	}
	return r.memRepo.Create(ctx, s)
}

func (r *flakyRepo) InvalidateByTokenHash(ctx context.Context, userID, tokenHash string, at time.Time) (*domain.Session, error) {
	if err := r.trip(); err != nil {
		return nil, err
	}
	return r.memRepo.InvalidateByTokenHash(ctx, userID, tokenHash, at)
}

func TestStore_RetriesTransientStorageErrors(t *testing.T) {
	repo := &flakyRepo{memRepo: newMemRepo(), failures: 2}
	exec := retry.NewExecutor(retry.Policy{MaxAttempts: 3, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}, retry.TransientStorage)
	st := New(repo, exec)
	ctx := context.Background()

	sess, err := st.Create(ctx, "u1", "refresh-1", time.Now().Add(time.Hour), domain.Metadata{})
	if err != nil {
		t.Fatalf("Create should survive two transient failures: %v", err)
	}
	if got, err := st.FindValid(ctx, "u1", "refresh-1"); err != nil || got.ID != sess.ID {
		t.Fatalf("FindValid after retried create: %v", err)
	}
}

func TestStore_RetriesExhaustedSurfaceOriginalError(t *testing.T) {
	repo := &flakyRepo{memRepo: newMemRepo(), failures: 10}
	exec := retry.NewExecutor(retry.Policy{MaxAttempts: 3, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}, retry.TransientStorage)
	st := New(repo, exec)

	_, err := st.Create(context.Background(), "u1", "refresh-1", time.Now().Add(time.Hour), domain.Metadata{})
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Fatalf("want original transient error after exhaustion, got %v", err)
	}
	repo.mu.Lock()
	if repo.failures != 7 {
		t.Errorf("attempts = %d, want 3", 10-repo.failures)
	}
	repo.mu.Unlock()
}
