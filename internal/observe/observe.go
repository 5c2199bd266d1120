// Package observe emits structured lifecycle events at defined points of the
// token and session flow. Events are best-effort data for operators and
// tests, never part of control flow.
package observe

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Lifecycle event names.
const (
	EventSessionCreated     = "session.created"
	EventTokenValidated     = "token.validated"
	EventTokenRejected      = "token.rejected"
	EventSessionRotated     = "session.rotated"
	EventRotationDenied     = "session.rotation_denied"
	EventSessionInvalidated = "session.invalidated"
	EventSessionsCleaned    = "sessions.cleaned"
)

// Event is one structured observability record.
type Event struct {
	Name      string
	UserID    string
	SessionID string
	Detail    string
	At        time.Time
}

// Emitter receives lifecycle events. Implementations must not block the
// request path; failures are swallowed.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// ZapEmitter logs events through a zap logger.
type ZapEmitter struct {
	log *zap.Logger
}

// NewZapEmitter returns an Emitter writing to log.
func NewZapEmitter(log *zap.Logger) *ZapEmitter {
	return &ZapEmitter{log: log}
}

// Emit writes the event as one structured log line.
func (z *ZapEmitter) Emit(_ context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	z.log.Info(e.Name,
		zap.String("user_id", e.UserID),
		zap.String("session_id", e.SessionID),
		zap.String("detail", e.Detail),
		zap.Time("at", e.At),
	)
}

// Recorder captures events in memory so tests can assert on lifecycle points.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends the event.
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
