package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkcheck/internal/logging"
	"linkcheck/internal/services"
)

var (
	// ErrUnknownSession is returned when addressing a session that is not registered.
	ErrUnknownSession = errors.New("unknown session")
	// ErrStopped is the cancellation cause for runs halted by a stop signal.
	ErrStopped = errors.New("stop signal received")
	// ErrDisconnected is the cancellation cause for runs whose session closed.
	ErrDisconnected = errors.New("session disconnected")
)

// Conn writes events to one client.
type Conn interface {
	Send(ctx context.Context, event Event) error
}

// Session is one connected client.
type Session struct {
	ID          string
	ConnectedAt time.Time

	mu   sync.Mutex
	conn Conn
}

// NewSession wraps conn. An empty id is replaced with a generated one.
func NewSession(id string, conn Conn) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{ID: id, ConnectedAt: time.Now(), conn: conn}
}

// Send writes event to the client. Writes are serialized.
func (s *Session) Send(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Send(ctx, event)
}

type activeRun struct {
	sessionID string
	requester string
	startedAt time.Time
	cancel    context.CancelCauseFunc
	stopped   bool
}

// RunInfo describes an in-flight run.
type RunInfo struct {
	RunID     string    `json:"runId"`
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
}

// Registry holds connected sessions and their runs.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	runs     map[string]*activeRun
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		runs:     make(map[string]*activeRun),
		logger:   logging.NewComponentLogger(logger, "session"),
	}
}

// Add registers s. Adding an id that is already present replaces the
// earlier session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()
	r.logger.Info("session connected", logging.String(logging.FieldSessionID, s.ID), logging.Int("sessions", count))
}

// Remove unregisters id and cancels its runs.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	cancelled := r.cancelRunsLocked(id, ErrDisconnected, false)
	count := len(r.sessions)
	r.mu.Unlock()
	if ok {
		r.logger.Info("session disconnected",
			logging.String(logging.FieldSessionID, id),
			logging.Int("sessions", count),
			logging.Int("runs_cancelled", cancelled),
		)
	}
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Count returns the number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the connected session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// SendTo writes event to one session.
func (r *Registry) SendTo(ctx context.Context, id string, event Event) error {
	s, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s.Send(ctx, event)
}

// Broadcast writes event to every session and returns how many writes
// succeeded. Failed writes are logged.
func (r *Registry) Broadcast(ctx context.Context, event Event) int {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if err := s.Send(ctx, event); err != nil {
			logging.WarnWithContext(r.logger, "broadcast write failed", "session_send_failed",
				logging.String(logging.FieldSessionID, s.ID),
				logging.String("event", event.Name),
				logging.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// BeginRun registers a run owned by sessionID and returns its context, id and
// a release function that must be called when the run ends.
func (r *Registry) BeginRun(ctx context.Context, sessionID string) (context.Context, string, func()) {
	return r.BeginRunFor(ctx, sessionID, sessionID)
}

// BeginRunFor registers a run whose results go to sessionID but which was
// requested by requesterID. A stop from either session cancels it.
func (r *Registry) BeginRunFor(ctx context.Context, sessionID, requesterID string) (context.Context, string, func()) {
	runID := uuid.NewString()
	runCtx, cancel := context.WithCancelCause(ctx)
	runCtx = services.WithSessionID(services.WithRunID(runCtx, runID), sessionID)

	r.mu.Lock()
	r.runs[runID] = &activeRun{sessionID: sessionID, requester: requesterID, startedAt: time.Now(), cancel: cancel}
	r.mu.Unlock()

	var once sync.Once
	done := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.runs, runID)
			r.mu.Unlock()
			cancel(nil)
		})
	}
	return runCtx, runID, done
}

// Stop cancels every run owned or requested by sessionID and returns how
// many were cancelled.
func (r *Registry) Stop(sessionID string) int {
	r.mu.Lock()
	n := r.cancelRunsLocked(sessionID, ErrStopped, true)
	r.mu.Unlock()
	if n > 0 {
		r.logger.Info("runs stopped", logging.String(logging.FieldSessionID, sessionID), logging.Int("runs", n))
	}
	return n
}

// StopAll cancels every active run.
func (r *Registry) StopAll(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		run.cancel(cause)
	}
}

// ActiveRuns lists in-flight runs ordered by start time.
func (r *Registry) ActiveRuns() []RunInfo {
	r.mu.RLock()
	out := make([]RunInfo, 0, len(r.runs))
	for id, run := range r.runs {
		out = append(out, RunInfo{RunID: id, SessionID: run.sessionID, StartedAt: run.startedAt})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (r *Registry) cancelRunsLocked(sessionID string, cause error, includeRequested bool) int {
	n := 0
	for _, run := range r.runs {
		match := run.sessionID == sessionID || (includeRequested && run.requester == sessionID)
		if match && !run.stopped {
			run.cancel(cause)
			run.stopped = true
			n++
		}
	}
	return n
}
