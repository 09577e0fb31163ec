// Package session enforces the single-active-session rule: each subject
// holds at most one active session, and conversation turns always land in
// that one.
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fitcoach/internal/store"
)

// Manager resolves and maintains active sessions on top of the store's
// uniqueness constraint. It holds no session state itself; the store is
// the source of truth, which keeps concurrent callers convergent.
type Manager struct {
	st          store.Store
	idleTimeout time.Duration
	logger      *zap.Logger
}

// NewManager creates a session manager. idleTimeout is how long a session
// may sit without activity before reaping deactivates it.
func NewManager(st store.Store, idleTimeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{st: st, idleTimeout: idleTimeout, logger: logger}
}

// GetOrCreateActive returns the subject's active session, creating one if
// none exists. Losing the creation race to a concurrent first turn is
// recovered by re-querying, so N concurrent calls for the same subject all
// converge on the same session.
func (m *Manager) GetOrCreateActive(ctx context.Context, subjectID string) (store.Session, error) {
	scoped, err := m.st.SetSubjectContext(ctx, subjectID)
	if err != nil {
		return store.Session{}, err
	}

	sess, err := m.st.ActiveSession(scoped, subjectID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Session{}, err
	}

	sess, err = m.st.CreateSession(scoped, subjectID)
	if err == nil {
		m.logger.Info("session created",
			zap.String("subject", subjectID),
			zap.String("session", sess.ID))
		return sess, nil
	}
	if errors.Is(err, store.ErrActiveSessionExists) {
		// Someone else won the race; their session is ours too.
		return m.st.ActiveSession(scoped, subjectID)
	}
	return store.Session{}, err
}

// Touch records activity on a session. Failures are logged, not surfaced:
// a stale last_activity_at only advances the reaping schedule.
func (m *Manager) Touch(ctx context.Context, sessionID string) {
	if err := m.st.TouchSession(ctx, sessionID); err != nil {
		m.logger.Warn("session touch failed",
			zap.String("session", sessionID),
			zap.Error(err))
	}
}

// End deactivates a session explicitly.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	return m.st.DeactivateSession(ctx, sessionID)
}

// ReapIdle deactivates sessions idle past the timeout, across all subjects
// with an active session. Returns the number of sessions deactivated.
func (m *Manager) ReapIdle(ctx context.Context) (int, error) {
	subjects, err := m.st.ActiveSubjects(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-m.idleTimeout)

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	results := make([]int, len(subjects))
	for i, subjectID := range subjects {
		g.Go(func() error {
			scoped, err := m.st.SetSubjectContext(gctx, subjectID)
			if err != nil {
				return err
			}
			n, err := m.st.DeactivateIdleSessions(scoped, subjectID, cutoff)
			if err != nil {
				return err
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	for _, n := range results {
		total += int64(n)
	}
	if total > 0 {
		m.logger.Info("idle sessions reaped", zap.Int64("count", total))
	}
	return int(total), nil
}
