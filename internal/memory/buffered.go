package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitcoach/internal/store"
)

// bufferedManager is the degraded tier used when the store was unreachable
// at session start. Reads never touch the store; writes are still queued
// best-effort so turns are recovered if the store comes back within the
// session.
type bufferedManager struct {
	st        store.Store
	sessionID string
	subjectID string
	policy    Policy
	buf       *buffer
	queue     *writeQueue
	logger    *zap.Logger
}

func newBufferedManager(st store.Store, sessionID, subjectID string, policy Policy, queueSize int, logger *zap.Logger) *bufferedManager {
	return &bufferedManager{
		st:        st,
		sessionID: sessionID,
		subjectID: subjectID,
		policy:    policy,
		buf:       newBuffer(policy),
		queue:     newWriteQueue(st, subjectID, queueSize, logger),
		logger:    logger,
	}
}

func (m *bufferedManager) Load(ctx context.Context) BoundedContext {
	return Project(m.buf.Snapshot(), m.policy)
}

func (m *bufferedManager) Save(ctx context.Context, humanText, aiText string) {
	now := time.Now().UTC()
	pair := []store.Message{
		{
			ID:        uuid.NewString(),
			SessionID: m.sessionID,
			Role:      store.RoleHuman,
			Content:   humanText,
			CreatedAt: now,
		},
		{
			ID:        uuid.NewString(),
			SessionID: m.sessionID,
			Role:      store.RoleAI,
			Content:   aiText,
			CreatedAt: now,
		},
	}
	m.buf.Append(pair...)
	for _, msg := range pair {
		m.queue.Enqueue(msg)
	}
}

// Clear drops the local buffer and deactivates the session best-effort.
// Queued writes may still land after the store recovers; without the
// deactivation they would re-seed a session the subject already cleared.
func (m *bufferedManager) Clear(ctx context.Context) error {
	m.buf.Reset()
	scoped := ctx
	if sc, err := m.st.SetSubjectContext(ctx, m.subjectID); err == nil {
		scoped = sc
	}
	if err := m.st.DeactivateSession(scoped, m.sessionID); err != nil {
		m.logger.Warn("session deactivation failed during clear",
			zap.String("session", m.sessionID),
			zap.Error(err))
	}
	return nil
}

func (m *bufferedManager) Stats() Stats {
	return Project(m.buf.Snapshot(), m.policy).Stats()
}

func (m *bufferedManager) Close() error {
	return m.queue.Close()
}
