package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fitcoach/internal/store"
)

// remoteManager is the primary tier: the local buffer mirrors the session
// and a background queue makes each turn durable in the store. Reads hit
// the store only once, to seed the buffer; after that the buffer is the
// source of truth for the life of the manager.
type remoteManager struct {
	st        store.Store
	sessionID string
	subjectID string
	policy    Policy
	buf       *buffer
	queue     *writeQueue
	logger    *zap.Logger

	seeded bool
}

func newRemoteManager(st store.Store, sessionID, subjectID string, policy Policy, queueSize int, logger *zap.Logger) *remoteManager {
	return &remoteManager{
		st:        st,
		sessionID: sessionID,
		subjectID: subjectID,
		policy:    policy,
		buf:       newBuffer(policy),
		queue:     newWriteQueue(st, subjectID, queueSize, logger),
		logger:    logger,
	}
}

func (m *remoteManager) Load(ctx context.Context) BoundedContext {
	if !m.seeded && m.buf.Len() == 0 {
		m.seed(ctx)
	}
	return Project(m.buf.Snapshot(), m.policy)
}

func (m *remoteManager) seed(ctx context.Context) {
	m.seeded = true
	msgs, err := m.st.RecentMessages(m.scoped(ctx), m.sessionID, m.policy.MaxTurns*2)
	if err != nil {
		m.logger.Warn("history load failed, continuing with empty context",
			zap.String("session", m.sessionID),
			zap.Error(err))
		return
	}
	m.buf.Append(msgs...)
}

func (m *remoteManager) Save(ctx context.Context, humanText, aiText string) {
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

func (m *remoteManager) Clear(ctx context.Context) error {
	m.buf.Reset()
	if err := m.st.DeactivateSession(m.scoped(ctx), m.sessionID); err != nil {
		return err
	}
	return nil
}

// scoped attaches the subject's access scope to ctx. On failure the
// unscoped context is returned and the store's own checks decide.
func (m *remoteManager) scoped(ctx context.Context) context.Context {
	sc, err := m.st.SetSubjectContext(ctx, m.subjectID)
	if err != nil {
		m.logger.Warn("subject scoping failed",
			zap.String("subject", m.subjectID),
			zap.Error(err))
		return ctx
	}
	return sc
}

func (m *remoteManager) Stats() Stats {
	return Project(m.buf.Snapshot(), m.policy).Stats()
}

func (m *remoteManager) Close() error {
	return m.queue.Close()
}
