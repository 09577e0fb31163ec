package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fitcoach/internal/store"
)

// ephemeralManager keeps turns in process memory only. It backs anonymous
// interactions and the last rung of the construction fallback; history is
// gone when the manager is.
type ephemeralManager struct {
	policy Policy
	buf    *buffer
}

func newEphemeralManager(policy Policy) *ephemeralManager {
	return &ephemeralManager{policy: policy, buf: newBuffer(policy)}
}

func (m *ephemeralManager) Load(ctx context.Context) BoundedContext {
	return Project(m.buf.Snapshot(), m.policy)
}

func (m *ephemeralManager) Save(ctx context.Context, humanText, aiText string) {
	now := time.Now().UTC()
	m.buf.Append(
		store.Message{ID: uuid.NewString(), Role: store.RoleHuman, Content: humanText, CreatedAt: now},
		store.Message{ID: uuid.NewString(), Role: store.RoleAI, Content: aiText, CreatedAt: now},
	)
}

func (m *ephemeralManager) Clear(ctx context.Context) error {
	m.buf.Reset()
	return nil
}

func (m *ephemeralManager) Stats() Stats {
	return Project(m.buf.Snapshot(), m.policy).Stats()
}

func (m *ephemeralManager) Close() error { return nil }
