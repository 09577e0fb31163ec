package memory

import (
	"context"
	"sync"

	"fitcoach/internal/store"
)

// Manager is the capability interface responders use for conversation
// memory. All variants absorb persistence failures: Load and Save degrade
// to the in-process buffer instead of surfacing errors.
type Manager interface {
	// Load projects the session's recent turns under the manager's policy.
	Load(ctx context.Context) BoundedContext

	// Save appends a human/AI turn pair. The local buffer is updated
	// synchronously so an immediate Load reflects the pair; durable writes
	// are detached.
	Save(ctx context.Context, humanText, aiText string)

	// Clear drops buffered history and, for persisting tiers, deactivates
	// the session so the next turn starts fresh.
	Clear(ctx context.Context) error

	// Stats reports the current projection size.
	Stats() Stats

	// Close stops background persistence. Queued writes still in flight
	// are drained first.
	Close() error
}

// buffer is the in-process turn mirror shared by all tiers. It retains
// twice the policy window so re-projection after a Clear of the remote
// side still has material.
type buffer struct {
	mu   sync.Mutex
	msgs []store.Message
	cap  int
}

func newBuffer(policy Policy) *buffer {
	capacity := policy.MaxTurns * 2
	if capacity <= 0 {
		capacity = 60
	}
	return &buffer{cap: capacity}
}

func (b *buffer) Append(msgs ...store.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msgs...)
	if len(b.msgs) > b.cap {
		b.msgs = b.msgs[len(b.msgs)-b.cap:]
	}
}

func (b *buffer) Snapshot() []store.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]store.Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

func (b *buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

func (b *buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = nil
}
