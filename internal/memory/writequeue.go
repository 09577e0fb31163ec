package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fitcoach/internal/store"
)

// writeQueue serializes the durable writes of one session. A single worker
// drains a bounded channel, so writes apply in enqueue order regardless of
// how many turns are in flight. Delivery is at-least-once: the store's
// append is idempotent on message ID, and a failed write is retried once
// before being dropped with a warning.
type writeQueue struct {
	st        store.Store
	subjectID string
	logger    *zap.Logger

	mu     sync.Mutex
	ch     chan store.Message
	closed bool
	wg     sync.WaitGroup
}

func newWriteQueue(st store.Store, subjectID string, size int, logger *zap.Logger) *writeQueue {
	if size <= 0 {
		size = 64
	}
	q := &writeQueue{
		st:        st,
		subjectID: subjectID,
		logger:    logger,
		ch:        make(chan store.Message, size),
	}
	q.wg.Add(1)
	go q.drain()
	return q
}

// Enqueue schedules a durable write without blocking the caller. When the
// queue is full the oldest pending write is dropped; that data-loss window
// is the documented cost of keeping Save off the persistence path.
func (q *writeQueue) Enqueue(msg store.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- msg:
			return
		default:
		}
		select {
		case dropped := <-q.ch:
			q.logger.Warn("write queue full, dropping oldest pending write",
				zap.String("session", dropped.SessionID),
				zap.String("message", dropped.ID))
		default:
		}
	}
}

func (q *writeQueue) drain() {
	defer q.wg.Done()
	for msg := range q.ch {
		q.persist(msg)
	}
}

func (q *writeQueue) persist(msg store.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if q.subjectID != "" {
		scoped, err := q.st.SetSubjectContext(ctx, q.subjectID)
		if err != nil {
			q.logger.Warn("subject scoping failed for durable write",
				zap.String("session", msg.SessionID),
				zap.Error(err))
		} else {
			ctx = scoped
		}
	}

	if err := q.st.AppendMessage(ctx, msg); err != nil {
		// One retry, then drop. At-least-once, not exactly-once.
		if err2 := q.st.AppendMessage(ctx, msg); err2 != nil {
			q.logger.Warn("durable write failed, turn kept in local buffer only",
				zap.String("session", msg.SessionID),
				zap.Error(err2))
		}
	}
}

// Close stops the worker after draining queued writes.
func (q *writeQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
