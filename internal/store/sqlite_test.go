package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndQueryActiveSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, sess.Active)

	got, err := s.ActiveSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = s.ActiveSession(ctx, "user-2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSingleActiveSessionConstraint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, "user-1")
	assert.True(t, errors.Is(err, ErrActiveSessionExists))

	// Deactivating frees the slot for a fresh session.
	first, err := s.ActiveSession(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, s.DeactivateSession(ctx, first.ID))

	second, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubjectContextScoping(t *testing.T) {
	s := newTestStore(t)

	ctx, err := s.SetSubjectContext(context.Background(), "user-1")
	require.NoError(t, err)

	sess, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	// Scoped context cannot read another subject's sessions.
	_, err = s.ActiveSession(ctx, "user-2")
	assert.True(t, errors.Is(err, ErrAccessDenied))

	// Nor append to them once rescoped.
	otherCtx, err := s.SetSubjectContext(context.Background(), "user-2")
	require.NoError(t, err)
	err = s.AppendMessage(otherCtx, Message{SessionID: sess.ID, Role: RoleHuman, Content: "hola"})
	assert.True(t, errors.Is(err, ErrAccessDenied))

	_, err = s.SetSubjectContext(context.Background(), "")
	assert.True(t, errors.Is(err, ErrAccessDenied))
}

func TestAppendAndRecentMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		role := RoleHuman
		if i%2 == 1 {
			role = RoleAI
		}
		require.NoError(t, s.AppendMessage(ctx, Message{
			SessionID: sess.ID,
			Role:      role,
			Content:   string(rune('a' + i)),
		}))
	}

	msgs, err := s.RecentMessages(ctx, sess.ID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// Chronological order, last three turns.
	assert.Equal(t, "c", msgs[0].Content)
	assert.Equal(t, "e", msgs[2].Content)

	err = s.AppendMessage(ctx, Message{SessionID: "missing", Role: RoleHuman, Content: "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAppendMessageIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	msg := Message{ID: "fixed-id", SessionID: sess.ID, Role: RoleHuman, Content: "hola"}
	require.NoError(t, s.AppendMessage(ctx, msg))
	require.NoError(t, s.AppendMessage(ctx, msg)) // retried queue write

	msgs, err := s.RecentMessages(ctx, sess.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestDeactivateIdleSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	// Nothing idle yet.
	n, err := s.DeactivateIdleSessions(ctx, "user-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Everything older than a future cutoff is idle.
	n, err = s.DeactivateIdleSessions(ctx, "user-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.ActiveSession(ctx, "user-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	_ = sess
}

func TestActiveSubjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, "user-2")
	require.NoError(t, err)

	subjects, err := s.ActiveSubjects(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, subjects)
}
