// Package store is the backing-store adapter for sessions and conversation
// turns. The orchestration core only depends on the Store interface; the
// SQLite implementation lives in sqlite.go.
package store

import (
	"context"
	"errors"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleHuman    Role = "human"
	RoleAI       Role = "ai"
	RoleSystem   Role = "system"
	RoleFunction Role = "function"
)

// Session is the bounded, single-active conversational context for one
// subject. At most one active session exists per subject at any time; the
// store enforces that with a uniqueness constraint.
type Session struct {
	ID             string
	SubjectID      string
	StartedAt      time.Time
	LastActivityAt time.Time
	Active         bool
	Metadata       map[string]string
}

// Message is one turn in a conversation. Append-only; never mutated or
// deleted except by session teardown.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Store failure taxonomy. Callers recover from all of these locally; none
// of them ever reaches an end user.
var (
	// ErrUnreachable covers connection and I/O failures.
	ErrUnreachable = errors.New("backing store unreachable")

	// ErrAccessDenied marks a query outside the scoped subject context.
	ErrAccessDenied = errors.New("access denied for subject context")

	// ErrActiveSessionExists marks a create that lost the race against a
	// concurrent first turn. Recover by re-querying the active session.
	ErrActiveSessionExists = errors.New("active session already exists for subject")

	// ErrNotFound marks a missing session.
	ErrNotFound = errors.New("session not found")
)

// Store is the narrow contract the core consumes from the backing store.
type Store interface {
	// SetSubjectContext scopes the returned context to one subject.
	// Queries made with that context against another subject's sessions
	// fail with ErrAccessDenied.
	SetSubjectContext(ctx context.Context, subjectID string) (context.Context, error)

	// CreateSession inserts a new active session for the subject. Returns
	// ErrActiveSessionExists when one already exists.
	CreateSession(ctx context.Context, subjectID string) (Session, error)

	// ActiveSession returns the subject's active session or ErrNotFound.
	ActiveSession(ctx context.Context, subjectID string) (Session, error)

	// TouchSession updates last_activity_at.
	TouchSession(ctx context.Context, sessionID string) error

	// DeactivateSession marks a session inactive.
	DeactivateSession(ctx context.Context, sessionID string) error

	// DeactivateIdleSessions marks the subject's active sessions inactive
	// when idle since before the cutoff, returning how many were changed.
	DeactivateIdleSessions(ctx context.Context, subjectID string, before time.Time) (int, error)

	// ActiveSubjects lists subjects that currently hold an active session.
	// Maintenance only, not on the hot path.
	ActiveSubjects(ctx context.Context) ([]string, error)

	// AppendMessage appends one turn to a session's log.
	AppendMessage(ctx context.Context, msg Message) error

	// RecentMessages returns the last limit turns of a session in
	// chronological order.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Close releases the underlying connection.
	Close() error
}
