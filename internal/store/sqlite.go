package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type subjectCtxKey struct{}

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at the given path and runs
// schema migration.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrUnreachable, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	s := &SQLiteStore{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store initialized", zap.String("path", path))
	return s, nil
}

// initialize creates the required tables. The partial unique index on
// sessions enforces the single-active-session invariant per subject.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		last_activity_at DATETIME NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		metadata TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active
		ON sessions(subject_id) WHERE active = 1;
	CREATE INDEX IF NOT EXISTS idx_sessions_subject ON sessions(subject_id);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %v", ErrUnreachable, err)
	}
	return nil
}

// SetSubjectContext scopes the context to one subject, emulating row-level
// security: scoped queries against another subject's data fail with
// ErrAccessDenied.
func (s *SQLiteStore) SetSubjectContext(ctx context.Context, subjectID string) (context.Context, error) {
	if subjectID == "" {
		return ctx, fmt.Errorf("%w: empty subject id", ErrAccessDenied)
	}
	return context.WithValue(ctx, subjectCtxKey{}, subjectID), nil
}

// checkSubject verifies the scoped context, when present, matches the
// subject being queried.
func checkSubject(ctx context.Context, subjectID string) error {
	scoped, ok := ctx.Value(subjectCtxKey{}).(string)
	if ok && scoped != subjectID {
		return fmt.Errorf("%w: context scoped to %s", ErrAccessDenied, scoped)
	}
	return nil
}

// sessionSubject resolves a session's subject for scoped checks.
func (s *SQLiteStore) sessionSubject(sessionID string) (string, error) {
	var subjectID string
	err := s.db.QueryRow("SELECT subject_id FROM sessions WHERE id = ?", sessionID).Scan(&subjectID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return subjectID, nil
}

// CreateSession inserts a new active session for the subject.
func (s *SQLiteStore) CreateSession(ctx context.Context, subjectID string) (Session, error) {
	if err := checkSubject(ctx, subjectID); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sess := Session{
		ID:             uuid.NewString(),
		SubjectID:      subjectID,
		StartedAt:      now,
		LastActivityAt: now,
		Active:         true,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, subject_id, started_at, last_activity_at, active, metadata)
		 VALUES (?, ?, ?, ?, 1, ?)`,
		sess.ID, sess.SubjectID, sess.StartedAt, sess.LastActivityAt, "{}",
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return Session{}, ErrActiveSessionExists
		}
		s.logger.Error("failed to create session", zap.String("subject", subjectID), zap.Error(err))
		return Session{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	s.logger.Debug("session created", zap.String("session", sess.ID), zap.String("subject", subjectID))
	return sess, nil
}

// ActiveSession returns the subject's active session or ErrNotFound.
func (s *SQLiteStore) ActiveSession(ctx context.Context, subjectID string) (Session, error) {
	if err := checkSubject(ctx, subjectID); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, started_at, last_activity_at, active, metadata
		 FROM sessions
		 WHERE subject_id = ? AND active = 1
		 ORDER BY last_activity_at DESC
		 LIMIT 1`,
		subjectID,
	)
	return scanSession(row)
}

func scanSession(row *sql.Row) (Session, error) {
	var sess Session
	var active int
	var metaJSON string
	err := row.Scan(&sess.ID, &sess.SubjectID, &sess.StartedAt, &sess.LastActivityAt, &active, &metaJSON)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	sess.Active = active == 1
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &sess.Metadata)
	}
	return sess, nil
}

// TouchSession updates last_activity_at.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET last_activity_at = ? WHERE id = ?",
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// DeactivateSession marks a session inactive.
func (s *SQLiteStore) DeactivateSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET active = 0 WHERE id = ?",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// DeactivateIdleSessions marks the subject's stale active sessions inactive.
func (s *SQLiteStore) DeactivateIdleSessions(ctx context.Context, subjectID string, before time.Time) (int, error) {
	if err := checkSubject(ctx, subjectID); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0
		 WHERE subject_id = ? AND active = 1 AND last_activity_at < ?`,
		subjectID, before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("idle sessions deactivated", zap.String("subject", subjectID), zap.Int64("count", n))
	}
	return int(n), nil
}

// ActiveSubjects lists subjects that currently hold an active session.
func (s *SQLiteStore) ActiveSubjects(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT subject_id FROM sessions WHERE active = 1",
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		subjects = append(subjects, id)
	}
	return subjects, rows.Err()
}

// AppendMessage appends one turn to a session's log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg Message) error {
	subjectID, err := s.sessionSubject(msg.SessionID)
	if err != nil {
		return err
	}
	if err := checkSubject(ctx, subjectID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	metaJSON := "{}"
	if len(msg.Metadata) > 0 {
		if data, err := json.Marshal(msg.Metadata); err == nil {
			metaJSON = string(data)
		}
	}

	// INSERT OR IGNORE keeps retried queue writes idempotent.
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (id, session_id, role, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, metaJSON, msg.CreatedAt,
	)
	if err != nil {
		s.logger.Error("failed to append message", zap.String("session", msg.SessionID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

// RecentMessages returns the last limit turns in chronological order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	subjectID, err := s.sessionSubject(sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkSubject(ctx, subjectID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, metadata, created_at
		 FROM (
			SELECT seq, id, session_id, role, content, metadata, created_at
			FROM messages WHERE session_id = ?
			ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role, metaJSON string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &metaJSON, &m.CreatedAt); err != nil {
			continue
		}
		m.Role = Role(role)
		if metaJSON != "" && metaJSON != "{}" {
			_ = json.Unmarshal([]byte(metaJSON), &m.Metadata)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
