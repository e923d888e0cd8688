// Package session persists editor sessions: an opaque timeline document plus
// bookkeeping, one row per (user, content) pair. The engine treats the
// document as load/save-only; no partial updates.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/keagan/cutdeck/pkg/util"
)

// Sentinel errors — callers use errors.Is() instead of string matching.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnauthorized    = errors.New("unauthorized: session belongs to another user")
)

// Session is one persisted editing session. Timeline is the opaque document;
// Version bumps on every save as a basic audit trail.
type Session struct {
	ID        uuid.UUID       `json:"session_id"`
	UserID    uuid.UUID       `json:"user_id"`
	ContentID uuid.UUID       `json:"content_id"`
	Timeline  json.RawMessage `json:"timeline"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is the sqlite-backed session store.
type Store struct {
	logger zerolog.Logger
	db     *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS editor_sessions (
	session_id TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	content_id TEXT NOT NULL,
	timeline   TEXT NOT NULL DEFAULT '{}',
	version    INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_content ON editor_sessions(user_id, content_id);
`

// Open creates (if needed) and opens the store at path.
func Open(logger zerolog.Logger, path string) (*Store, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		logger: logger.With().Str("component", "session").Logger(),
		db:     db,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `session_id, user_id, content_id, timeline, version, created_at, updated_at`

// scanSession maps a row into a Session. Every SELECT returning selectColumns
// goes through here so scan order stays in sync.
func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		sess             Session
		id, user, content string
		doc              []byte
		created, updated int64
	)
	if err := scanner.Scan(&id, &user, &content, &doc, &sess.Version, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if sess.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad session id %q: %w", id, err)
	}
	if sess.UserID, err = uuid.Parse(user); err != nil {
		return nil, fmt.Errorf("bad user id %q: %w", user, err)
	}
	if sess.ContentID, err = uuid.Parse(content); err != nil {
		return nil, fmt.Errorf("bad content id %q: %w", content, err)
	}

	sess.Timeline = json.RawMessage(doc)
	sess.CreatedAt = time.Unix(created, 0).UTC()
	sess.UpdatedAt = time.Unix(updated, 0).UTC()
	return &sess, nil
}

// FindOrCreate returns the existing session for (user, content) or inserts a
// fresh one. A page reload or a second device therefore lands in the same
// session instead of stacking up orphan rows.
func (s *Store) FindOrCreate(ctx context.Context, userID, contentID uuid.UUID) (*Session, error) {
	existing, err := s.findExisting(ctx, userID, contentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return s.create(ctx, userID, contentID)
}

func (s *Store) findExisting(ctx context.Context, userID, contentID uuid.UUID) (*Session, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM editor_sessions
		WHERE user_id = ? AND content_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, userID.String(), contentID.String())
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

func (s *Store) create(ctx context.Context, userID, contentID uuid.UUID) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		ContentID: contentID,
		Timeline:  json.RawMessage(`{}`),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO editor_sessions (session_id, user_id, content_id, timeline, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		sess.ID.String(), userID.String(), contentID.String(), string(sess.Timeline),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("session", sess.ID.String()).Msg("session created")
	return sess, nil
}

// Get fetches a session and verifies ownership: a session fetched with the
// wrong user id fails instead of leaking another user's work.
func (s *Store) Get(ctx context.Context, id, userID uuid.UUID) (*Session, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM editor_sessions
		WHERE session_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id.String())
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if sess.UserID != userID {
		return nil, ErrUnauthorized
	}
	return sess, nil
}

// Save persists the timeline document and bumps the version counter.
func (s *Store) Save(ctx context.Context, id uuid.UUID, doc json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE editor_sessions
		SET timeline = ?, version = version + 1, updated_at = ?
		WHERE session_id = ?`,
		string(doc), time.Now().UTC().Unix(), id.String(),
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete permanently removes a session.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM editor_sessions WHERE session_id = ?`, id.String())
	return err
}

// List returns all sessions owned by a user, newest first.
func (s *Store) List(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM editor_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
