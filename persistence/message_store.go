// Package persistence keeps chat session histories. The SQLite store is the
// default so histories survive restarts and can be queried per project and
// session without loading whole files.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/planform/framework"
)

// MessageStore persists chat histories keyed by (project, session).
type MessageStore interface {
	Append(ctx context.Context, projectID, sessionID string, messages ...framework.Message) error
	History(ctx context.Context, projectID, sessionID string) ([]framework.Message, error)
	Clear(ctx context.Context, projectID, sessionID string) error
	Close() error
}

// SQLiteMessageStore keeps messages in a single SQLite database.
type SQLiteMessageStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session
	ON messages (project_id, session_id, id);
`

// NewSQLiteMessageStore opens (creating if needed) the database at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteMessageStore(path string) (*SQLiteMessageStore, error) {
	if path == "" {
		return nil, errors.New("message store path required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteMessageStore{db: db}, nil
}

// Append stores messages for a session in order.
func (s *SQLiteMessageStore) Append(ctx context.Context, projectID, sessionID string, messages ...framework.Message) error {
	if projectID == "" || sessionID == "" {
		return errors.New("project and session ids required")
	}
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (project_id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, msg := range messages {
		if _, err := stmt.ExecContext(ctx, projectID, sessionID, msg.Role, msg.Content, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// History returns the session's conversation in insertion order.
func (s *SQLiteMessageStore) History(ctx context.Context, projectID, sessionID string) ([]framework.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE project_id = ? AND session_id = ? ORDER BY id`,
		projectID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []framework.Message
	for rows.Next() {
		var msg framework.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Clear removes the session's messages.
func (s *SQLiteMessageStore) Clear(ctx context.Context, projectID, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE project_id = ? AND session_id = ?`, projectID, sessionID)
	return err
}

// Close releases the database handle.
func (s *SQLiteMessageStore) Close() error { return s.db.Close() }
