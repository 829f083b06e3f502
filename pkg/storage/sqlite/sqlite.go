// Package sqlite provides a single-file SQLite implementation of
// session.Store and prompt.Store using the pure-Go modernc.org/sqlite
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/prompt"
	"github.com/rhuss/aichat/pkg/session"
	"github.com/rhuss/aichat/pkg/storage"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timeLayout is used for every TEXT timestamp column. Fixed width keeps
// lexical and chronological order aligned.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Config holds SQLite settings.
type Config struct {
	// Path is the database file. ":memory:" is accepted for tests.
	Path string

	// SessionTTL hides sessions not written for longer than this. Zero
	// keeps sessions forever.
	SessionTTL time.Duration

	// MigrateOnStart runs schema migrations when the store opens.
	MigrateOnStart bool
}

// Store is a SQLite-backed session and prompt store.
type Store struct {
	db  *sql.DB
	cfg Config
	now func() time.Time
}

// Ensure Store implements the store interfaces at compile time.
var (
	_ session.Store = (*Store)(nil)
	_ prompt.Store  = (*Store)(nil)
)

// New opens (or creates) the database at cfg.Path.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, cfg: cfg, now: time.Now}

	if cfg.MigrateOnStart {
		if err := storage.ApplyMigrations(ctx, migrationFiles, "migrations", sqliteMigrator{db}); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: running migrations: %w", err)
		}
	}
	return s, nil
}

// Get returns the conversation for sessionID. Unknown or expired sessions
// yield an empty conversation.
func (s *Store) Get(ctx context.Context, sessionID string) (api.Conversation, error) {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	query := "SELECT conversation FROM chat_sessions WHERE session_id = ?"
	args := []any{sessionID}
	if s.cfg.SessionTTL > 0 {
		query += " AND updated_at > ?"
		args = append(args, s.stamp(s.now().Add(-s.cfg.SessionTTL)))
	}

	var raw string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Conversation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying session: %w", err)
	}

	conv := api.Conversation{}
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshaling conversation: %w", err)
	}
	return conv, nil
}

// Set upserts the conversation for sessionID.
func (s *Store) Set(ctx context.Context, sessionID string, conv api.Conversation) error {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if conv == nil {
		conv = api.Conversation{}
	}

	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("sqlite: marshaling conversation: %w", err)
	}

	now := s.stamp(s.now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, conversation, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			conversation = excluded.conversation, updated_at = excluded.updated_at
	`, sessionID, string(raw), now, now)
	if err != nil {
		return fmt.Errorf("sqlite: saving session: %w", err)
	}
	return nil
}

// Current returns the content of the lowest-ID system prompt record.
func (s *Store) Current(ctx context.Context) (string, bool, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM system_prompts ORDER BY id LIMIT 1",
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: querying system prompt: %w", err)
	}
	return content, true, nil
}

// CreatePrompt inserts a named prompt record. Returns ErrConflict when
// the name is taken.
func (s *Store) CreatePrompt(ctx context.Context, name, content string) (*prompt.Record, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO system_prompts (name, content, created_at, updated_at) VALUES (?, ?, ?, ?)",
		name, content, s.stamp(now), s.stamp(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("sqlite: inserting system prompt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading prompt id: %w", err)
	}
	return &prompt.Record{ID: id, Name: name, Content: content, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdatePrompt replaces the content of the named record.
func (s *Store) UpdatePrompt(ctx context.Context, name, content string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE system_prompts SET content = ?, updated_at = ? WHERE name = ?",
		content, s.stamp(s.now()), name,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating system prompt: %w", err)
	}
	return requireRow(res)
}

// DeletePrompt removes the named record.
func (s *Store) DeletePrompt(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM system_prompts WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("sqlite: deleting system prompt: %w", err)
	}
	return requireRow(res)
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

type sqliteMigrator struct{ db *sql.DB }

func (m sqliteMigrator) Applied(ctx context.Context, version int) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version,
	).Scan(&exists)
	return exists, err
}

func (m sqliteMigrator) Apply(ctx context.Context, mig storage.Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)", mig.Version,
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}
