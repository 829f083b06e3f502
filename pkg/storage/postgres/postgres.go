// Package postgres provides a PostgreSQL implementation of session.Store
// and prompt.Store. It uses pgx/v5 for connection pooling and JSONB for
// conversation storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/prompt"
	"github.com/rhuss/aichat/pkg/session"
	"github.com/rhuss/aichat/pkg/storage"
)

// Store is a PostgreSQL-backed session and prompt store.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
}

// Ensure Store implements the store interfaces at compile time.
var (
	_ session.Store = (*Store)(nil)
	_ prompt.Store  = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, cfg: cfg}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
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

	query := "SELECT conversation FROM chat_sessions WHERE session_id = $1"
	args := []any{sessionID}
	if s.cfg.SessionTTL > 0 {
		query += " AND updated_at > $2"
		args = append(args, time.Now().Add(-s.cfg.SessionTTL))
	}

	var raw []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return api.Conversation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	conv := api.Conversation{}
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("unmarshaling conversation: %w", err)
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
		return fmt.Errorf("marshaling conversation: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_sessions (session_id, conversation)
		VALUES ($1, $2)
		ON CONFLICT (session_id)
		DO UPDATE SET conversation = EXCLUDED.conversation, updated_at = now()
	`, sessionID, raw)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Current returns the content of the lowest-ID system prompt record.
func (s *Store) Current(ctx context.Context) (string, bool, error) {
	var content string
	err := s.pool.QueryRow(ctx,
		"SELECT content FROM system_prompts ORDER BY id LIMIT 1",
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying system prompt: %w", err)
	}
	return content, true, nil
}

// CreatePrompt inserts a named prompt record. Returns ErrConflict when
// the name is taken.
func (s *Store) CreatePrompt(ctx context.Context, name, content string) (*prompt.Record, error) {
	rec := &prompt.Record{Name: name, Content: content}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO system_prompts (name, content)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, name, content).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("inserting system prompt: %w", err)
	}
	return rec, nil
}

// UpdatePrompt replaces the content of the named record.
func (s *Store) UpdatePrompt(ctx context.Context, name, content string) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE system_prompts SET content = $1, updated_at = now() WHERE name = $2",
		content, name,
	)
	if err != nil {
		return fmt.Errorf("updating system prompt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeletePrompt removes the named record.
func (s *Store) DeletePrompt(ctx context.Context, name string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM system_prompts WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("deleting system prompt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
