// Package redis provides a Redis implementation of session.Store. Each
// conversation is a JSON value under aichat:conversation:<id> whose TTL
// slides forward on every read and write.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/session"
	"github.com/rhuss/aichat/pkg/storage"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// DialTimeout bounds the initial connection (default: 5s).
	DialTimeout time.Duration
}

// NewClient connects to Redis and verifies the connection with PING.
// The client is shared by the session store and the cache.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Store is a Redis-backed session store.
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
	owned  bool
}

// Ensure Store implements session.Store at compile time.
var _ session.Store = (*Store)(nil)

// New wraps an existing client. ttl of zero stores sessions without
// expiry. The caller keeps ownership of client.
func New(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Open connects with cfg and returns a Store that closes the client on
// Close.
func Open(ctx context.Context, cfg Config, ttl time.Duration) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, ttl: ttl, owned: true}, nil
}

// Get returns the conversation for sessionID, or an empty conversation
// when the key does not exist.
func (s *Store) Get(ctx context.Context, sessionID string) (api.Conversation, error) {
	if err := storage.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	key := storage.ConversationKey(sessionID)
	var (
		raw []byte
		err error
	)
	if s.ttl > 0 {
		raw, err = s.client.GetEx(ctx, key, s.ttl).Bytes()
	} else {
		raw, err = s.client.Get(ctx, key).Bytes()
	}
	if errors.Is(err, goredis.Nil) {
		return api.Conversation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	conv := api.Conversation{}
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("unmarshaling conversation: %w", err)
	}
	return conv, nil
}

// Set stores conv under the session key, resetting its TTL.
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
	if err := s.client.Set(ctx, storage.ConversationKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if the store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
