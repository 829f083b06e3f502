package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/aichat/pkg/cache"
	cachememory "github.com/rhuss/aichat/pkg/cache/memory"
	cacheredis "github.com/rhuss/aichat/pkg/cache/redis"
	"github.com/rhuss/aichat/pkg/config"
	"github.com/rhuss/aichat/pkg/prompt"
	"github.com/rhuss/aichat/pkg/session"
	"github.com/rhuss/aichat/pkg/storage/memory"
	"github.com/rhuss/aichat/pkg/storage/postgres"
	storageredis "github.com/rhuss/aichat/pkg/storage/redis"
	"github.com/rhuss/aichat/pkg/storage/sqlite"
)

// backends holds the stores selected by configuration. A database shared
// by the session and prompt stores is opened once.
type backends struct {
	sessions session.Store
	prompts  prompt.Store // nil when prompts.store is "none"
	cache    cache.Cache

	redis    *goredis.Client
	postgres *postgres.Store
	sqlite   *sqlite.Store
	closers  []io.Closer
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	if err := b.open(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backends) open(ctx context.Context, cfg *config.Config) error {
	switch cfg.Session.Store {
	case "memory":
		mem := memory.New(cfg.Session.MaxSize, memory.WithTTL(cfg.Session.TTL))
		b.closers = append(b.closers, mem)
		b.sessions = mem
	case "redis":
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return err
		}
		b.sessions = storageredis.New(client, cfg.Session.TTL)
	case "postgres":
		pg, err := b.postgresStore(ctx, cfg)
		if err != nil {
			return err
		}
		b.sessions = pg
	case "sqlite":
		lite, err := b.sqliteStore(ctx, cfg)
		if err != nil {
			return err
		}
		b.sessions = lite
	default:
		return fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
	slog.Info("session store ready", "type", cfg.Session.Store)

	switch cfg.Prompts.Store {
	case "none":
	case "postgres":
		pg, err := b.postgresStore(ctx, cfg)
		if err != nil {
			return err
		}
		b.prompts = pg
	case "sqlite":
		lite, err := b.sqliteStore(ctx, cfg)
		if err != nil {
			return err
		}
		b.prompts = lite
	default:
		return fmt.Errorf("unknown prompt store %q", cfg.Prompts.Store)
	}

	switch cfg.Cache.Type {
	case "memory":
		b.cache = cachememory.New(time.Now)
	case "redis":
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return err
		}
		b.cache = cacheredis.New(client)
	default:
		return fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}

	return nil
}

func (b *backends) redisClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client, err := storageredis.NewClient(ctx, storageredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	b.redis = client
	b.closers = append(b.closers, client)
	return client, nil
}

func (b *backends) postgresStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if b.postgres != nil {
		return b.postgres, nil
	}
	pg, err := postgres.New(ctx, postgres.Config{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       cfg.Postgres.MaxConns,
		SessionTTL:     cfg.Session.TTL,
		MigrateOnStart: cfg.Postgres.MigrateOnStart,
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	b.postgres = pg
	b.closers = append(b.closers, pg)
	return pg, nil
}

func (b *backends) sqliteStore(ctx context.Context, cfg *config.Config) (*sqlite.Store, error) {
	if b.sqlite != nil {
		return b.sqlite, nil
	}
	lite, err := sqlite.New(ctx, sqlite.Config{
		Path:           cfg.SQLite.Path,
		SessionTTL:     cfg.Session.TTL,
		MigrateOnStart: cfg.SQLite.MigrateOnStart,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	b.sqlite = lite
	b.closers = append(b.closers, lite)
	return lite, nil
}

// HealthCheck reports the session store's health, plus the prompt
// database when it is a separate backend.
func (b *backends) HealthCheck(ctx context.Context) error {
	if err := b.sessions.HealthCheck(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	if hc, ok := b.prompts.(interface{ HealthCheck(context.Context) error }); ok && hc != b.sessions {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("prompt store: %w", err)
		}
	}
	return nil
}

// Close releases every opened backend in reverse order.
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	b.closers = nil
	return errors.Join(errs...)
}
