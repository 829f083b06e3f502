package postgres

import (
	"cmp"
	"time"
)

// Config configures the pgx pool behind the conversation and prompt store.
// Zero pool values take the defaults noted per field.
type Config struct {
	DSN string

	MaxConns        int32         // 10
	MinConns        int32         // 1
	MaxConnLifetime time.Duration // 5m

	// SessionTTL hides conversations not written for longer than this.
	// Zero keeps them forever.
	SessionTTL time.Duration

	// MigrateOnStart applies the embedded migrations in New.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	c.MaxConns = cmp.Or(c.MaxConns, 10)
	c.MinConns = cmp.Or(c.MinConns, 1)
	c.MaxConnLifetime = cmp.Or(c.MaxConnLifetime, 5*time.Minute)
}
