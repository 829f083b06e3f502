package config

import (
	"errors"

	"github.com/rhuss/aichat/pkg/provider"
)

// Validate checks the configuration for required fields and valid values.
// Every failure is a *ConfigurationError naming the field; all failures
// are reported together.
func (c *Config) Validate() error {
	var errs []error

	// chat.provider is required and must be a known selector.
	kind, known := provider.ParseKind(c.Chat.Provider)
	switch {
	case c.Chat.Provider == "":
		errs = append(errs, fieldError("chat.provider", "is required"))
	case !known:
		errs = append(errs, fieldError("chat.provider", "unsupported provider %q", c.Chat.Provider))
	}

	if c.Chat.Model == "" {
		errs = append(errs, fieldError("chat.model", "is required"))
	}

	// Hosted vendors need a credential; the local server does not.
	if known && kind.RequiresAPIKey() && c.Chat.APIKey == "" && c.Chat.APIKeyFile == "" {
		errs = append(errs, fieldError("chat.api_key", "is required for provider %q", kind))
	}

	if c.Chat.MaxTokens <= 0 {
		errs = append(errs, fieldError("chat.max_tokens", "must be > 0, got %d", c.Chat.MaxTokens))
	}
	if c.Chat.SystemPromptCacheTimeout < 0 {
		errs = append(errs, fieldError("chat.system_prompt_cache_timeout", "must be >= 0, got %s", c.Chat.SystemPromptCacheTimeout))
	}
	if c.Chat.MaxMessageLength <= 0 {
		errs = append(errs, fieldError("chat.max_message_length", "must be > 0, got %d", c.Chat.MaxMessageLength))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fieldError("server.port", "must be > 0, got %d", c.Server.Port))
	}

	switch c.Session.Store {
	case "memory", "redis", "postgres", "sqlite":
		// valid
	default:
		errs = append(errs, fieldError("session.store", "must be \"memory\", \"redis\", \"postgres\" or \"sqlite\", got %q", c.Session.Store))
	}

	switch c.Prompts.Store {
	case "none", "postgres", "sqlite":
		// valid
	default:
		errs = append(errs, fieldError("prompts.store", "must be \"none\", \"postgres\" or \"sqlite\", got %q", c.Prompts.Store))
	}

	switch c.Cache.Type {
	case "memory", "redis":
		// valid
	default:
		errs = append(errs, fieldError("cache.type", "must be \"memory\" or \"redis\", got %q", c.Cache.Type))
	}

	if c.usesPostgres() && c.Postgres.DSN == "" && c.Postgres.DSNFile == "" {
		errs = append(errs, fieldError("postgres.dsn", "postgres.dsn or postgres.dsn_file is required when a postgres store is selected"))
	}
	if c.usesSQLite() && c.SQLite.Path == "" {
		errs = append(errs, fieldError("sqlite.path", "is required when a sqlite store is selected"))
	}
	if c.usesRedis() && c.Redis.Addr == "" {
		errs = append(errs, fieldError("redis.addr", "is required when a redis backend is selected"))
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fieldError("auth.type", "must be \"none\", \"apikey\" or \"jwt\", got %q", c.Auth.Type))
	}
	switch c.Log.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fieldError("log.format", "must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fieldError("auth.api_keys", "at least one key is required when auth.type is \"apikey\""))
	}
	if c.Auth.Type == "jwt" {
		jwt := c.Auth.JWT
		hasSecret := jwt.Secret != "" || jwt.SecretFile != ""
		switch {
		case jwt.JWKSURL == "" && !hasSecret:
			errs = append(errs, fieldError("auth.jwt.jwks_url", "is required when auth.type is \"jwt\" and no auth.jwt.secret is set"))
		case jwt.JWKSURL != "" && hasSecret:
			errs = append(errs, fieldError("auth.jwt.jwks_url", "set either auth.jwt.jwks_url or auth.jwt.secret, not both"))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) usesPostgres() bool {
	return c.Session.Store == "postgres" || c.Prompts.Store == "postgres"
}

func (c *Config) usesSQLite() bool {
	return c.Session.Store == "sqlite" || c.Prompts.Store == "sqlite"
}

func (c *Config) usesRedis() bool {
	return c.Session.Store == "redis" || c.Cache.Type == "redis"
}
