// Package config provides unified configuration for the aichat server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (AICHAT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
//
// Embedders that already hold their settings as a flat option mapping
// (PROVIDER, MODEL, API_KEY, ...) use Resolve instead of Load.
//
// The resulting Config is resolved once at startup and never modified
// afterwards.
package config

import "time"

// Config holds all configuration for the aichat server.
type Config struct {
	Chat          ChatConfig          `yaml:"chat"`
	Server        ServerConfig        `yaml:"server"`
	Session       SessionConfig       `yaml:"session"`
	Prompts       PromptsConfig       `yaml:"prompts"`
	Cache         CacheConfig         `yaml:"cache"`
	Redis         RedisConfig         `yaml:"redis"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Log           LogConfig           `yaml:"log"`
}

// ChatConfig holds the chat options: which vendor to talk to and how.
type ChatConfig struct {
	Provider   string `yaml:"provider"`     // required: ollama, openai, google, anthropic, mistral
	Model      string `yaml:"model"`        // required
	APIKey     string `yaml:"api_key"`      // required except for ollama
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	BaseURL    string `yaml:"base_url"`     // optional endpoint override

	// SystemPrompt is injected as the leading system turn. Empty means no
	// system turn unless a prompt store supplies one.
	SystemPrompt string `yaml:"system_prompt"`

	// SystemPromptCacheTimeout is how long a prompt read from the prompt
	// store is cached. Zero disables caching.
	SystemPromptCacheTimeout time.Duration `yaml:"system_prompt_cache_timeout"`

	MaxTokens        int    `yaml:"max_tokens"`         // default: 4096
	ChatTitle        string `yaml:"chat_title"`         // default: "Chat"
	Placeholder      string `yaml:"placeholder"`        // default: "Type your message here..."
	LoginRequired    bool   `yaml:"login_required"`     // default: false
	RenderMarkdown   bool   `yaml:"render_markdown"`    // default: true
	MaxMessageLength int    `yaml:"max_message_length"` // default: 32768

	// GoogleNative selects the native Gemini API for provider "google".
	// When false the OpenAI-compatible endpoint is used.
	GoogleNative bool `yaml:"google_native"` // default: true

	// Timeout bounds vendor connection setup and response headers.
	Timeout time.Duration `yaml:"timeout"` // default: 120s
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 0 (streams)
	MaxBodySize  int64         `yaml:"max_body_size"` // default: 1 MiB
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	Store          string        `yaml:"store"`            // "memory", "redis", "postgres" or "sqlite", default: "memory"
	MaxSize        int           `yaml:"max_size"`         // memory store LRU bound, default: 10000
	TTL            time.Duration `yaml:"ttl"`              // default: 336h (two weeks)
	CookieName     string        `yaml:"cookie_name"`      // default: "aichat_session"
	CookieSecure   bool          `yaml:"cookie_secure"`    // default: false
	SigningKey     string        `yaml:"signing_key"`      // HS256 key for the session cookie
	SigningKeyFile string        `yaml:"signing_key_file"` // _file variant for signing_key
}

// PromptsConfig selects the dynamic system prompt source.
type PromptsConfig struct {
	Store string `yaml:"store"` // "none", "postgres" or "sqlite", default: "none"
}

// CacheConfig selects the cache backing the system prompt resolver.
type CacheConfig struct {
	Type string `yaml:"type"` // "memory" or "redis", default: "memory"
}

// RedisConfig holds Redis connection settings, shared by the session
// store and the cache.
type RedisConfig struct {
	Addr         string `yaml:"addr"` // default: "localhost:6379"
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
}

// PostgresConfig holds PostgreSQL settings, shared by the session and
// prompt stores.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// SQLiteConfig holds settings for the embedded SQLite database, shared by
// the session and prompt stores.
type SQLiteConfig struct {
	Path           string `yaml:"path"`             // database file
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// AuthConfig holds authentication settings for LOGIN_REQUIRED.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key" json:"key"`
	KeyFile string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject string `yaml:"subject" json:"subject"`
}

// JWTConfig describes the bearer token authenticator. Tokens are verified
// against a JWKS endpoint or, for a single trusted issuer, a shared HS256
// secret.
type JWTConfig struct {
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	JWKSURL    string `yaml:"jwks_url"`
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	UserClaim  string `yaml:"user_claim"`  // default: "sub"
	NameClaim  string `yaml:"name_claim"`  // default: "name"
	CookieName string `yaml:"cookie_name"` // read the token from this cookie when no header is sent
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LogConfig holds logging settings handed to debug.Setup.
type LogConfig struct {
	Level  string `yaml:"level"`  // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Format string `yaml:"format"` // "text" or "json"; default: text
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Chat: ChatConfig{
			MaxTokens:        4096,
			ChatTitle:        "Chat",
			Placeholder:      "Type your message here...",
			RenderMarkdown:   true,
			MaxMessageLength: 32768,
			GoogleNative:     true,
			Timeout:          120 * time.Second,
		},
		Server: ServerConfig{
			Port:        8080,
			ReadTimeout: 30 * time.Second,
			MaxBodySize: 1 << 20,
		},
		Session: SessionConfig{
			Store:      "memory",
			MaxSize:    10000,
			TTL:        14 * 24 * time.Hour,
			CookieName: "aichat_session",
		},
		Prompts: PromptsConfig{
			Store: "none",
		},
		Cache: CacheConfig{
			Type: "memory",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			MaxConns: 25,
		},
		SQLite: SQLiteConfig{
			MigrateOnStart: true,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// PromptCachingEnabled reports whether prompt store results are cached.
func (c *ChatConfig) PromptCachingEnabled() bool {
	return c.SystemPromptCacheTimeout > 0
}
