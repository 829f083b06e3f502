package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AICHAT_"

// searchPath lists the config files tried when neither -config nor
// AICHAT_CONFIG names one.
var searchPath = []string{"config.yaml", "/etc/aichat/config.yaml"}

// Load builds a Config from, in increasing precedence: defaults, the YAML
// file, AICHAT_* environment variables. Secrets given as *_file paths are
// then read in, and the result is validated.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(configPath); path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := readSecretFiles(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	for _, p := range searchPath {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envSettings are the infrastructure variables. The chat options of
// Resolve are read from the environment under the same names as well.
var envSettings = map[string]setter{
	"PORT":                func(c *Config, v any) error { return setInt(&c.Server.Port, v) },
	"SESSION_STORE":       func(c *Config, v any) error { return setString(&c.Session.Store, v) },
	"SESSION_SIGNING_KEY": func(c *Config, v any) error { return setString(&c.Session.SigningKey, v) },
	"SESSION_TTL":         func(c *Config, v any) error { return setSeconds(&c.Session.TTL, v) },
	"PROMPT_STORE":        func(c *Config, v any) error { return setString(&c.Prompts.Store, v) },
	"SQLITE_PATH":         func(c *Config, v any) error { return setString(&c.SQLite.Path, v) },
	"CACHE":               func(c *Config, v any) error { return setString(&c.Cache.Type, v) },
	"REDIS_ADDR":          func(c *Config, v any) error { return setString(&c.Redis.Addr, v) },
	"REDIS_PASSWORD":      func(c *Config, v any) error { return setString(&c.Redis.Password, v) },
	"POSTGRES_DSN":        func(c *Config, v any) error { return setString(&c.Postgres.DSN, v) },
	"JWKS_URL":            func(c *Config, v any) error { return setString(&c.Auth.JWT.JWKSURL, v) },
	"JWT_SECRET":          func(c *Config, v any) error { return setString(&c.Auth.JWT.Secret, v) },
	"LOG_LEVEL":           func(c *Config, v any) error { return setString(&c.Log.Level, v) },
	"LOG_FORMAT":          func(c *Config, v any) error { return setString(&c.Log.Format, v) },
	"DEBUG":               func(c *Config, v any) error { return setString(&c.Log.Debug, v) },
}

// applyEnv applies every set, non-empty AICHAT_* variable. Errors name the
// variable and are joined.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	names := append(OptionNames(), sortedSettingNames()...)

	var errs []error
	for _, name := range names {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		set, ok := options[name]
		if !ok {
			set = envSettings[name]
		}
		if err := set(cfg, v); err != nil {
			errs = append(errs, fieldError(EnvPrefix+name, "%v", err))
		}
	}
	return errors.Join(errs...)
}

func sortedSettingNames() []string {
	names := make([]string, 0, len(envSettings))
	for name := range envSettings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// setAPIKeys accepts a JSON array such as [{"key":"...","subject":"svc"}],
// a key to subject map, or the decoded slice.
func setAPIKeys(dst *[]APIKeyConfig, v any) error {
	var keys []APIKeyConfig
	switch k := v.(type) {
	case nil:
	case []APIKeyConfig:
		keys = k
	case map[string]string:
		for _, secret := range slices.Sorted(maps.Keys(k)) {
			keys = append(keys, APIKeyConfig{Key: secret, Subject: k[secret]})
		}
	case string:
		if err := json.Unmarshal([]byte(k), &keys); err != nil {
			return fmt.Errorf("parsing API keys JSON: %w", err)
		}
	default:
		return fmt.Errorf("expected JSON string or key map, got %T", v)
	}
	if len(keys) > 0 {
		*dst = keys
	}
	return nil
}

type secretRef struct {
	field string
	path  string
	dst   *string
}

// readSecretFiles fills each secret from its *_file path unless the secret
// is already set. File contents are whitespace-trimmed.
func readSecretFiles(cfg *Config) error {
	refs := []secretRef{
		{"chat.api_key_file", cfg.Chat.APIKeyFile, &cfg.Chat.APIKey},
		{"postgres.dsn_file", cfg.Postgres.DSNFile, &cfg.Postgres.DSN},
		{"redis.password_file", cfg.Redis.PasswordFile, &cfg.Redis.Password},
		{"session.signing_key_file", cfg.Session.SigningKeyFile, &cfg.Session.SigningKey},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		refs = append(refs, secretRef{fmt.Sprintf("auth.api_keys[%d].key_file", i), k.KeyFile, &k.Key})
	}

	for _, ref := range refs {
		if ref.path == "" || *ref.dst != "" {
			continue
		}
		data, err := os.ReadFile(ref.path)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.field, err)
		}
		*ref.dst = strings.TrimSpace(string(data))
	}
	return nil
}
