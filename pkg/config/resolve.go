package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/aichat/pkg/api"
)

// setter applies one named option to a Config.
type setter func(cfg *Config, v any) error

// options maps the flat option names to the fields they set. The same
// names, prefixed with AICHAT_, are read from the environment by Load.
var options = map[string]setter{
	"PROVIDER": func(c *Config, v any) error { return setString(&c.Chat.Provider, v) },
	"MODEL":    func(c *Config, v any) error { return setString(&c.Chat.Model, v) },
	"API_KEY":  func(c *Config, v any) error { return setString(&c.Chat.APIKey, v) },
	"BASE_URL": func(c *Config, v any) error { return setString(&c.Chat.BaseURL, v) },
	"SYSTEM_PROMPT": func(c *Config, v any) error {
		switch p := v.(type) {
		case nil:
			c.Chat.SystemPrompt = ""
			return nil
		case api.Message:
			if p.Role != api.RoleSystem {
				return fmt.Errorf("message role must be %q, got %q", api.RoleSystem, p.Role)
			}
			c.Chat.SystemPrompt = p.Content
			return nil
		}
		return setString(&c.Chat.SystemPrompt, v)
	},
	"SYSTEM_PROMPT_CACHE_TIMEOUT": func(c *Config, v any) error {
		return setSeconds(&c.Chat.SystemPromptCacheTimeout, v)
	},
	"MAX_TOKENS":         func(c *Config, v any) error { return setInt(&c.Chat.MaxTokens, v) },
	"CHAT_TITLE":         func(c *Config, v any) error { return setString(&c.Chat.ChatTitle, v) },
	"PLACEHOLDER":        func(c *Config, v any) error { return setString(&c.Chat.Placeholder, v) },
	"LOGIN_REQUIRED":     func(c *Config, v any) error { return setBool(&c.Chat.LoginRequired, v) },
	"RENDER_MARKDOWN":    func(c *Config, v any) error { return setBool(&c.Chat.RenderMarkdown, v) },
	"MAX_MESSAGE_LENGTH": func(c *Config, v any) error { return setInt(&c.Chat.MaxMessageLength, v) },
	"GOOGLE_NATIVE":      func(c *Config, v any) error { return setBool(&c.Chat.GoogleNative, v) },
	"AUTH_TYPE":          func(c *Config, v any) error { return setString(&c.Auth.Type, v) },
	"API_KEYS":           func(c *Config, v any) error { return setAPIKeys(&c.Auth.APIKeys, v) },
}

// OptionNames returns the recognized option names in sorted order.
func OptionNames() []string {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds a validated Config from a flat option mapping such as
// {"PROVIDER": "openai", "MODEL": "gpt-4o-mini", "API_KEY": "sk-..."}.
// Options not given keep their defaults. Unknown names and values of the
// wrong type are reported as *ConfigurationError.
func Resolve(opts map[string]any) (*Config, error) {
	cfg := Defaults()

	var errs []error
	for _, name := range sortedKeys(opts) {
		set, ok := options[strings.ToUpper(name)]
		if !ok {
			errs = append(errs, fieldError(name, "unknown option"))
			continue
		}
		if err := set(&cfg, opts[name]); err != nil {
			errs = append(errs, fieldError(strings.ToUpper(name), "%v", err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setString(dst *string, v any) error {
	switch s := v.(type) {
	case nil:
		*dst = ""
	case string:
		*dst = s
	default:
		return fmt.Errorf("expected string, got %T", v)
	}
	return nil
}

func setInt(dst *int, v any) error {
	switch n := v.(type) {
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	case float64:
		if n != float64(int(n)) {
			return fmt.Errorf("expected integer, got %v", n)
		}
		*dst = int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return fmt.Errorf("expected integer, got %q", n)
		}
		*dst = i
	default:
		return fmt.Errorf("expected integer, got %T", v)
	}
	return nil
}

func setBool(dst *bool, v any) error {
	switch b := v.(type) {
	case bool:
		*dst = b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", b)
		}
		*dst = parsed
	default:
		return fmt.Errorf("expected boolean, got %T", v)
	}
	return nil
}

// setSeconds accepts a number of seconds, a duration string ("90s") or
// a time.Duration. nil disables.
func setSeconds(dst *time.Duration, v any) error {
	switch d := v.(type) {
	case nil:
		*dst = 0
	case time.Duration:
		*dst = d
	case string:
		s := strings.TrimSpace(d)
		if s == "" || strings.EqualFold(s, "none") {
			*dst = 0
			return nil
		}
		if secs, err := strconv.Atoi(s); err == nil {
			*dst = time.Duration(secs) * time.Second
			return nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("expected seconds or duration, got %q", d)
		}
		*dst = parsed
	default:
		var secs int
		if err := setInt(&secs, v); err != nil {
			return fmt.Errorf("expected seconds or duration, got %T", v)
		}
		*dst = time.Duration(secs) * time.Second
	}
	return nil
}
