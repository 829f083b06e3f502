// Command server runs the aichat streaming chat bridge.
//
// Configuration is read from a YAML file (-config, AICHAT_CONFIG,
// ./config.yaml or /etc/aichat/config.yaml) and AICHAT_* environment
// variables. The minimum is a provider and a model:
//
//	AICHAT_PROVIDER - ollama, openai, google, anthropic or mistral
//	AICHAT_MODEL    - model name passed to the vendor
//	AICHAT_API_KEY  - vendor credential (not needed for ollama)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhuss/aichat/pkg/auth"
	"github.com/rhuss/aichat/pkg/auth/apikey"
	"github.com/rhuss/aichat/pkg/auth/jwt"
	"github.com/rhuss/aichat/pkg/auth/noop"
	"github.com/rhuss/aichat/pkg/config"
	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/engine"
	"github.com/rhuss/aichat/pkg/prompt"
	"github.com/rhuss/aichat/pkg/provider/factory"
	transporthttp "github.com/rhuss/aichat/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Setup(debug.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Categories: cfg.Log.Debug})

	prov, err := factory.New(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	resolver := prompt.NewResolver(cfg.Chat.SystemPrompt, b.prompts, b.cache, cfg.Chat.SystemPromptCacheTimeout)

	eng, err := engine.New(prov, b.sessions, engine.Config{
		Model:            cfg.Chat.Model,
		MaxTokens:        cfg.Chat.MaxTokens,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		RenderMarkdown:   cfg.Chat.RenderMarkdown,
	}, engine.WithPromptResolver(resolver))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	sessions, err := transporthttp.NewSessions(transporthttp.SessionConfig{
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.CookieSecure,
		TTL:        cfg.Session.TTL,
		SigningKey: []byte(cfg.Session.SigningKey),
	})
	if err != nil {
		return err
	}

	gate, err := authMiddleware(cfg)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(eng,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithSessions(sessions),
		transporthttp.WithHealthCheck(transporthttp.HealthCheckFunc(b.HealthCheck)),
		transporthttp.WithHTTPMiddleware(gate),
		transporthttp.WithUI(transporthttp.UIConfig{
			Title:          cfg.Chat.ChatTitle,
			Placeholder:    cfg.Chat.Placeholder,
			RenderMarkdown: cfg.Chat.RenderMarkdown,
		}),
	)

	slog.Info("aichat configured",
		"provider", prov.Name(),
		"model", cfg.Chat.Model,
		"session_store", cfg.Session.Store,
		"prompt_store", cfg.Prompts.Store,
		"login_required", cfg.Chat.LoginRequired,
		"render_markdown", cfg.Chat.RenderMarkdown,
	)

	return srv.Run(ctx)
}

// authMiddleware builds the LOGIN_REQUIRED gate. Without it every
// request is admitted as the anonymous identity.
func authMiddleware(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	var authenticators []auth.Authenticator
	switch cfg.Auth.Type {
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, apikey.Key{Secret: k.Key, Subject: k.Subject})
		}
		a, err := apikey.New(keys)
		if err != nil {
			return nil, err
		}
		authenticators = append(authenticators, a)
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Issuer:     cfg.Auth.JWT.Issuer,
			Audience:   cfg.Auth.JWT.Audience,
			JWKSURL:    cfg.Auth.JWT.JWKSURL,
			Secret:     []byte(cfg.Auth.JWT.Secret),
			UserClaim:  cfg.Auth.JWT.UserClaim,
			NameClaim:  cfg.Auth.JWT.NameClaim,
			CookieName: cfg.Auth.JWT.CookieName,
		})
		if err != nil {
			return nil, err
		}
		authenticators = append(authenticators, a)
	}
	if !cfg.Chat.LoginRequired {
		authenticators = append(authenticators, &noop.Authenticator{})
	} else if len(authenticators) == 0 {
		slog.Warn("login required without an authenticator, every chat request will be rejected", "auth_type", cfg.Auth.Type)
	}
	return auth.Middleware(auth.NewChain(cfg.Chat.LoginRequired, authenticators...), auth.DefaultBypassEndpoints), nil
}
