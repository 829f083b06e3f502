// Package jwt authenticates users from signed JWTs, typically minted by
// an SSO proxy in front of aichat. Tokens are read from the
// Authorization header or, when configured, a cookie, and verified
// against a JWKS endpoint or a shared HS256 secret.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/aichat/pkg/auth"
	"github.com/rhuss/aichat/pkg/debug"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// JWKSURL selects RSA verification against a key set. Secret selects
	// HS256 verification. Exactly one must be set.
	JWKSURL string
	Secret  []byte

	// UserClaim becomes the identity subject. Default: "sub".
	UserClaim string

	// NameClaim is copied into Identity.Metadata["name"] for logs.
	// Default: "name".
	NameClaim string

	// CookieName, when set, is consulted if the request carries no
	// Authorization header.
	CookieName string

	// Leeway tolerates clock skew on exp and nbf. Default: 30s.
	Leeway time.Duration

	// MinRefreshInterval bounds how often an unknown kid may trigger a
	// JWKS fetch. Default: 1 minute.
	MinRefreshInterval time.Duration

	// HTTPClient fetches the JWKS. Default: a client with a 10s timeout.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.NameClaim == "" {
		c.NameClaim = "name"
	}
	if c.Leeway == 0 {
		c.Leeway = 30 * time.Second
	}
	if c.MinRefreshInterval == 0 {
		c.MinRefreshInterval = time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// Authenticator validates JWTs and maps their claims to an auth.Identity.
type Authenticator struct {
	cfg    Config
	keys   keySource
	parser *jwtlib.Parser
}

// New creates an Authenticator. It fails when neither or both of JWKSURL
// and Secret are set.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()

	var (
		keys    keySource
		methods []string
	)
	switch {
	case cfg.JWKSURL != "" && len(cfg.Secret) > 0:
		return nil, errors.New("jwt: set either a JWKS URL or a secret, not both")
	case cfg.JWKSURL != "":
		keys = newJWKSKeys(cfg.JWKSURL, cfg.HTTPClient, cfg.MinRefreshInterval)
		methods = []string{"RS256", "RS384", "RS512"}
	case len(cfg.Secret) > 0:
		keys = secretKey(cfg.Secret)
		methods = []string{"HS256"}
	default:
		return nil, errors.New("jwt: a JWKS URL or a secret is required")
	}

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods(methods),
		jwtlib.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{cfg: cfg, keys: keys, parser: jwtlib.NewParser(opts...)}, nil
}

// Name implements auth.Named.
func (a *Authenticator) Name() string { return "jwt" }

// Authenticate returns Abstain when the request carries no token, No
// when a token is present but fails verification, and Yes otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	raw, found := a.token(r)
	if !found {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if raw == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	claims := jwtlib.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.keys.key(ctx, kid)
	})
	if err != nil {
		debug.Log("auth", "jwt rejected", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("%w: %v", auth.ErrUnauthenticated, err)}
	}

	subject, _ := claims[a.cfg.UserClaim].(string)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("%w: token has no %q claim", auth.ErrUnauthenticated, a.cfg.UserClaim),
		}
	}

	id := &auth.Identity{Subject: subject}
	if name, _ := claims[a.cfg.NameClaim].(string); name != "" {
		id.Metadata = map[string]string{"name": name}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}

// token extracts the raw JWT. found is false when the request does not
// attempt bearer or cookie authentication at all.
func (a *Authenticator) token(r *http.Request) (raw string, found bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, rest, _ := strings.Cut(h, " ")
		if !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		return strings.TrimSpace(rest), true
	}
	if a.cfg.CookieName != "" {
		if c, err := r.Cookie(a.cfg.CookieName); err == nil {
			return c.Value, true
		}
	}
	return "", false
}
