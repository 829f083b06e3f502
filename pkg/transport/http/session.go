package http

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/observability"
)

// sessionIssuer is the iss claim of session cookies.
const sessionIssuer = "aichat"

// SessionConfig configures the session cookie.
type SessionConfig struct {
	CookieName string
	Secure     bool
	TTL        time.Duration

	// SigningKey signs the HS256 cookie token. When empty a random key is
	// generated, so sessions do not survive a restart.
	SigningKey []byte
}

// Sessions issues and verifies the signed cookie that identifies a
// browser session. The cookie carries a JWT whose subject is the session
// ID under which the conversation is stored.
type Sessions struct {
	cfg SessionConfig
	now func() time.Time
}

// NewSessions creates a cookie session manager.
func NewSessions(cfg SessionConfig) (*Sessions, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = "aichat_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 14 * 24 * time.Hour
	}
	if len(cfg.SigningKey) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating session signing key: %w", err)
		}
		cfg.SigningKey = key
		slog.Warn("no session signing key configured, sessions will not survive a restart")
	}
	return &Sessions{cfg: cfg, now: time.Now}, nil
}

// Middleware resolves the session ID for every request and stores it in
// the context. A missing, expired or tampered cookie starts a new
// session and sets a fresh cookie on the response.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.sessionFromRequest(r)
		if err != nil {
			if !errors.Is(err, http.ErrNoCookie) {
				debug.Log("session", "discarding session cookie", "error", err)
			}
			id, err = s.issue(w)
			if err != nil {
				slog.Error("issuing session cookie", "error", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), id)))
	})
}

func (s *Sessions) sessionFromRequest(r *http.Request) (string, error) {
	c, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		return "", err
	}
	return s.Verify(c.Value)
}

// Verify parses a cookie token and returns its session ID.
func (s *Sessions) Verify(token string) (string, error) {
	claims := &jwtlib.RegisteredClaims{}
	_, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return s.cfg.SigningKey, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(sessionIssuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	return claims.Subject, nil
}

// Sign returns a cookie token for sessionID.
func (s *Sessions) Sign(sessionID string) (string, error) {
	now := s.now()
	claims := jwtlib.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionID,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(s.cfg.TTL)),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
}

func (s *Sessions) issue(w http.ResponseWriter) (string, error) {
	id := uuid.NewString()
	token, err := s.Sign(id)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	observability.SessionsIssuedTotal.Inc()
	debug.Log("session", "new session", "session", id)
	return id, nil
}

type sessionKey struct{}

// ContextWithSession returns a context carrying sessionID.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session ID set by Sessions.Middleware.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
