package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rhuss/aichat/pkg/debug"
)

// AuthDecision is an authenticator's vote on a request.
type AuthDecision int

const (
	// Yes accepts the request with the returned identity.
	Yes AuthDecision = iota
	// No rejects the request; later authenticators are not consulted.
	No
	// Abstain passes the request to the next authenticator, typically
	// because the credential type is not one it handles.
	Abstain
)

func (d AuthDecision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	}
	return "unknown"
}

// AuthResult is the outcome of one authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set when Decision is Yes
	Err      error     // set when Decision is No

	// Authenticator names the voter that decided. The chain fills it in
	// for authenticators implementing Named, and leaves "default" when
	// every voter abstained.
	Authenticator string
}

// Identity is the caller a request was admitted as.
type Identity struct {
	Subject  string
	Scopes   []string
	Metadata map[string]string
}

// Anonymous is the subject of requests admitted without credentials.
const Anonymous = "anonymous"

// IsAnonymous reports whether id is nil or the anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Subject == Anonymous
}

// LogValue implements slog.LogValuer. Metadata is included, scopes are not.
func (id *Identity) LogValue() slog.Value {
	if id == nil {
		return slog.StringValue(Anonymous)
	}
	attrs := make([]slog.Attr, 0, 1+len(id.Metadata))
	attrs = append(attrs, slog.String("subject", id.Subject))
	for k, v := range id.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	return slog.GroupValue(attrs...)
}

// Authenticator votes on the credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Named is implemented by authenticators that report a name for logs.
type Named interface {
	Name() string
}

var (
	// ErrUnauthenticated is returned when no credential was accepted.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when credentials are valid but not allowed.
	ErrForbidden = errors.New("access denied")
	// ErrInvalidIdentity is returned when an authenticator says Yes
	// without a usable identity.
	ErrInvalidIdentity = errors.New("authenticator returned no subject")
)

// AuthChain asks its authenticators in order. The first Yes or No wins;
// DefaultDecision applies when all abstain.
type AuthChain struct {
	Authenticators  []Authenticator
	DefaultDecision AuthDecision
}

// NewChain returns a chain over authenticators. With loginRequired the
// chain rejects requests no authenticator accepts; otherwise they are
// admitted as Anonymous.
func NewChain(loginRequired bool, authenticators ...Authenticator) *AuthChain {
	c := &AuthChain{Authenticators: authenticators, DefaultDecision: Yes}
	if loginRequired {
		c.DefaultDecision = No
	}
	return c
}

// Authenticate runs the chain against r.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for i, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		name := authenticatorName(authn, i)
		debug.Log("auth", "vote", "authenticator", name, "decision", result.Decision.String(), "path", r.URL.Path)

		switch result.Decision {
		case Abstain:
			continue
		case Yes:
			if result.Identity == nil || result.Identity.Subject == "" {
				return AuthResult{Decision: No, Err: ErrInvalidIdentity, Authenticator: name}
			}
		}
		result.Authenticator = name
		return result
	}

	if c.DefaultDecision == Yes {
		return AuthResult{Decision: Yes, Identity: &Identity{Subject: Anonymous}, Authenticator: "default"}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated, Authenticator: "default"}
}

func authenticatorName(a Authenticator, i int) string {
	if n, ok := a.(Named); ok {
		return n.Name()
	}
	return "#" + strconv.Itoa(i)
}
