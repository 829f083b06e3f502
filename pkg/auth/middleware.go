package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/observability"
	"github.com/rhuss/aichat/pkg/transport"
)

// DefaultBypassEndpoints are served without authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware gates requests with chain. Paths in bypass skip the chain.
// Rejected requests get 403 with a forbidden error body; admitted ones
// carry their Identity in the context.
func Middleware(chain *AuthChain, bypass []string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(bypass))
	for _, p := range bypass {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			switch {
			case result.Decision == Yes:
				slog.Debug("request admitted", "identity", result.Identity, "authenticator", result.Authenticator, "path", r.URL.Path)
				next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))

			case errors.Is(result.Err, ErrInvalidIdentity):
				slog.Error("authenticator misbehaved", "authenticator", result.Authenticator, "error", result.Err)
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))

			default:
				slog.Warn("request rejected",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"authenticator", result.Authenticator,
					"error", result.Err,
				)
				observability.AuthRejectedTotal.Inc()
				transport.WriteAPIError(w, api.NewForbiddenError("login required"))
			}
		})
	}
}
