package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/observability"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, []string{"/healthz"})(okHandler())

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("bypass endpoint: status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_LoginRequired_Forbidden(t *testing.T) {
	handler := Middleware(NewChain(true), DefaultBypassEndpoints)(okHandler())

	before := testutil.ToFloat64(observability.AuthRejectedTotal)

	req := httptest.NewRequest("POST", "/chat/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("no credentials: status = %d, want 403", rec.Code)
	}

	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error == nil || body.Error.Type != api.ErrorTypeForbidden {
		t.Errorf("error body = %+v, want forbidden", body.Error)
	}

	if d := testutil.ToFloat64(observability.AuthRejectedTotal) - before; d != 1 {
		t.Errorf("rejected counter delta = %v, want 1", d)
	}
}

func TestMiddleware_InvalidCredentials_Forbidden(t *testing.T) {
	chain := NewChain(true, no())
	handler := Middleware(chain, DefaultBypassEndpoints)(okHandler())

	req := httptest.NewRequest("GET", "/chat/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("invalid credentials: status = %d, want 403", rec.Code)
	}
}

func TestMiddleware_ValidAuth_Passes(t *testing.T) {
	chain := NewChain(true, yes("alice"))

	handler := Middleware(chain, DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || id.Subject != "alice" {
			t.Error("expected identity 'alice' in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/chat/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("valid auth: status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_LoginOptional_AdmitsAnonymous(t *testing.T) {
	handler := Middleware(NewChain(false), DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFromContext(r.Context()).IsAnonymous() {
			t.Error("expected anonymous identity")
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/chat/", "/chat/clear/"} {
		req := httptest.NewRequest("POST", path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMiddleware_EmptySubject_ServerError(t *testing.T) {
	chain := NewChain(true, &vote{result: AuthResult{Decision: Yes, Identity: &Identity{}}})
	handler := Middleware(chain, nil)(okHandler())

	req := httptest.NewRequest("POST", "/chat/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("empty subject: status = %d, want 500", rec.Code)
	}
}

var _ Named = (*namedVote)(nil)
