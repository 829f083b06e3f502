package apikey

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/aichat/pkg/auth"
)

func newTestAuth(t *testing.T) *Authenticator {
	t.Helper()
	a, err := New([]Key{
		{Secret: "sk-alice", Subject: "alice"},
		{Secret: "sk-bob", Subject: "bob"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name string
		keys []Key
	}{
		{"no keys", nil},
		{"empty secret", []Key{{Subject: "alice"}}},
		{"empty subject", []Key{{Secret: "sk"}}},
		{"duplicate", []Key{{Secret: "sk", Subject: "a"}, {Secret: "sk", Subject: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.keys); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuth(t)

	tests := []struct {
		name         string
		header       string
		value        string
		wantDecision auth.AuthDecision
		wantSubject  string
	}{
		{"bearer alice", "Authorization", "Bearer sk-alice", auth.Yes, "alice"},
		{"bearer bob", "Authorization", "Bearer sk-bob", auth.Yes, "bob"},
		{"lowercase scheme", "Authorization", "bearer sk-bob", auth.Yes, "bob"},
		{"x-api-key", HeaderName, "sk-alice", auth.Yes, "alice"},
		{"lowercase x-api-key", "x-api-key", "sk-bob", auth.Yes, "bob"},
		{"unknown key", "Authorization", "Bearer sk-mallory", auth.No, ""},
		{"empty bearer", "Authorization", "Bearer ", auth.No, ""},
		{"empty x-api-key", HeaderName, "", auth.No, ""},
		{"basic scheme", "Authorization", "Basic dXNlcjpwYXNz", auth.Abstain, ""},
		{"no header", "", "", auth.Abstain, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/chat/", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			res := a.Authenticate(context.Background(), r)
			if res.Decision != tt.wantDecision {
				t.Fatalf("Decision = %v, want %v", res.Decision, tt.wantDecision)
			}
			switch res.Decision {
			case auth.Yes:
				if res.Identity.Subject != tt.wantSubject {
					t.Errorf("Subject = %q, want %q", res.Identity.Subject, tt.wantSubject)
				}
				if len(res.Identity.Metadata["key_id"]) != 8 {
					t.Errorf("key_id = %q, want 8 hex chars", res.Identity.Metadata["key_id"])
				}
			case auth.No:
				if !errors.Is(res.Err, auth.ErrUnauthenticated) {
					t.Errorf("Err = %v, want ErrUnauthenticated", res.Err)
				}
			}
		})
	}
}

func TestAuthenticate_IdentityNotShared(t *testing.T) {
	a := newTestAuth(t)
	r := httptest.NewRequest("POST", "/chat/", nil)
	r.Header.Set("Authorization", "Bearer sk-alice")

	first := a.Authenticate(context.Background(), r)
	first.Identity.Subject = "tampered"
	first.Identity.Metadata["key_id"] = "tampered"

	second := a.Authenticate(context.Background(), r)
	if second.Identity.Subject != "alice" || second.Identity.Metadata["key_id"] == "tampered" {
		t.Errorf("identity leaked between requests: %+v", second.Identity)
	}
}
