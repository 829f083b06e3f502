package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/aichat/pkg/auth"
)

var rsaKey = func() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return k
}()

const kid = "k1"

// serveJWKS publishes rsaKey under kid and counts fetches.
func serveJWKS(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		pub := rsaKey.PublicKey
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{
				{"kty": "EC", "kid": "ignored"},
				{
					"kty": "RSA",
					"kid": kid,
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &fetches
}

func rsaToken(t *testing.T, keyID string, claims jwtlib.MapClaims) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID
	s, err := tok.SignedString(rsaKey)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func hmacToken(t *testing.T, secret string, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func claims(extra jwtlib.MapClaims) jwtlib.MapClaims {
	c := jwtlib.MapClaims{
		"sub": "alice",
		"iss": "https://sso.example.com",
		"aud": "aichat",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		c[k] = v
	}
	return c
}

func bearer(token string) *http.Request {
	r := httptest.NewRequest("POST", "/chat/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func mustNew(t *testing.T, cfg Config) *Authenticator {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_KeySourceRequired(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without key source: expected error")
	}
	if _, err := New(Config{JWKSURL: "http://x", Secret: []byte("s")}); err == nil {
		t.Error("New with both key sources: expected error")
	}
}

func TestJWKS_ValidToken(t *testing.T) {
	srv, _ := serveJWKS(t)
	a := mustNew(t, Config{JWKSURL: srv.URL, Issuer: "https://sso.example.com", Audience: "aichat"})

	res := a.Authenticate(context.Background(), bearer(rsaToken(t, kid, claims(jwtlib.MapClaims{"name": "Alice A."}))))
	if res.Decision != auth.Yes {
		t.Fatalf("decision = %v, err = %v", res.Decision, res.Err)
	}
	if res.Identity.Subject != "alice" {
		t.Errorf("subject = %q, want alice", res.Identity.Subject)
	}
	if got := res.Identity.Metadata["name"]; got != "Alice A." {
		t.Errorf("name = %q, want Alice A.", got)
	}
}

func TestJWKS_Rejections(t *testing.T) {
	srv, _ := serveJWKS(t)
	a := mustNew(t, Config{JWKSURL: srv.URL, Issuer: "https://sso.example.com", Audience: "aichat"})

	tests := []struct {
		name  string
		token string
	}{
		{"expired", rsaToken(t, kid, claims(jwtlib.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}))},
		{"wrong issuer", rsaToken(t, kid, claims(jwtlib.MapClaims{"iss": "https://evil.example.com"}))},
		{"wrong audience", rsaToken(t, kid, claims(jwtlib.MapClaims{"aud": "other"}))},
		{"unknown kid", rsaToken(t, "k2", claims(nil))},
		{"no kid", rsaToken(t, "", claims(nil))},
		{"missing subject", rsaToken(t, kid, claims(jwtlib.MapClaims{"sub": ""}))},
		{"hmac token", hmacToken(t, "s3cret", claims(nil))},
		{"garbage", "not.a.jwt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Authenticate(context.Background(), bearer(tt.token))
			if res.Decision != auth.No {
				t.Fatalf("decision = %v, want No", res.Decision)
			}
			if !errors.Is(res.Err, auth.ErrUnauthenticated) {
				t.Errorf("err = %v, want ErrUnauthenticated", res.Err)
			}
		})
	}
}

func TestJWKS_LeewayAllowsSmallSkew(t *testing.T) {
	srv, _ := serveJWKS(t)
	a := mustNew(t, Config{JWKSURL: srv.URL})

	tok := rsaToken(t, kid, claims(jwtlib.MapClaims{"exp": time.Now().Add(-10 * time.Second).Unix()}))
	if res := a.Authenticate(context.Background(), bearer(tok)); res.Decision != auth.Yes {
		t.Errorf("decision = %v, err = %v; want Yes within leeway", res.Decision, res.Err)
	}
}

func TestJWKS_FetchedOnceAndRefreshBounded(t *testing.T) {
	srv, fetches := serveJWKS(t)
	a := mustNew(t, Config{JWKSURL: srv.URL})
	keys := a.keys.(*jwksKeys)
	now := time.Now()
	keys.now = func() time.Time { return now }

	good := rsaToken(t, kid, claims(nil))
	for i := 0; i < 5; i++ {
		if res := a.Authenticate(context.Background(), bearer(good)); res.Decision != auth.Yes {
			t.Fatalf("attempt %d: decision = %v, err = %v", i, res.Decision, res.Err)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("fetches after known kid = %d, want 1", n)
	}

	unknown := rsaToken(t, "rotated", claims(nil))
	a.Authenticate(context.Background(), bearer(unknown))
	a.Authenticate(context.Background(), bearer(unknown))
	if n := fetches.Load(); n != 1 {
		t.Errorf("fetches within refresh interval = %d, want 1", n)
	}

	now = now.Add(2 * time.Minute)
	a.Authenticate(context.Background(), bearer(unknown))
	if n := fetches.Load(); n != 2 {
		t.Errorf("fetches after refresh interval = %d, want 2", n)
	}
}

func TestJWKS_EndpointDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	a := mustNew(t, Config{JWKSURL: srv.URL})

	if res := a.Authenticate(context.Background(), bearer(rsaToken(t, kid, claims(nil)))); res.Decision != auth.No {
		t.Errorf("decision = %v, want No", res.Decision)
	}
}

func TestSecret_ValidAndWrongSecret(t *testing.T) {
	a := mustNew(t, Config{Secret: []byte("s3cret")})

	if res := a.Authenticate(context.Background(), bearer(hmacToken(t, "s3cret", claims(nil)))); res.Decision != auth.Yes {
		t.Errorf("valid HS256: decision = %v, err = %v", res.Decision, res.Err)
	}
	if res := a.Authenticate(context.Background(), bearer(hmacToken(t, "other", claims(nil)))); res.Decision != auth.No {
		t.Errorf("wrong secret: decision = %v, want No", res.Decision)
	}
	if res := a.Authenticate(context.Background(), bearer(rsaToken(t, kid, claims(nil)))); res.Decision != auth.No {
		t.Errorf("RS256 against secret: decision = %v, want No", res.Decision)
	}
}

func TestAuthenticate_TokenSources(t *testing.T) {
	a := mustNew(t, Config{Secret: []byte("s3cret"), CookieName: "sso_token"})
	tok := hmacToken(t, "s3cret", claims(nil))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		expect auth.AuthDecision
	}{
		{"no credentials", func(r *http.Request) {}, auth.Abstain},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcjpwYXNz") }, auth.Abstain},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+tok) }, auth.Yes},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sso_token", Value: tok}) }, auth.Yes},
		{"other cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "unrelated", Value: tok}) }, auth.Abstain},
		{"bad cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sso_token", Value: "junk"}) }, auth.No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/chat/", nil)
			tt.setup(r)
			if res := a.Authenticate(context.Background(), r); res.Decision != tt.expect {
				t.Errorf("decision = %v, want %v (err = %v)", res.Decision, tt.expect, res.Err)
			}
		})
	}
}

func TestAuthenticate_CustomClaims(t *testing.T) {
	a := mustNew(t, Config{Secret: []byte("s3cret"), UserClaim: "email", NameClaim: "display_name"})
	tok := hmacToken(t, "s3cret", claims(jwtlib.MapClaims{
		"email":        "alice@example.com",
		"display_name": "Alice",
	}))

	res := a.Authenticate(context.Background(), bearer(tok))
	if res.Decision != auth.Yes {
		t.Fatalf("decision = %v, err = %v", res.Decision, res.Err)
	}
	if res.Identity.Subject != "alice@example.com" {
		t.Errorf("subject = %q", res.Identity.Subject)
	}
	if res.Identity.Metadata["name"] != "Alice" {
		t.Errorf("name = %q", res.Identity.Metadata["name"])
	}
}
