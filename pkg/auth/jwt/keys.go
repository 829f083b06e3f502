package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rhuss/aichat/pkg/debug"
)

// keySource returns the verification key for a token's kid.
type keySource interface {
	key(ctx context.Context, kid string) (any, error)
}

// secretKey verifies every token with one shared HMAC secret.
type secretKey []byte

func (s secretKey) key(context.Context, string) (any, error) {
	return []byte(s), nil
}

// jwksKeys holds the RSA keys of a JWKS endpoint. The set is fetched on
// first use and refetched when a token names an unknown kid, at most once
// per minRefresh. Concurrent refreshes share one request.
type jwksKeys struct {
	url        string
	client     *http.Client
	minRefresh time.Duration
	now        func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func newJWKSKeys(url string, client *http.Client, minRefresh time.Duration) *jwksKeys {
	return &jwksKeys{url: url, client: client, minRefresh: minRefresh, now: time.Now}
}

func (j *jwksKeys) key(ctx context.Context, kid string) (any, error) {
	if kid == "" {
		return nil, errors.New("token has no kid header")
	}

	j.mu.RLock()
	k, ok := j.keys[kid]
	stale := j.keys == nil || j.now().Sub(j.fetchedAt) >= j.minRefresh
	j.mu.RUnlock()
	if ok {
		return k, nil
	}
	if !stale {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}

	if _, err, _ := j.group.Do("refresh", func() (any, error) {
		return nil, j.refresh(ctx)
	}); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if k, ok := j.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown kid %q", kid)
}

func (j *jwksKeys) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	j.mu.Lock()
	j.keys = keys
	j.fetchedAt = j.now()
	j.mu.Unlock()

	debug.Log("auth", "JWKS refreshed", "keys", len(keys))
	return nil
}

// jwk is one entry of a JSON Web Key Set.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() > 1<<31-1 {
		return nil, errors.New("RSA exponent too large")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
