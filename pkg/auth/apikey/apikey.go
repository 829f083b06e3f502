// Package apikey authenticates users by static API keys from the
// configuration. Keys are held only as SHA-256 digests.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/aichat/pkg/auth"
)

// HeaderName is the alternative to a bearer Authorization header.
const HeaderName = "X-API-Key"

// Key is one configured key and the subject it authenticates as.
type Key struct {
	Secret  string
	Subject string
}

type entry struct {
	digest  [sha256.Size]byte
	subject string
	id      string
}

// Authenticator checks the presented key against the configured set.
type Authenticator struct {
	entries []entry
}

// New hashes keys. Empty secrets or subjects and duplicate secrets are
// rejected.
func New(keys []Key) (*Authenticator, error) {
	a := &Authenticator{}
	seen := make(map[[sha256.Size]byte]bool, len(keys))
	for i, k := range keys {
		if k.Secret == "" {
			return nil, fmt.Errorf("api key %d: empty key", i)
		}
		if k.Subject == "" {
			return nil, fmt.Errorf("api key %d: empty subject", i)
		}
		d := sha256.Sum256([]byte(k.Secret))
		if seen[d] {
			return nil, fmt.Errorf("api key %d: duplicate key", i)
		}
		seen[d] = true
		a.entries = append(a.entries, entry{digest: d, subject: k.Subject, id: hex.EncodeToString(d[:4])})
	}
	if len(a.entries) == 0 {
		return nil, errors.New("at least one api key is required")
	}
	return a, nil
}

// Name implements auth.Named.
func (a *Authenticator) Name() string { return "apikey" }

// Authenticate abstains when neither a bearer token nor an X-API-Key
// header is present.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	presented, ok := credential(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	d := sha256.Sum256([]byte(presented))
	var match *entry
	// Every entry is compared so timing does not depend on the position
	// of the match.
	for i := range a.entries {
		if subtle.ConstantTimeCompare(d[:], a.entries[i].digest[:]) == 1 {
			match = &a.entries[i]
		}
	}
	if presented == "" || match == nil {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	return auth.AuthResult{Decision: auth.Yes, Identity: &auth.Identity{
		Subject:  match.subject,
		Metadata: map[string]string{"key_id": match.id},
	}}
}

func credential(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, rest, _ := strings.Cut(h, " ")
		if strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest), true
		}
	}
	if v, ok := r.Header[http.CanonicalHeaderKey(HeaderName)]; ok && len(v) > 0 {
		return strings.TrimSpace(v[0]), true
	}
	return "", false
}
