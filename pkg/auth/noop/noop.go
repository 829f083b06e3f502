// Package noop admits every request as the anonymous identity. It is the
// only authenticator installed when login is optional.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/aichat/pkg/auth"
)

// Authenticator votes Yes for every request.
type Authenticator struct{}

// Name implements auth.Named.
func (*Authenticator) Name() string { return "noop" }

func (*Authenticator) Authenticate(context.Context, *http.Request) auth.AuthResult {
	return auth.AuthResult{Decision: auth.Yes, Identity: &auth.Identity{Subject: auth.Anonymous}}
}
