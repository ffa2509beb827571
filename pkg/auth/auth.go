// Package auth provides the client-side bearer-token attachment used by the
// orchestrator's stream client, and the server-side JWT/JWKS validation used
// by the streaming service (spec section 4.6).
package auth

import (
	"context"
	"net/http"
)

// Provider defines the interface for attaching authentication to an
// outbound request or stream dial.
type Provider interface {
	// Authenticate adds authentication to the HTTP request (used for the
	// websocket upgrade request that opens a Schedule stream).
	Authenticate(ctx context.Context, req *http.Request) error

	// Type returns the authentication type.
	Type() string
}

// TokenAuth attaches a bearer token to outbound requests.
type TokenAuth struct {
	token string
}

// NewTokenAuth creates a new bearer-token authentication provider.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

func (t *TokenAuth) Authenticate(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return nil
}

func (t *TokenAuth) Type() string {
	return "bearer"
}

// NoAuth attaches no authentication; only useful against a dev server that
// has authentication disabled.
type NoAuth struct{}

func NewNoAuth() *NoAuth {
	return &NoAuth{}
}

func (n *NoAuth) Authenticate(ctx context.Context, req *http.Request) error {
	return nil
}

func (n *NoAuth) Type() string {
	return "none"
}
