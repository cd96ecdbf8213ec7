// Package session provides credential validation for gated requests.
//
// Credentials travel as an access/refresh token pair. Validation may rotate
// the pair as a side effect; callers must persist rotated credentials onto
// the outgoing response on every decision branch.
package session

import (
	"context"
	"errors"
)

var (
	// ErrNoSession indicates the credentials do not resolve to a session.
	ErrNoSession = errors.New("session: no session")
	// ErrProvider indicates the provider itself failed (misconfiguration,
	// transport). The gate downgrades this to "no session" but logs it.
	ErrProvider = errors.New("session: provider failure")
)

// Credentials is the opaque token material carried by the client.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no token material is present at all.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Session is a validated identity for the current request.
type Session struct {
	UserID string

	// Refreshed is non-nil when validation rotated the credential pair.
	Refreshed *Credentials
}

// Provider validates cached credentials into a session.
type Provider interface {
	Validate(ctx context.Context, creds Credentials) (Session, error)
}
