// Package gate intercepts every inbound request and decides between
// continuing to the next handler and redirecting through the auth flow.
package gate

import "strings"

// Class is the access classification of a request path.
type Class int

const (
	// Public paths are reachable without a session, including during
	// session provider outages.
	Public Class = iota
	// Protected paths require a validated session.
	Protected
)

// Default rule tables. A path is public when it matches an exact entry, or
// when it starts with a prefix entry followed by "/" and at least one more
// character. "/profile/abc" is a public detail route while "/profile/" and
// the bare collection stay protected.
var (
	PublicPaths = []string{
		"/",
		"/login",
		"/create-account",
		"/forgot-password",
		"/auth/callback",
		"/auth/reset-password",
		"/auth/auth-error",
	}
	PublicPrefixes = []string{
		"/profile",
	}
)

// Classifier maps request paths to an access class. It is pure: no I/O, no
// normalization, total over any input string.
type Classifier struct {
	exact    []string
	prefixes []string
}

// NewClassifier builds a classifier from explicit rule tables.
func NewClassifier(exact, prefixes []string) *Classifier {
	return &Classifier{
		exact:    append([]string(nil), exact...),
		prefixes: append([]string(nil), prefixes...),
	}
}

// DefaultClassifier returns a classifier over the default rule tables.
func DefaultClassifier() *Classifier {
	return NewClassifier(PublicPaths, PublicPrefixes)
}

// Classify returns the access class for a normalized request path (no query
// string). Unmatched paths default to Protected.
func (c *Classifier) Classify(path string) Class {
	for _, p := range c.exact {
		if path == p {
			return Public
		}
	}
	for _, prefix := range c.prefixes {
		// The prefix must be followed by a separator and at least one
		// character; bare or trailing-slash forms stay protected.
		if len(path) > len(prefix)+1 && strings.HasPrefix(path, prefix) && path[len(prefix)] == '/' {
			return Public
		}
	}
	return Protected
}
