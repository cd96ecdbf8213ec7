package session

import (
	"net/http"
	"strings"
)

// Canonical cookie names for the credential pair.
const (
	AccessCookie  = "cd_access"
	RefreshCookie = "cd_refresh"
)

// ReadCredentials extracts the credential pair from request cookies.
func ReadCredentials(r *http.Request) Credentials {
	if r == nil {
		return Credentials{}
	}
	return Credentials{
		AccessToken:  cookieValue(r, AccessCookie),
		RefreshToken: cookieValue(r, RefreshCookie),
	}
}

// WriteCredentials sets the credential cookies on the outgoing response.
func WriteCredentials(w http.ResponseWriter, r *http.Request, creds Credentials) {
	if w == nil {
		return
	}
	secure := isHTTPS(r)
	http.SetCookie(w, credentialCookie(AccessCookie, creds.AccessToken, secure))
	http.SetCookie(w, credentialCookie(RefreshCookie, creds.RefreshToken, secure))
}

// ClearCredentials expires both credential cookies.
func ClearCredentials(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	secure := isHTTPS(r)
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := credentialCookie(name, "", secure)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func credentialCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    strings.TrimSpace(value),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func isHTTPS(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
