package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCredentialCookieRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCredentials(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		Credentials{AccessToken: "a-token", RefreshToken: "r-token"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	got := ReadCredentials(req)
	if got.AccessToken != "a-token" || got.RefreshToken != "r-token" {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestCredentialCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCredentials(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		Credentials{AccessToken: "a", RefreshToken: "r"})

	for _, c := range rec.Result().Cookies() {
		if !c.HttpOnly {
			t.Errorf("cookie %s not HttpOnly", c.Name)
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Errorf("cookie %s SameSite = %v, want Lax", c.Name, c.SameSite)
		}
		if c.Secure {
			t.Errorf("cookie %s Secure over plain HTTP", c.Name)
		}
		if c.Path != "/" {
			t.Errorf("cookie %s Path = %q, want /", c.Name, c.Path)
		}
	}
}

func TestCredentialCookieSecureBehindProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	WriteCredentials(rec, req, Credentials{AccessToken: "a", RefreshToken: "r"})

	for _, c := range rec.Result().Cookies() {
		if !c.Secure {
			t.Errorf("cookie %s not Secure behind TLS-terminating proxy", c.Name)
		}
	}
}

func TestClearCredentials(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearCredentials(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge != -1 || c.Value != "" {
			t.Errorf("cookie %s not expired: MaxAge=%d Value=%q", c.Name, c.MaxAge, c.Value)
		}
	}
}
