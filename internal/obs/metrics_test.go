package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/invites/01ABC":              "/invites/:id",
		"/invites/01ABC?role=write":   "/invites/:id",
		"/projects/p1":                "/projects/:id",
		"/projects/p1/members":        "/projects/:id/members",
		"/profile/u1":                 "/profile/:id",
		"/api/projects/p1/invites":    "/api/projects/:id/invites",
		"/api/auth/session":           "/api/auth/session",
		"/settings":                   "/settings",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
