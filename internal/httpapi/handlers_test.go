package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"crewdeck.org/internal/gate"
	"crewdeck.org/internal/membership"
	"crewdeck.org/internal/session"
)

type testEnv struct {
	t        *testing.T
	server   *httptest.Server
	store    *membership.InMemory
	sessions *session.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sessions, err := session.NewService("test-secret")
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}
	store := membership.NewInMemory()
	g := gate.New(sessions, gate.WithExclusions(GateExclusions...))
	api := New(ReadyProbe{}, "test", sessions, g, store)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, server: srv, store: store, sessions: sessions}
}

func (e *testEnv) seedUser(id, email, password string) {
	e.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		e.t.Fatalf("bcrypt: %v", err)
	}
	u := membership.User{ID: id, Email: email, Name: id, PasswordHash: string(hash)}
	if err := e.store.CreateUser(context.Background(), &u); err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
}

func (e *testEnv) seedProjectWithInvite(owner, invitee string) (projectID, inviteID string) {
	e.t.Helper()
	p := membership.Project{ID: "proj-1", Name: "Test Project", CreatedBy: owner}
	if err := e.store.CreateProject(context.Background(), &p); err != nil {
		e.t.Fatalf("seed project: %v", err)
	}
	inv := membership.Invitation{ID: "inv-1", ProjectID: p.ID, InvitedUserID: invitee, Role: membership.RoleWrite}
	if err := e.store.CreateInvitation(context.Background(), &inv); err != nil {
		e.t.Fatalf("seed invite: %v", err)
	}
	return p.ID, inv.ID
}

// do performs a request without following redirects, attaching session
// cookies for userID when non-empty.
func (e *testEnv) do(method, path, userID string, body []byte) *http.Response {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		creds, err := e.sessions.IssuePair(userID)
		if err != nil {
			e.t.Fatalf("issue pair: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: creds.AccessToken})
		req.AddCookie(&http.Cookie{Name: session.RefreshCookie, Value: creds.RefreshToken})
	}
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestProtectedPageRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/settings", "", nil)
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login?next=%2Fsettings" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestPublicPageServedWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/", "/forgot-password", "/profile/user-1"} {
		resp := env.do(http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestAuthedUserBouncedFromLogin(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/login?next=%2Fsettings", "user-1", nil)
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/settings" {
		t.Fatalf("Location = %q, want /settings", loc)
	}
}

func TestInviteAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner-1", "owner@example.com", "pw")
	env.seedUser("guest-1", "guest@example.com", "pw")
	projectID, inviteID := env.seedProjectWithInvite("owner-1", "guest-1")

	resp := env.do(http.MethodGet, "/invites/"+inviteID, "guest-1", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/projects/"+projectID {
		t.Fatalf("Location = %q, want /projects/%s", loc, projectID)
	}

	inv, err := env.store.GetInvitation(context.Background(), inviteID)
	if err != nil {
		t.Fatalf("GetInvitation: %v", err)
	}
	if inv.Status != membership.StatusAccepted {
		t.Fatalf("Status = %q, want accepted", inv.Status)
	}

	// Revisiting the link lands on the project again.
	resp = env.do(http.MethodGet, "/invites/"+inviteID, "guest-1", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("revisit status = %d, want 303", resp.StatusCode)
	}
}

func TestInviteRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/invites/inv-1", "", nil)
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login?next=%2Finvites%2Finv-1" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestInviteHidesForeignAndProcessedRecords(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner-1", "owner@example.com", "pw")
	env.seedUser("guest-1", "guest@example.com", "pw")
	_, inviteID := env.seedProjectWithInvite("owner-1", "guest-1")

	// Wrong owner.
	resp := env.do(http.MethodGet, "/invites/"+inviteID, "owner-1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign invite status = %d, want 404", resp.StatusCode)
	}

	// Declined record.
	env.store.SetStatus(inviteID, membership.StatusDeclined)
	resp = env.do(http.MethodGet, "/invites/"+inviteID, "guest-1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("declined invite status = %d, want 404", resp.StatusCode)
	}

	// Missing record.
	resp = env.do(http.MethodGet, "/invites/missing", "guest-1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing invite status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionLoginSetsCookies(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("user-1", "dana@example.com", "hunter2")

	body, _ := json.Marshal(map[string]string{"email": "Dana@Example.com", "password": "hunter2"})
	resp := env.do(http.MethodPost, "/api/auth/session", "", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = c.Value != ""
	}
	if !names[session.AccessCookie] || !names[session.RefreshCookie] {
		t.Fatalf("credential cookies not set: %v", names)
	}
}

func TestSessionLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("user-1", "dana@example.com", "hunter2")

	body, _ := json.Marshal(map[string]string{"email": "dana@example.com", "password": "wrong"})
	resp := env.do(http.MethodPost, "/api/auth/session", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestExpiredAccessRotatesCookiesOnProtectedPage(t *testing.T) {
	sessions, err := session.NewService("test-secret", session.WithAccessTTL(time.Millisecond))
	if err != nil {
		t.Fatalf("session.NewService: %v", err)
	}
	store := membership.NewInMemory()
	g := gate.New(sessions, gate.WithExclusions(GateExclusions...))
	api := New(ReadyProbe{}, "test", sessions, g, store)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	creds, err := sessions.IssuePair("user-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/settings", nil)
	req.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: creds.AccessToken})
	req.AddCookie(&http.Cookie{Name: session.RefreshCookie, Value: creds.RefreshToken})
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	rotated := map[string]string{}
	for _, c := range resp.Cookies() {
		rotated[c.Name] = c.Value
	}
	if rotated[session.AccessCookie] == "" || rotated[session.AccessCookie] == creds.AccessToken {
		t.Fatalf("access cookie not rotated: %v", rotated)
	}
}

func TestProjectInviteCreation(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner-1", "owner@example.com", "pw")
	p := membership.Project{ID: "proj-1", Name: "Test", CreatedBy: "owner-1"}
	if err := env.store.CreateProject(context.Background(), &p); err != nil {
		t.Fatalf("seed project: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"user_id": "guest-1", "role": "read"})
	resp := env.do(http.MethodPost, "/api/projects/proj-1/invites", "owner-1", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created membership.Invitation
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != membership.StatusInvited {
		t.Fatalf("unexpected invitation: %+v", created)
	}

	// Non-admin member cannot invite.
	env.seedUser("guest-2", "g2@example.com", "pw")
	resp = env.do(http.MethodPost, "/api/projects/proj-1/invites", "guest-2", body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	// Invalid role rejected.
	bad, _ := json.Marshal(map[string]string{"user_id": "guest-1", "role": "owner"})
	resp = env.do(http.MethodPost, "/api/projects/proj-1/invites", "owner-1", bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProjectListingScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("owner-1", "owner@example.com", "pw")
	env.seedUser("guest-1", "guest@example.com", "pw")
	projectID, inviteID := env.seedProjectWithInvite("owner-1", "guest-1")

	// Before acceptance the guest sees nothing.
	resp := env.do(http.MethodGet, "/projects", "guest-1", nil)
	var listing struct {
		Projects []membership.Project `json:"projects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Projects) != 0 {
		t.Fatalf("guest sees %d projects before accepting", len(listing.Projects))
	}

	env.do(http.MethodGet, "/invites/"+inviteID, "guest-1", nil)

	resp = env.do(http.MethodGet, "/projects", "guest-1", nil)
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Projects) != 1 || listing.Projects[0].ID != projectID {
		t.Fatalf("guest listing after accept: %+v", listing.Projects)
	}
}
