package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"crewdeck.org/internal/audit"
	"crewdeck.org/internal/membership"
	"crewdeck.org/internal/session"
)

// handleSessionIssue serves POST /api/auth/session (password login) and
// DELETE /api/auth/session (logout). The gate excludes this path; it manages
// credentials directly.
func (a *API) handleSessionIssue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.sessionCreate(w, r)
	case http.MethodDelete:
		session.ClearCredentials(w, r)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) sessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, membership.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	creds, err := a.sessions.IssuePair(user.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	session.WriteCredentials(w, r, creds)
	_ = audit.LogEvent(r.Context(), "auth.session.issued", map[string]any{
		"user_id": user.ID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id":   user.ID,
		"issued_at": nowRFC3339(),
	})
}
