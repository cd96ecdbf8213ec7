package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"crewdeck.org/internal/audit"
	"crewdeck.org/internal/membership"
	"crewdeck.org/internal/obs"
	"crewdeck.org/internal/session"
)

// handleInvite serves GET /invites/{id}: the invitation acceptance entry
// point reached from emailed invite links. The optional role query parameter
// is display-only and never trusted for the transition itself.
func (a *API) handleInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	inviteID := strings.TrimPrefix(r.URL.Path, "/invites/")
	if inviteID == "" || strings.Contains(inviteID, "/") {
		http.NotFound(w, r)
		return
	}

	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		next := r.URL.Path
		if r.URL.RawQuery != "" {
			next += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, "/login?next="+url.QueryEscape(next), http.StatusTemporaryRedirect)
		return
	}

	res, err := a.workflow.AcceptInvitation(r.Context(), inviteID, userID)
	switch {
	case err == nil:
		if res.Transitioned {
			obs.InviteTransition("accepted")
			_ = audit.LogEvent(r.Context(), "invite.accepted", map[string]any{
				"invitation_id": inviteID,
				"project_id":    res.ProjectID,
			})
		} else {
			obs.InviteTransition("idempotent")
		}
		http.Redirect(w, r, "/projects/"+res.ProjectID, http.StatusSeeOther)
	case errors.Is(err, membership.ErrNotFound),
		errors.Is(err, membership.ErrForbidden),
		errors.Is(err, membership.ErrInvalidState):
		// Existence, ownership, and processed-state failures are
		// indistinguishable to the visitor.
		obs.InviteTransition(transitionLabel(err))
		http.NotFound(w, r)
	default:
		obs.InviteTransition("error")
		obs.Logger().Printf(`{"level":"error","msg":"invite_accept_failed","request_id":%q,"invitation_id":%q,"error":%q}`,
			RequestIDFromContext(r.Context()), inviteID, err.Error())
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func transitionLabel(err error) string {
	switch {
	case errors.Is(err, membership.ErrNotFound):
		return "not_found"
	case errors.Is(err, membership.ErrForbidden):
		return "forbidden"
	case errors.Is(err, membership.ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}

// handleProjects serves GET /projects: the projects the current user created
// or has accepted membership in.
func (a *API) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	projects, err := a.store.ListProjectsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if projects == nil {
		projects = []membership.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleProjectResource serves GET /projects/{id} and
// GET /projects/{id}/members.
func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/projects/")
	projectID, sub, _ := strings.Cut(rest, "/")
	if projectID == "" {
		http.NotFound(w, r)
		return
	}
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	project, err := a.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, membership.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	allowed, err := a.userCanView(r, project, userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !allowed {
		http.NotFound(w, r)
		return
	}

	switch sub {
	case "":
		writeJSON(w, http.StatusOK, project)
	case "members":
		members, err := a.store.ListByProject(r.Context(), projectID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if members == nil {
			members = []membership.Invitation{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": members})
	default:
		http.NotFound(w, r)
	}
}

// userCanView reports whether userID created the project or holds an
// accepted membership in it.
func (a *API) userCanView(r *http.Request, project membership.Project, userID string) (bool, error) {
	if project.CreatedBy == userID {
		return true, nil
	}
	members, err := a.store.ListByProject(r.Context(), project.ID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.InvitedUserID == userID && m.Status == membership.StatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

// handleProjectAPI serves POST /api/projects/{id}/invites.
func (a *API) handleProjectAPI(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	projectID, sub, _ := strings.Cut(rest, "/")
	if projectID == "" || sub != "invites" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role := membership.Role(req.Role)
	if req.UserID == "" || !role.Valid() {
		writeError(w, r, http.StatusBadRequest, "user_id and a valid role are required")
		return
	}

	project, err := a.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, membership.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	allowed, err := a.userCanInvite(r, project, userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !allowed {
		writeError(w, r, http.StatusForbidden, "only project admins can invite")
		return
	}

	inv := membership.Invitation{
		ProjectID:     projectID,
		InvitedUserID: req.UserID,
		Role:          role,
		Status:        membership.StatusInvited,
	}
	if err := a.store.CreateInvitation(r.Context(), &inv); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "invite.created", map[string]any{
		"invitation_id": inv.ID,
		"project_id":    projectID,
		"invited_user":  req.UserID,
		"role":          string(role),
	})
	writeJSON(w, http.StatusCreated, inv)
}

// userCanInvite reports whether userID created the project or holds an
// accepted admin membership.
func (a *API) userCanInvite(r *http.Request, project membership.Project, userID string) (bool, error) {
	if project.CreatedBy == userID {
		return true, nil
	}
	members, err := a.store.ListByProject(r.Context(), project.ID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.InvitedUserID == userID && m.Status == membership.StatusAccepted && m.Role == membership.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}
