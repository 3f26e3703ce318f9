package httpapi

import (
	"net/http"

	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/prefs"
)

type permissionsResponse struct {
	Role        auth.Role                          `json:"role"`
	Label       string                             `json:"label"`
	Color       string                             `json:"color"`
	LandingPath string                             `json:"landing_path"`
	Resources   []auth.Resource                    `json:"resources"`
	Grants      map[auth.Resource][]auth.Action    `json:"grants"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, principal.User)
}

// handleMyPermissions answers the dashboard's "what can I see" question in
// one call: the role descriptor plus the viewable resources.
func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	role := principal.User.Role
	desc, found := auth.Describe(role)
	if !found {
		writeError(w, r, http.StatusInternalServerError, "unknown role")
		return
	}

	grants := make(map[auth.Resource][]auth.Action)
	for _, resource := range auth.AccessibleResources(role) {
		var actions []auth.Action
		for _, action := range []auth.Action{auth.ActionView, auth.ActionCreate, auth.ActionUpdate, auth.ActionDelete} {
			if auth.CanPerform(role, resource, action) {
				actions = append(actions, action)
			}
		}
		grants[resource] = actions
	}

	writeJSON(w, http.StatusOK, permissionsResponse{
		Role:        role,
		Label:       desc.Label,
		Color:       desc.Color,
		LandingPath: desc.LandingPath,
		Resources:   auth.AccessibleResources(role),
		Grants:      grants,
	})
}

func (a *API) handleMyTheme(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	if a.prefs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "preferences disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		theme, err := a.prefs.Theme(r.Context(), principal.User.ID)
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "preferences unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"theme": theme})
	case http.MethodPut:
		var req themeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.prefs.SetTheme(r.Context(), principal.User.ID, prefs.Theme(req.Theme)); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"theme": req.Theme})
	case http.MethodDelete:
		if err := a.prefs.Reset(r.Context(), principal.User.ID); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "preferences unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"theme": prefs.DefaultTheme})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleRoles lists every role descriptor. Any authenticated user may read
// them; the dashboard uses labels and colors for display.
func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	descriptors := make([]auth.RoleDescriptor, 0, len(auth.Roles()))
	for _, role := range auth.Roles() {
		if desc, found := auth.Describe(role); found {
			descriptors = append(descriptors, desc)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": descriptors})
}
