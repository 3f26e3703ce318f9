package httpapi

import (
	"net/http"
	"strings"

	"sekolahku.id/internal/audit"
	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/stream"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Status   string `json:"status,omitempty"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserResource routes /v1/admin/users/{id}/role and .../status.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "role":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.changeUserRole(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.changeUserStatus(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if err := requirePermission(r.Context(), auth.ResourceAdminUsers, auth.ActionView); err != nil {
		handleAuthError(w, r, err)
		return
	}
	users, err := a.svc.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	if err := requirePermission(r.Context(), auth.ResourceAdminUsers, auth.ActionCreate); err != nil {
		handleAuthError(w, r, err)
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.CreateUser(r.Context(), req.Name, req.Email, req.Password, auth.Role(req.Role), req.Status)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.created", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) changeUserRole(w http.ResponseWriter, r *http.Request, userID string) {
	if err := requirePermission(r.Context(), auth.ResourceAdminRoles, auth.ActionUpdate); err != nil {
		handleAuthError(w, r, err)
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.ChangeUserRole(r.Context(), userID, auth.Role(req.Role))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.role_changed", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	a.publish(stream.Event{
		Kind:   stream.EventRoleChanged,
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) changeUserStatus(w http.ResponseWriter, r *http.Request, userID string) {
	if err := requirePermission(r.Context(), auth.ResourceAdminUsers, auth.ActionUpdate); err != nil {
		handleAuthError(w, r, err)
		return
	}
	var req changeStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.SetUserStatus(r.Context(), userID, req.Status)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.status_changed", map[string]any{
		"user_id": user.ID,
		"status":  user.Status,
	})
	a.publish(stream.Event{
		Kind:   stream.EventStatusChanged,
		UserID: user.ID,
		Email:  user.Email,
		Detail: user.Status,
	})
	writeJSON(w, http.StatusOK, user)
}
