package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/verify-otp",
	"/v1/auth/resend-otp",
	"/v1/auth/logout",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth restores the session named by the bearer token and attaches the
// principal to the request context. Pre-login endpoints stay public.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.svc.RestoreSession(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrNotAuthenticated):
				obs.ObserveRestore("rejected")
				writeError(w, r, http.StatusUnauthorized, "session is not valid")
			default:
				obs.ObserveRestore("error")
				writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
			}
			return
		}
		obs.ObserveRestore("ok")

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission gates a handler on the principal's role being allowed to
// perform the action. Deny-by-default: no principal means no access.
func requirePermission(ctx context.Context, resource auth.Resource, action auth.Action) error {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return auth.ErrNotAuthenticated
	}
	if !auth.CanPerform(principal.User.Role, resource, action) {
		return auth.ErrForbidden
	}
	return nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
