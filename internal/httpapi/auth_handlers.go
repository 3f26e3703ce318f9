package httpapi

import (
	"errors"
	"net/http"

	"sekolahku.id/internal/audit"
	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/obs"
	"sekolahku.id/internal/stream"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	Fingerprint string `json:"device_fingerprint,omitempty"`
}

type resendOTPRequest struct {
	Email string `json:"email"`
}

type authStateResponse struct {
	Status string     `json:"status"`
	User   *auth.User `json:"user,omitempty"`
	Error  string     `json:"error,omitempty"`
}

type sessionResponse struct {
	authStateResponse
	Token       string `json:"token,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	LandingPath string `json:"landing_path,omitempty"`
}

func stateResponse(state auth.AuthState) authStateResponse {
	return authStateResponse{
		Status: string(state.Status),
		User:   state.User,
		Error:  state.Err,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	state, err := a.svc.Login(r.Context(), auth.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.ObserveLogin("rejected")
		case errors.Is(err, auth.ErrInvalidInput):
			obs.ObserveLogin("rejected")
		default:
			obs.ObserveLogin("error")
		}
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"email": req.Email})
	a.publish(stream.Event{Kind: stream.EventLogin, Email: req.Email})

	writeJSON(w, http.StatusOK, stateResponse(state))
}

func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, state, err := a.svc.VerifyOTP(r.Context(), auth.OTPVerification{
		Email:       req.Email,
		Code:        req.Code,
		Fingerprint: req.Fingerprint,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidOTP), errors.Is(err, auth.ErrInvalidCredentials):
			obs.ObserveOTP("rejected")
			a.publish(stream.Event{Kind: stream.EventOTPRejected, Email: req.Email})
		case errors.Is(err, auth.ErrVerificationInFlight):
			obs.ObserveOTP("in_flight")
		default:
			obs.ObserveOTP("error")
		}
		resp := sessionResponse{authStateResponse: stateResponse(state)}
		code := statusForAuthError(r, err)
		resp.Error = err.Error()
		writeJSON(w, code, resp)
		return
	}
	obs.ObserveOTP("ok")
	_ = audit.LogEvent(r.Context(), "auth.otp.verified", map[string]any{
		"email":   req.Email,
		"user_id": state.User.ID,
	})
	a.publish(stream.Event{
		Kind:   stream.EventOTPVerified,
		UserID: state.User.ID,
		Email:  state.User.Email,
		Role:   string(state.User.Role),
	})

	writeJSON(w, http.StatusOK, sessionResponse{
		authStateResponse: stateResponse(state),
		Token:             sess.Token,
		ExpiresAt:         sess.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		LandingPath:       auth.LandingPath(state.User.Role),
	})
}

func (a *API) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.ResendOTP(r.Context(), req.Email); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent"})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, _ := extractBearerToken(r.Header.Get(authHeader))
	if err := a.svc.Logout(r.Context(), token); err != nil {
		handleAuthError(w, r, err)
		return
	}
	if token != "" {
		obs.ObserveRevocation()
		_ = audit.LogEvent(r.Context(), "auth.logout", nil)
		a.publish(stream.Event{Kind: stream.EventLogout})
	}
	writeJSON(w, http.StatusOK, authStateResponse{Status: string(auth.StatusUnauthenticated)})
}

// handleSession reports the state behind the presented bearer token. The
// auth middleware has already restored and validated it.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		authStateResponse: authStateResponse{
			Status: string(auth.StatusAuthenticated),
			User:   principal.User,
		},
		ExpiresAt:   principal.Session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		LandingPath: auth.LandingPath(principal.User.Role),
	})
}

func (a *API) publish(evt stream.Event) {
	if a.stream != nil {
		a.stream.Publish(evt)
	}
}

func statusForAuthError(_ *http.Request, err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidOTP), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrVerificationInFlight):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
