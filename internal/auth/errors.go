package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrInvalidCredentials covers every credential-shaped rejection: unknown
	// user, wrong password, inactive account. The single message avoids
	// account enumeration.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")

	// ErrInvalidOTP covers wrong, expired and already-used codes alike.
	ErrInvalidOTP = errors.New("auth: invalid or expired code")

	// ErrVerificationInFlight rejects a second verification attempt while one
	// is still being processed.
	ErrVerificationInFlight = errors.New("auth: verification already in progress")

	// ErrUnavailable marks transport failures (OTP delivery, session store
	// I/O) as distinct from credential rejections.
	ErrUnavailable = errors.New("auth: system unavailable")

	// ErrNotAuthenticated indicates a wiring bug: an authenticated-only
	// surface was used without an authenticated identity.
	ErrNotAuthenticated = errors.New("auth: not authenticated")

	// ErrForbidden denies an authenticated identity whose role lacks the
	// required permission.
	ErrForbidden = errors.New("auth: permission denied")

	// Session validation outcomes. All collapse to "not authenticated" for
	// callers; they stay distinct for telemetry.
	ErrSessionExpired  = errors.New("auth: session expired")
	ErrAccountInactive = errors.New("auth: account is not active")
	ErrRoleChanged     = errors.New("auth: role changed since session was issued")
)
