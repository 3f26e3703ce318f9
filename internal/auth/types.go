package auth

import "time"

const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// User is an administrative identity. Accounts are managed through the admin
// surface; the auth flow itself only ever reads them.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Credentials is the inbound login shape.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OTPVerification is the inbound second-factor shape.
type OTPVerification struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	Fingerprint string `json:"device_fingerprint"`
}

// Session is a time-bounded proof of authentication. The record round-trips
// losslessly through JSON when persisted.
type Session struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Status enumerates the auth flow states.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusPendingOTP      Status = "pending_otp"
	StatusAuthenticated   Status = "authenticated"
)

// AuthState is a snapshot of one login flow. User is non-nil exactly when
// Status is StatusAuthenticated.
type AuthState struct {
	Status Status `json:"status"`
	User   *User  `json:"user,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Principal is an authenticated user together with the session that proves it.
type Principal struct {
	User    *User
	Session *Session
}
