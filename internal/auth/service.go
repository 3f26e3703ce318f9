package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"sekolahku.id/internal/ids"
)

const (
	defaultSessionTTL = 12 * time.Hour
	defaultOTPTTL     = 5 * time.Minute

	flowSweepInterval = time.Minute
)

// Service drives the login flow: credentials -> pending OTP -> authenticated
// session. It owns one loginFlow per email while the second factor is
// outstanding and is the only component allowed to write to the SessionStore.
type Service struct {
	users      UserStore
	sessions   SessionStore
	dispatcher OTPDispatcher
	signer     tokenSigner
	now        func() time.Time
	sessionTTL time.Duration
	otpTTL     time.Duration

	mu    sync.Mutex
	flows map[string]*loginFlow

	sweepDone chan struct{}
	sweepOnce sync.Once
}

// loginFlow is the working memory of one pending login. The AuthState
// invariant holds throughout: User is only set once Status is authenticated,
// and an authenticated flow is immediately discarded in favor of its session.
type loginFlow struct {
	state     AuthState
	candidate *User
	challenge *otpChallenge
	failures  int
	verifying bool
}

// ServiceOption configures Service construction.
type ServiceOption func(*Service) error

// WithClock overrides the time source. Tests use it to step expiry.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithIssuer overrides the session token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.signer.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithSessionTTL configures session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithOTPTTL configures the one-time code validity window.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.otpTTL = ttl
		}
		return nil
	}
}

// NewService constructs the auth service. The secret signs session tokens
// and must be non-empty.
func NewService(users UserStore, sessions SessionStore, dispatcher OTPDispatcher, secret string, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if dispatcher == nil {
		return nil, errors.New("otp dispatcher is required")
	}
	signer, err := newTokenSigner(secret, defaultIssuer)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		users:      users,
		sessions:   sessions,
		dispatcher: dispatcher,
		signer:     signer,
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
		otpTTL:     defaultOTPTTL,
		flows:      make(map[string]*loginFlow),
		sweepDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	go svc.sweepExpiredFlows()
	return svc, nil
}

// Dispose stops the background flow sweeper. Safe to call more than once.
func (s *Service) Dispose() {
	s.sweepOnce.Do(func() { close(s.sweepDone) })
}

// sweepExpiredFlows prunes pending flows whose challenge has lapsed so an
// abandoned login does not pin memory.
func (s *Service) sweepExpiredFlows() {
	ticker := time.NewTicker(flowSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.sweepDone:
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for email, flow := range s.flows {
				if flow.challenge != nil && !now.Before(flow.challenge.expiresAt) && !flow.verifying {
					delete(s.flows, email)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Login validates credential shape locally, checks the credentials against
// the user store and, on success, opens a pending-OTP flow with exactly one
// dispatched code. Every credential-shaped failure returns
// ErrInvalidCredentials without distinguishing the cause.
func (s *Service) Login(ctx context.Context, creds Credentials) (AuthState, error) {
	email := normalizeEmail(creds.Email)
	if !validEmailShape(email) || creds.Password == "" {
		return unauthenticated(), fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return unauthenticated(), ErrInvalidCredentials
		}
		return unauthenticated(), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if user.Status != UserStatusActive {
		return unauthenticated(), ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, creds.Password); err != nil {
		return unauthenticated(), ErrInvalidCredentials
	}

	challenge, err := newOTPChallenge(s.now(), s.otpTTL)
	if err != nil {
		return unauthenticated(), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.dispatcher.Dispatch(ctx, email, challenge.code); err != nil {
		return unauthenticated(), fmt.Errorf("%w: code delivery failed", ErrUnavailable)
	}

	flow := &loginFlow{
		state:     AuthState{Status: StatusPendingOTP},
		candidate: user,
		challenge: challenge,
	}
	s.mu.Lock()
	s.flows[email] = flow
	state := flow.state
	s.mu.Unlock()
	return state, nil
}

// VerifyOTP checks the submitted code against the pending flow. A second
// call for the same email while one is in flight is rejected outright, never
// queued, so at most one session is created per challenge. Codes are single
// use; the account status is re-checked even after a correct code.
func (s *Service) VerifyOTP(ctx context.Context, v OTPVerification) (*Session, AuthState, error) {
	email := normalizeEmail(v.Email)
	code := normalizeOTPCode(v.Code)
	if !validEmailShape(email) || !validOTPShape(code) {
		return nil, unauthenticated(), fmt.Errorf("%w: email and 6-digit code are required", ErrInvalidInput)
	}

	s.mu.Lock()
	flow, ok := s.flows[email]
	if !ok {
		s.mu.Unlock()
		return nil, unauthenticated(), ErrInvalidOTP
	}
	if flow.verifying {
		state := flow.state
		s.mu.Unlock()
		return nil, state, ErrVerificationInFlight
	}
	flow.verifying = true
	now := s.now()
	matched := flow.challenge.matches(code, now)
	if !matched {
		flow.failures++
		flow.state.Err = ErrInvalidOTP.Error()
		flow.verifying = false
		state := flow.state
		s.mu.Unlock()
		return nil, state, ErrInvalidOTP
	}
	candidate := flow.candidate
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if f, ok := s.flows[email]; ok {
			f.verifying = false
		}
		s.mu.Unlock()
	}()

	// Re-check the account: a suspension between login and verification must
	// still reject, independent of code correctness.
	user, err := s.users.Find(ctx, candidate.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.dropFlow(email)
			return nil, unauthenticated(), ErrInvalidCredentials
		}
		return nil, AuthState{Status: StatusPendingOTP}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if user.Status != UserStatusActive {
		s.dropFlow(email)
		return nil, unauthenticated(), ErrInvalidCredentials
	}

	sess, err := s.mintSession(ctx, user, v.Fingerprint)
	if err != nil {
		return nil, AuthState{Status: StatusPendingOTP}, err
	}

	s.mu.Lock()
	if f, ok := s.flows[email]; ok {
		f.challenge.consumed = true
	}
	delete(s.flows, email)
	s.mu.Unlock()

	return sess, AuthState{Status: StatusAuthenticated, User: user}, nil
}

func (s *Service) mintSession(ctx context.Context, user *User, fingerprint string) (*Session, error) {
	now := s.now()
	expiresAt := now.Add(s.sessionTTL)
	token, err := s.signer.mint(user, ids.New(), fingerprint, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	sess := &Session{
		Token:       token,
		UserID:      user.ID,
		Role:        user.Role,
		Fingerprint: fingerprint,
		IssuedAt:    now.UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sess, nil
}

// ResendOTP reissues the challenge for a pending flow. The previous code is
// invalidated and the validity window restarts; the failure counter is kept.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !validEmailShape(email) {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	s.mu.Lock()
	flow, ok := s.flows[email]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no pending verification", ErrInvalidInput)
	}

	challenge, err := newOTPChallenge(s.now(), s.otpTTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.dispatcher.Dispatch(ctx, email, challenge.code); err != nil {
		return fmt.Errorf("%w: code delivery failed", ErrUnavailable)
	}

	s.mu.Lock()
	flow.challenge = challenge
	flow.state.Err = ""
	s.mu.Unlock()
	return nil
}

// RestoreSession loads and re-validates a persisted session. A valid session
// authenticates directly without re-prompting credentials; a stale one is
// cleared from the store so it does not linger. Idempotent: repeated calls
// with no session change produce the same result.
func (s *Service) RestoreSession(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrNotAuthenticated
	}
	now := s.now()
	if _, err := s.signer.parse(token); err != nil {
		return Principal{}, ErrNotAuthenticated
	}

	sess, err := s.sessions.Find(ctx, token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if sess == nil {
		return Principal{}, ErrNotAuthenticated
	}

	var user *User
	if u, err := s.users.Find(ctx, sess.UserID); err == nil {
		user = u
	} else if !errors.Is(err, ErrNotFound) {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := ValidateSession(sess, user, now); err != nil {
		if delErr := s.sessions.Delete(ctx, token); delErr != nil {
			return Principal{}, fmt.Errorf("%w: %v", ErrUnavailable, delErr)
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return Principal{User: user, Session: sess}, nil
}

// Logout clears the persisted session. Safe from any state: logging out an
// unknown or already-cleared token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// State reports the flow snapshot for an email: pending_otp while a
// challenge is outstanding, unauthenticated otherwise. Authenticated
// identities live in their sessions, not in flows.
func (s *Service) State(email string) AuthState {
	email = normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if flow, ok := s.flows[email]; ok {
		return flow.state
	}
	return unauthenticated()
}

// Failures returns the OTP failure counter for a pending flow. The caller
// drives lockout/backoff policy from it.
func (s *Service) Failures(email string) int {
	email = normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if flow, ok := s.flows[email]; ok {
		return flow.failures
	}
	return 0
}

// CreateUser registers an account. Exposed for the admin surface and seeds.
func (s *Service) CreateUser(ctx context.Context, name, email, password string, role Role, status string) (*User, error) {
	email = normalizeEmail(email)
	if !validEmailShape(email) {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, ok := Describe(role); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if status == "" {
		status = UserStatusActive
	}
	if !validUserStatus(status) {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user := &User{
		Name:         name,
		Email:        email,
		Role:         role,
		Status:       status,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns every account. Admin surface only.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

// ChangeUserRole reassigns a user's role and revokes the user's persisted
// sessions so the change takes effect on the next validation rather than at
// the old role's leisure.
func (s *Service) ChangeUserRole(ctx context.Context, userID string, role Role) (*User, error) {
	if _, ok := Describe(role); !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	user, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return user, nil
}

// SetUserStatus updates the account status. Deactivation and suspension
// revoke the user's sessions immediately.
func (s *Service) SetUserStatus(ctx context.Context, userID, status string) (*User, error) {
	if !validUserStatus(status) {
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidInput, status)
	}
	user, err := s.users.UpdateStatus(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	if status != UserStatusActive {
		if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return user, nil
}

func (s *Service) dropFlow(email string) {
	s.mu.Lock()
	delete(s.flows, email)
	s.mu.Unlock()
}

func unauthenticated() AuthState {
	return AuthState{Status: StatusUnauthenticated}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmailShape(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

func validUserStatus(status string) bool {
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}
