package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// ValidateSession re-checks freshness conditions for a loaded session. It is
// called on every restoration, not only at save time: expiry, the account's
// current status and the account's current role are all re-evaluated against
// now. A nil error means the session still proves authentication.
func ValidateSession(sess *Session, usr *User, now time.Time) error {
	if sess == nil {
		return ErrNotFound
	}
	if !now.Before(sess.ExpiresAt) {
		return ErrSessionExpired
	}
	if usr == nil || usr.Status != UserStatusActive {
		return ErrAccountInactive
	}
	if usr.Role != sess.Role {
		return ErrRoleChanged
	}
	return nil
}

// MemorySessionStore keeps serialized session records in process memory. It
// backs tests and DSN-less development runs; production uses the Postgres
// store. Records are stored as their JSON encoding so the codec is exercised
// on every round trip.
type MemorySessionStore struct {
	mu      sync.RWMutex
	byToken map[string][]byte
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{byToken: make(map[string][]byte)}
}

func (s *MemorySessionStore) Save(_ context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[sess.Token] = data
	return nil
}

func (s *MemorySessionStore) Find(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	data, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Corrupt payload degrades to "no session".
		return nil, nil
	}
	return &sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
	return nil
}

func (s *MemorySessionStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, data := range s.byToken {
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			delete(s.byToken, token)
			continue
		}
		if sess.UserID == userID {
			delete(s.byToken, token)
		}
	}
	return nil
}

// Corrupt overwrites a stored record with an undecodable payload. Test hook.
func (s *MemorySessionStore) Corrupt(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byToken[token]; ok {
		s.byToken[token] = []byte("{not json")
	}
}
