package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sekolahku.id/internal/ids"
)

// MemoryUserStore is an in-memory UserStore used by tests and DSN-less
// development runs.
type MemoryUserStore struct {
	mu   sync.RWMutex
	byID map[string]User
}

var _ UserStore = (*MemoryUserStore)(nil)

func NewMemoryUserStore(seed ...User) *MemoryUserStore {
	s := &MemoryUserStore{byID: make(map[string]User, len(seed))}
	for _, u := range seed {
		if u.ID == "" {
			u.ID = ids.New()
		}
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		u.UpdatedAt = u.CreatedAt
		s.byID[u.ID] = u
	}
	return s
}

func (s *MemoryUserStore) Find(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := u
	return &copied, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byID {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		copied := u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryUserStore) Create(_ context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[u.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email %s", ErrConflict, u.Email)
		}
	}
	s.byID[u.ID] = *u
	return nil
}

func (s *MemoryUserStore) UpdateRole(_ context.Context, id string, role Role) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	copied := u
	return &copied, nil
}

func (s *MemoryUserStore) UpdateStatus(_ context.Context, id string, status string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	copied := u
	return &copied, nil
}
