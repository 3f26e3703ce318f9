// Package prefs persists per-user interface preferences. It is not part of
// the security core but shares the session store's persistence contract:
// fail-closed loads and idempotent clears.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Theme is a display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	// DefaultTheme is used whenever no stored preference can be read.
	DefaultTheme = ThemeLight
)

// Valid reports whether the theme is a known value.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Preference is one user's stored settings record.
type Preference struct {
	UserID    string    `json:"user_id"`
	Theme     Theme     `json:"theme"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists preferences keyed by user.
//
// Load returns (nil, nil) when no record exists or the stored bytes are
// unreadable; callers fall back to defaults rather than fail. Clear is
// idempotent.
type Store interface {
	Save(ctx context.Context, pref *Preference) error
	Load(ctx context.Context, userID string) (*Preference, error)
	Clear(ctx context.Context, userID string) error
}

// Service answers and records theme choices on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Theme returns the user's stored preference, or DefaultTheme when nothing
// usable is stored.
func (s *Service) Theme(ctx context.Context, userID string) (Theme, error) {
	pref, err := s.store.Load(ctx, userID)
	if err != nil {
		return DefaultTheme, err
	}
	if pref == nil || !pref.Theme.Valid() {
		return DefaultTheme, nil
	}
	return pref.Theme, nil
}

// SetTheme records the preference.
func (s *Service) SetTheme(ctx context.Context, userID string, theme Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("prefs: unsupported theme %q", theme)
	}
	return s.store.Save(ctx, &Preference{
		UserID:    userID,
		Theme:     theme,
		UpdatedAt: s.now().UTC(),
	})
}

// Reset removes the stored preference so the default applies again.
func (s *Service) Reset(ctx context.Context, userID string) error {
	return s.store.Clear(ctx, userID)
}

// MemoryStore keeps preferences in process memory. Records are stored as
// JSON bytes so the serialized form is exercised the same way a durable
// backend would.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, pref *Preference) error {
	raw, err := json.Marshal(pref)
	if err != nil {
		return fmt.Errorf("prefs: encode preference: %w", err)
	}
	s.mu.Lock()
	s.byUser[pref.UserID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, userID string) (*Preference, error) {
	s.mu.RLock()
	raw, ok := s.byUser[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var pref Preference
	if err := json.Unmarshal(raw, &pref); err != nil {
		// Unreadable record: treat as absent.
		return nil, nil
	}
	return &pref, nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.byUser, userID)
	s.mu.Unlock()
	return nil
}

// Corrupt overwrites a stored record with bytes that do not decode. Test
// hook for the fail-closed load path.
func (s *MemoryStore) Corrupt(userID string) {
	s.mu.Lock()
	s.byUser[userID] = []byte("{not json")
	s.mu.Unlock()
}
