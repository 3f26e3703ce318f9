// Package stream fans authentication and administration events out to live
// subscribers (the SSE feed on the admin dashboard).
package stream

import (
	"context"
	"sync"
	"time"
)

// Event kinds published on the feed.
const (
	EventLogin         = "auth.login"
	EventOTPVerified   = "auth.otp.verified"
	EventOTPRejected   = "auth.otp.rejected"
	EventLogout        = "auth.logout"
	EventRoleChanged   = "admin.user.role_changed"
	EventStatusChanged = "admin.user.status_changed"
)

// Event is one entry on the live activity feed. Actor fields are omitted for
// pre-authentication events.
type Event struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
	now  func() time.Time
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs: make(map[int]chan Event),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. A zero Timestamp is filled
// in at publish time.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// SubscriberCount reports the number of attached subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
