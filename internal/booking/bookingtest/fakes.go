package bookingtest

import (
	"context"
	"sync"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/events"
)

// FakeClock is a settable clock for deterministic expiry tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Push records one push notification attempt.
type Push struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// RecordingNotifier captures pushes instead of sending them.
// Set Err to make every send fail.
type RecordingNotifier struct {
	mu     sync.Mutex
	Err    error
	pushes []Push
}

func (n *RecordingNotifier) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, Push{Token: token, Title: title, Body: body, Data: data})
	return n.Err
}

func (n *RecordingNotifier) Pushes() []Push {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Push, len(n.pushes))
	copy(out, n.pushes)
	return out
}

// RealtimeEvent records one targeted realtime notification.
type RealtimeEvent struct {
	UserID uint
	Event  string
	Data   map[string]interface{}
}

// RecordingPartyNotifier captures realtime events instead of delivering them.
type RecordingPartyNotifier struct {
	mu     sync.Mutex
	events []RealtimeEvent
}

func (n *RecordingPartyNotifier) NotifyUser(userID uint, event string, data map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, RealtimeEvent{UserID: userID, Event: event, Data: data})
}

func (n *RecordingPartyNotifier) Events() []RealtimeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]RealtimeEvent, len(n.events))
	copy(out, n.events)
	return out
}

// EventsFor filters recorded events by recipient.
func (n *RecordingPartyNotifier) EventsFor(userID uint) []RealtimeEvent {
	var out []RealtimeEvent
	for _, e := range n.Events() {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// RecordingSink captures lifecycle events instead of publishing them.
type RecordingSink struct {
	mu        sync.Mutex
	published []events.Event
}

func (s *RecordingSink) Publish(ctx context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, e)
	return nil
}

func (s *RecordingSink) Close() error { return nil }

func (s *RecordingSink) Published() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.published))
	copy(out, s.published)
	return out
}

// OfType filters captured events by type.
func (s *RecordingSink) OfType(eventType string) []events.Event {
	var out []events.Event
	for _, e := range s.Published() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
