package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the result of adding an image to a user's session.
// Donor and Recipient are only set when Complete is true.
type State struct {
	Complete  bool
	Donor     []byte
	Recipient []byte
}

type pending struct {
	image      []byte
	receivedAt time.Time
}

// Tracker pairs up images per user. A user holds at most one pending image;
// the second image completes the pair and clears the user's state in the same call.
type Tracker struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	ttl      time.Duration
	sessions map[int64]pending
}

// NewTracker creates a tracker. A zero ttl keeps pending images until they are paired or discarded.
func NewTracker(clock clockwork.Clock, ttl time.Duration) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[int64]pending),
	}
}

func (t *Tracker) AddImage(userID int64, image []byte) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	first, ok := t.sessions[userID]
	if ok && t.expired(first, now) {
		ok = false
	}
	if !ok {
		t.sessions[userID] = pending{image: image, receivedAt: now}
		return State{}
	}

	delete(t.sessions, userID)
	return State{Complete: true, Donor: first.image, Recipient: image}
}

// Pending reports how many images the user has waiting (0 or 1).
func (t *Tracker) Pending(userID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.sessions[userID]
	if !ok || t.expired(p, t.clock.Now()) {
		return 0
	}
	return 1
}

func (t *Tracker) Discard(userID int64) {
	t.mu.Lock()
	delete(t.sessions, userID)
	t.mu.Unlock()
}

// Sweep drops expired pending images and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	removed := 0
	for id, p := range t.sessions {
		if t.expired(p, now) {
			delete(t.sessions, id)
			removed++
		}
	}
	return removed
}

// Active counts pending images that have not expired yet.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	active := 0
	for _, p := range t.sessions {
		if !t.expired(p, now) {
			active++
		}
	}
	return active
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *Tracker) expired(p pending, now time.Time) bool {
	return t.ttl > 0 && now.Sub(p.receivedAt) >= t.ttl
}
