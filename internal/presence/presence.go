// Package presence tracks who is typing in each channel. Presence is
// ephemeral: an entry not refreshed within the TTL is treated as
// "stopped typing" even if no stop event ever arrives.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Tracker is the typing-presence map for all channels.
type Tracker struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]map[string]time.Time // channel -> user -> last seen typing
	now  func() time.Time
}

// NewTracker creates a tracker with the given visibility timeout.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		ttl:  ttl,
		seen: make(map[string]map[string]time.Time),
		now:  time.Now,
	}
}

// Touch records that userID is typing in channelID right now.
func (t *Tracker) Touch(channelID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := t.seen[channelID]
	if ch == nil {
		ch = make(map[string]time.Time)
		t.seen[channelID] = ch
	}
	ch[userID] = t.now()
}

// Clear removes userID's typing state in channelID (explicit stop).
func (t *Tracker) Clear(channelID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch := t.seen[channelID]; ch != nil {
		delete(ch, userID)
	}
}

// Active returns the users currently typing in channelID, sorted.
// Expired entries are pruned as a side effect.
func (t *Tracker) Active(channelID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := t.seen[channelID]
	if len(ch) == 0 {
		return nil
	}
	cutoff := t.now().Add(-t.ttl)
	var users []string
	for user, at := range ch {
		if at.Before(cutoff) {
			delete(ch, user)
			continue
		}
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}
