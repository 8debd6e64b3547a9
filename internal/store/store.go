// Package store holds the canonical in-memory message set for each
// channel. It is the single owner of live message state: the
// reconciler, the optimistic manager, and the pagination loader mutate
// it; everything else reads snapshots.
package store

import (
	"iter"
	"sort"
	"sync"

	"github.com/pedrohba/convo/internal/model"
)

// Store is the ordered message set for one channel. Messages are kept
// in chronological order by creation timestamp, ties broken by
// identifier comparison so the order is deterministic.
type Store struct {
	mu        sync.RWMutex
	channelID string
	byID      map[string]*model.Message
	order     []*model.Message
}

// New creates an empty store for the given channel.
func New(channelID string) *Store {
	return &Store{
		channelID: channelID,
		byID:      make(map[string]*model.Message),
	}
}

// ChannelID returns the channel this store belongs to.
func (s *Store) ChannelID() string { return s.channelID }

// Upsert inserts the message, or replaces the entry with the same
// identifier. The store keeps its own clone, so the caller may keep
// mutating its copy. Chronological order is restored after every call.
func (s *Store) Upsert(m *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := m.Clone()
	if old, ok := s.byID[m.ID]; ok {
		s.dropFromOrder(old)
	}
	s.byID[c.ID] = c
	s.insertOrdered(c)
}

// Remove deletes the message if present. Removing an absent identifier
// is a no-op, not an error: a delete racing ahead of the page that
// would have loaded the message is a normal condition.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	s.dropFromOrder(m)
	return true
}

// Get returns a clone of the message, or false if absent.
func (s *Store) Get(id string) (*model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// Mutate applies fn to the stored message under the write lock and
// reorders if the timestamp changed. Returns false if absent. This is
// how the reconciler applies in-place changes (reactions, pins, read
// receipts) without a get/clone/upsert round trip.
func (s *Store) Mutate(id string, fn func(*model.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return false
	}
	before := m.CreatedAt
	fn(m)
	if m.CreatedAt != before {
		s.dropFromOrder(m)
		s.insertOrdered(m)
	}
	return true
}

// All returns a lazy, restartable sequence over a snapshot of the
// store taken at call time. Later mutation of the store, including
// in-place Mutate, does not affect a sequence already produced, and
// yielded messages are clones.
func (s *Store) All() iter.Seq[*model.Message] {
	snap := s.snapshot()
	return func(yield func(*model.Message) bool) {
		for _, m := range snap {
			if !yield(m.Clone()) {
				return
			}
		}
	}
}

// Len returns the number of messages currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Oldest returns a clone of the chronologically first message.
func (s *Store) Oldest() (*model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, false
	}
	return s.order[0].Clone(), true
}

// snapshot deep-copies the ordered set under the read lock. Copying
// only the pointers would not be enough: Mutate edits messages in
// place, so a shared pointer would let a later mutation leak into a
// snapshot already handed out, and would race iteration.
func (s *Store) snapshot() []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make([]*model.Message, len(s.order))
	for i, m := range s.order {
		snap[i] = m.Clone()
	}
	return snap
}

// insertOrdered places m at its chronological position. Callers hold
// the write lock and guarantee m is not already in order.
func (s *Store) insertOrdered(m *model.Message) {
	i := sort.Search(len(s.order), func(i int) bool {
		o := s.order[i]
		if o.CreatedAt != m.CreatedAt {
			return o.CreatedAt > m.CreatedAt
		}
		return o.ID > m.ID
	})
	s.order = append(s.order, nil)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = m
}

func (s *Store) dropFromOrder(m *model.Message) {
	for i, o := range s.order {
		if o == m {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
