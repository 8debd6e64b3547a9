package store

import (
	"sort"
	"sync"
)

// Registry hands out the per-channel store, creating it on first use.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Channel returns the store for channelID, creating it if needed.
func (r *Registry) Channel(channelID string) *Store {
	r.mu.RLock()
	s, ok := r.stores[channelID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[channelID]; ok {
		return s
	}
	s = New(channelID)
	r.stores[channelID] = s
	return s
}

// Channels returns the known channel IDs, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
