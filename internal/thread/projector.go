// Package thread derives reply groupings from the flat message set.
// Projections are pure reads over a store snapshot, recomputed on
// every call; nothing here caches or performs network I/O.
package thread

import (
	"iter"

	"github.com/pedrohba/convo/internal/model"
	"github.com/pedrohba/convo/internal/store"
)

// Project returns a lazy sequence of the root message followed by its
// replies in chronological order, and whether the root was present.
// If the root is absent the caller must fetch it from the backend
// before projecting; ok is false and the sequence is empty.
//
// A message that is itself a reply may still be projected as a root:
// calling Project with its identifier is the explicit promotion the
// caller performs when the user opens that message's own thread.
func Project(st *store.Store, rootID string) (seq iter.Seq[*model.Message], ok bool) {
	root, ok := st.Get(rootID)
	if !ok {
		return func(func(*model.Message) bool) {}, false
	}

	return func(yield func(*model.Message) bool) {
		if !yield(root.Clone()) {
			return
		}
		for m := range st.All() {
			if m.ReplyTo != rootID {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}, true
}

// Replies returns how many messages in the store reply to rootID.
func Replies(st *store.Store, rootID string) int {
	n := 0
	for m := range st.All() {
		if m.ReplyTo == rootID {
			n++
		}
	}
	return n
}
