// Package page extends channel stores backward in time. Pages merge
// through the same idempotent upsert path as everything else, so
// overlap with already-loaded messages is harmless.
package page

import (
	"context"
	"fmt"
	"sync"

	"github.com/pedrohba/convo/internal/metrics"
	"github.com/pedrohba/convo/internal/model"
	"github.com/pedrohba/convo/internal/rest"
	"github.com/pedrohba/convo/internal/store"
	"go.uber.org/zap"
)

// Fetcher is the slice of the REST collaborator the loader uses.
// Satisfied by *rest.Client.
type Fetcher interface {
	FetchMessages(ctx context.Context, channelID, before string, limit int) (*rest.Page, error)
}

// Ingestor lands fetched messages in the store and cache.
type Ingestor interface {
	Ingest(msg *model.Message)
}

// Outcome reports what a LoadOlder call did.
type Outcome struct {
	Added   int  // messages not previously in the store
	HasMore bool // whether older pages remain
	Skipped bool // a fetch for this channel was already in flight
}

// Loader pages channel history backward.
type Loader struct {
	stores   *store.Registry
	fetcher  Fetcher
	ingest   Ingestor
	metrics  *metrics.Set
	logger   *zap.Logger
	pageSize int

	mu       sync.Mutex
	inflight map[string]bool // channel ID -> fetch outstanding
}

// NewLoader creates a loader. ingest and metrics may be nil; with a
// nil ingest, messages are upserted into the store directly.
func NewLoader(stores *store.Registry, fetcher Fetcher, ingest Ingestor, m *metrics.Set, pageSize int, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Loader{
		stores:   stores,
		fetcher:  fetcher,
		ingest:   ingest,
		metrics:  m,
		logger:   logger,
		pageSize: pageSize,
		inflight: make(map[string]bool),
	}
}

// Refresh fetches the newest page for a channel and merges it. Used
// after (re)connecting the push transport: messages that arrived while
// disconnected land through the same idempotent upsert path, so
// overlap with what the store already has is harmless.
func (l *Loader) Refresh(ctx context.Context, channelID string) (Outcome, error) {
	return l.load(ctx, channelID, "", false)
}

// LoadOlder fetches one page of messages older than beforeID (empty
// means older than the oldest currently in the store; on an empty
// store, the newest page). A call while a fetch for the same channel
// is outstanding does not start a second fetch: it returns
// Skipped=true, which prevents duplicate page fetches and out-of-order
// insertion races.
func (l *Loader) LoadOlder(ctx context.Context, channelID, beforeID string) (Outcome, error) {
	return l.load(ctx, channelID, beforeID, true)
}

func (l *Loader) load(ctx context.Context, channelID, beforeID string, anchorOldest bool) (Outcome, error) {
	l.mu.Lock()
	if l.inflight[channelID] {
		l.mu.Unlock()
		return Outcome{Skipped: true}, nil
	}
	l.inflight[channelID] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.inflight, channelID)
		l.mu.Unlock()
	}()

	st := l.stores.Channel(channelID)
	if anchorOldest && beforeID == "" {
		if oldest, ok := st.Oldest(); ok {
			beforeID = oldest.ID
		}
	}

	page, err := l.fetcher.FetchMessages(ctx, channelID, beforeID, l.pageSize)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch page for %s: %w", channelID, err)
	}
	if l.metrics != nil {
		l.metrics.PagesFetched.Inc()
	}

	added := 0
	for _, msg := range page.Messages {
		if msg.ChannelID == "" {
			msg.ChannelID = channelID
		}
		if _, exists := st.Get(msg.ID); !exists {
			added++
		}
		if l.ingest != nil {
			l.ingest.Ingest(msg)
		} else {
			st.Upsert(msg)
		}
	}

	l.logger.Info("history page loaded",
		zap.String("channel", channelID), zap.Int("added", added),
		zap.Int("fetched", len(page.Messages)), zap.Bool("has_more", page.HasMore))

	return Outcome{Added: added, HasMore: page.HasMore}, nil
}
