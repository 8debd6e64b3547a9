package page

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pedrohba/convo/internal/model"
	"github.com/pedrohba/convo/internal/rest"
	"github.com/pedrohba/convo/internal/store"
)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   []*rest.Page
	err     error
	block   chan struct{} // non-nil: FetchMessages waits until closed
	calls   int
	befores []string
}

func (f *fakeFetcher) FetchMessages(_ context.Context, _, before string, _ int) (*rest.Page, error) {
	f.mu.Lock()
	f.calls++
	f.befores = append(f.befores, before)
	var page *rest.Page
	if len(f.pages) > 0 {
		page = f.pages[0]
		f.pages = f.pages[1:]
	} else {
		page = &rest.Page{}
	}
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	return page, nil
}

func page(hasMore bool, msgs ...*model.Message) *rest.Page {
	return &rest.Page{Messages: msgs, HasMore: hasMore}
}

func msg(id string, at int64) *model.Message {
	return &model.Message{ID: id, ChannelID: "c1", CreatedAt: at}
}

func TestLoadOlderAnchorsAtOldestLoaded(t *testing.T) {
	stores := store.NewRegistry()
	stores.Channel("c1").Upsert(msg("m10", 10_000))
	stores.Channel("c1").Upsert(msg("m20", 20_000))

	f := &fakeFetcher{pages: []*rest.Page{page(true, msg("m5", 5000))}}
	l := NewLoader(stores, f, nil, nil, 50, nil)

	out, err := l.LoadOlder(t.Context(), "c1", "")
	if err != nil {
		t.Fatal(err)
	}
	if f.befores[0] != "m10" {
		t.Errorf("fetched before %q, want m10 (oldest loaded)", f.befores[0])
	}
	if out.Added != 1 || !out.HasMore {
		t.Errorf("outcome = %+v, want Added=1 HasMore=true", out)
	}
}

func TestLoadOlderEmptyStoreFetchesNewestPage(t *testing.T) {
	stores := store.NewRegistry()
	f := &fakeFetcher{pages: []*rest.Page{page(false, msg("m1", 1000))}}
	l := NewLoader(stores, f, nil, nil, 50, nil)

	out, err := l.LoadOlder(t.Context(), "c1", "")
	if err != nil {
		t.Fatal(err)
	}
	if f.befores[0] != "" {
		t.Errorf("fetched before %q, want empty cursor", f.befores[0])
	}
	if out.HasMore {
		t.Error("HasMore = true, want false at history start")
	}
}

func TestOverlappingPageMergesIdempotently(t *testing.T) {
	stores := store.NewRegistry()
	st := stores.Channel("c1")
	st.Upsert(msg("m10", 10_000))

	f := &fakeFetcher{pages: []*rest.Page{page(false, msg("m5", 5000), msg("m10", 10_000))}}
	l := NewLoader(stores, f, nil, nil, 50, nil)

	out, err := l.LoadOlder(t.Context(), "c1", "m20")
	if err != nil {
		t.Fatal(err)
	}
	if out.Added != 1 {
		t.Errorf("Added = %d, want 1 (m10 was already loaded)", out.Added)
	}
	if st.Len() != 2 {
		t.Errorf("store has %d messages, want 2", st.Len())
	}
}

func TestConcurrentLoadIsSkipped(t *testing.T) {
	stores := store.NewRegistry()
	f := &fakeFetcher{block: make(chan struct{})}
	l := NewLoader(stores, f, nil, nil, 50, nil)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		l.LoadOlder(context.Background(), "c1", "")
	}()

	// Wait until the first fetch is inside the fetcher.
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		started := f.calls == 1
		f.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	out, err := l.LoadOlder(t.Context(), "c1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped {
		t.Error("second load not skipped while first in flight")
	}

	close(f.block)
	<-firstDone
	if f.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls)
	}
}

func TestLoadAfterCompletionRunsAgain(t *testing.T) {
	stores := store.NewRegistry()
	f := &fakeFetcher{pages: []*rest.Page{page(true), page(false)}}
	l := NewLoader(stores, f, nil, nil, 50, nil)

	if _, err := l.LoadOlder(t.Context(), "c1", ""); err != nil {
		t.Fatal(err)
	}
	out, err := l.LoadOlder(t.Context(), "c1", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Skipped {
		t.Error("load skipped after previous fetch completed")
	}
	if f.calls != 2 {
		t.Errorf("fetcher called %d times, want 2", f.calls)
	}
}

func TestFetchErrorClearsInflight(t *testing.T) {
	stores := store.NewRegistry()
	f := &fakeFetcher{err: errors.New("503")}
	l := NewLoader(stores, f, nil, nil, 50, nil)

	if _, err := l.LoadOlder(t.Context(), "c1", ""); err == nil {
		t.Fatal("expected fetch error")
	}

	f.err = nil
	out, err := l.LoadOlder(t.Context(), "c1", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Skipped {
		t.Error("channel stuck in flight after a failed fetch")
	}
}

func TestRefreshFillsChannelID(t *testing.T) {
	stores := store.NewRegistry()
	// Some backends omit the channel on nested page entries.
	f := &fakeFetcher{pages: []*rest.Page{page(false, &model.Message{ID: "m1", CreatedAt: 1000})}}
	l := NewLoader(stores, f, nil, nil, 50, nil)

	if _, err := l.Refresh(t.Context(), "c1"); err != nil {
		t.Fatal(err)
	}
	m, ok := stores.Channel("c1").Get("m1")
	if !ok || m.ChannelID != "c1" {
		t.Errorf("message = %+v, want ChannelID c1", m)
	}
}
