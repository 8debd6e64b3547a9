// Package reconcile applies transport-delivered events onto the
// channel stores. Events are applied in arrival order, never reordered
// by timestamp: reordering risks resurrecting deleted messages. Every
// handler is idempotent or order-tolerant, because the transport
// guarantees neither exactly-once nor in-order delivery.
package reconcile

import (
	"context"

	"github.com/pedrohba/convo/internal/bus"
	"github.com/pedrohba/convo/internal/cache"
	"github.com/pedrohba/convo/internal/metrics"
	"github.com/pedrohba/convo/internal/model"
	"github.com/pedrohba/convo/internal/presence"
	"github.com/pedrohba/convo/internal/push"
	"github.com/pedrohba/convo/internal/store"
	"go.uber.org/zap"
)

// Absorber lets the engine retire an optimistic entry when the
// confirmed message arrives over push before the HTTP confirmation.
// Implemented by the optimistic manager.
type Absorber interface {
	// Absorb returns the temp ID of a pending send matching the
	// confirmed message, marking that send as already confirmed so the
	// later HTTP success path does not insert a second copy.
	Absorb(msg *model.Message) (tempID string, ok bool)
}

// Engine subscribes to "push." events on the bus and applies them.
type Engine struct {
	stores   *store.Registry
	typing   *presence.Tracker
	cache    *cache.DB // nil disables write-through
	absorber Absorber  // nil disables optimistic absorption
	bus      *bus.Bus
	metrics  *metrics.Set
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewEngine creates a reconciler. cache, absorber and metrics may be nil.
func NewEngine(stores *store.Registry, typing *presence.Tracker, c *cache.DB, a Absorber, b *bus.Bus, m *metrics.Set, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		stores:   stores,
		typing:   typing,
		cache:    c,
		absorber: a,
		bus:      b,
		metrics:  m,
		logger:   logger,
	}
}

// SetAbsorber wires the optimistic manager in after construction. The
// manager needs the engine to land confirmed messages and the engine
// needs the manager to absorb optimistic entries, so one side of the
// pair is attached late.
func (e *Engine) SetAbsorber(a Absorber) {
	e.absorber = a
}

// Start subscribes to push events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("push.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.Apply(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Apply handles one event. Exported so tests and the backfill path can
// drive the engine synchronously.
func (e *Engine) Apply(evt bus.Event) {
	if e.metrics != nil {
		e.metrics.PushEvents.WithLabelValues(evt.Kind).Inc()
	}

	switch p := evt.Payload.(type) {
	case push.MessageCreated:
		e.applyCreated(p.Message)
	case push.MessageEdited:
		e.applyEdited(p)
	case push.MessageDeleted:
		e.applyDeleted(p)
	case push.ReactionToggled:
		e.applyReaction(p)
	case push.PinChanged:
		e.applyPin(p)
	case push.MessageRead:
		e.applyRead(p)
	case push.Typing:
		e.applyTyping(p)
	}
}

// Ingest applies a confirmed message outside the push stream (HTTP
// confirmations, pagination results, cache hydration). Same idempotent
// upsert as a created event, minus optimistic absorption.
func (e *Engine) Ingest(msg *model.Message) {
	st := e.stores.Channel(msg.ChannelID)
	st.Upsert(msg)
	e.writeThrough(msg)
	if e.metrics != nil {
		e.metrics.Ingested.Inc()
	}
	e.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: msg.ChannelID, MessageID: msg.ID})
}

// Ref identifies a message in store-level notifications.
type Ref struct {
	ChannelID string
	MessageID string
}

func (e *Engine) applyCreated(msg *model.Message) {
	st := e.stores.Channel(msg.ChannelID)

	// A push arrival may beat the HTTP confirmation of our own send.
	// Retire the matching optimistic entry first so the store never
	// holds both the temp and the confirmed copy.
	if e.absorber != nil {
		if tempID, ok := e.absorber.Absorb(msg); ok {
			st.Remove(tempID)
			e.logger.Info("optimistic entry absorbed by push event",
				zap.String("temp_id", tempID), zap.String("msg_id", msg.ID))
		}
	}

	st.Upsert(msg)
	e.writeThrough(msg)
	if e.metrics != nil {
		e.metrics.Ingested.Inc()
	}
	e.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: msg.ChannelID, MessageID: msg.ID})
}

func (e *Engine) applyEdited(p push.MessageEdited) {
	st := e.stores.Channel(p.ChannelID)
	ok := st.Mutate(p.MessageID, func(m *model.Message) {
		m.Body = p.Body
		m.Edited = true
		if p.EditedAt > 0 {
			m.UpdatedAt = p.EditedAt
		}
	})
	if !ok {
		// Message not loaded locally (or already deleted). A benign
		// race, not an error; delete-then-edit must stay deleted.
		e.discard(bus.KindPushMessageEdited)
		return
	}
	e.syncCache(st, p.MessageID)
	e.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: p.ChannelID, MessageID: p.MessageID})
}

func (e *Engine) applyDeleted(p push.MessageDeleted) {
	st := e.stores.Channel(p.ChannelID)
	removed := st.Remove(p.MessageID)
	if e.cache != nil {
		if err := e.cache.DeleteMessage(p.ChannelID, p.MessageID); err != nil {
			e.logger.Error("cache delete failed", zap.Error(err), zap.String("msg_id", p.MessageID))
		}
	}
	if removed {
		e.bus.Emit(bus.KindMessageRemoved, Ref{ChannelID: p.ChannelID, MessageID: p.MessageID})
	}
}

func (e *Engine) applyReaction(p push.ReactionToggled) {
	st := e.stores.Channel(p.ChannelID)
	ok := st.Mutate(p.MessageID, func(m *model.Message) {
		m.ToggleReaction(p.Symbol, p.UserID)
	})
	if !ok {
		e.discard(bus.KindPushReactionToggled)
		return
	}
	e.syncCache(st, p.MessageID)
	e.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: p.ChannelID, MessageID: p.MessageID})
}

func (e *Engine) applyPin(p push.PinChanged) {
	st := e.stores.Channel(p.ChannelID)
	ok := st.Mutate(p.MessageID, func(m *model.Message) {
		m.Pinned = p.Pinned
	})
	if !ok {
		e.discard(bus.KindPushPinChanged)
		return
	}
	e.syncCache(st, p.MessageID)
	e.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: p.ChannelID, MessageID: p.MessageID})
}

func (e *Engine) applyRead(p push.MessageRead) {
	st := e.stores.Channel(p.ChannelID)
	ok := st.Mutate(p.MessageID, func(m *model.Message) {
		m.MarkRead(p.UserID)
	})
	if !ok {
		e.discard(bus.KindPushMessageRead)
		return
	}
	e.syncCache(st, p.MessageID)
}

func (e *Engine) applyTyping(p push.Typing) {
	if p.Active {
		e.typing.Touch(p.ChannelID, p.UserID)
	} else {
		e.typing.Clear(p.ChannelID, p.UserID)
	}
	e.bus.Emit(bus.KindPresenceChanged, p)
}

func (e *Engine) discard(kind string) {
	if e.metrics != nil {
		e.metrics.Discarded.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) writeThrough(msg *model.Message) {
	if e.cache == nil {
		return
	}
	if err := e.cache.UpsertMessage(msg); err != nil {
		e.logger.Error("cache upsert failed", zap.Error(err), zap.String("msg_id", msg.ID))
	}
}

func (e *Engine) syncCache(st *store.Store, messageID string) {
	if e.cache == nil {
		return
	}
	if m, ok := st.Get(messageID); ok {
		e.writeThrough(m)
	}
}
