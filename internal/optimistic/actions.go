package optimistic

import (
	"context"

	"github.com/pedrohba/convo/internal/bus"
	"github.com/pedrohba/convo/internal/model"
	"go.uber.org/zap"
)

// Per-message actions follow the same shape as Send: mutate the store
// immediately, confirm in the background, roll the mutation back and
// surface the error if the backend rejects it. Only the acting user's
// own failures are surfaced; push-stream races stay silent.

// React toggles the local user's reaction optimistically.
func (m *Manager) React(ctx context.Context, channelID, messageID, symbol string) {
	st := m.stores.Channel(channelID)
	if ok := st.Mutate(messageID, func(msg *model.Message) {
		msg.ToggleReaction(symbol, m.self.UserID)
	}); !ok {
		return
	}
	m.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: channelID, MessageID: messageID})

	go func(ctx context.Context) {
		if err := m.backend.ToggleReaction(ctx, channelID, messageID, symbol); err != nil {
			m.logger.Warn("reaction failed", zap.String("msg_id", messageID), zap.Error(err))
			st.Mutate(messageID, func(msg *model.Message) {
				msg.ToggleReaction(symbol, m.self.UserID)
			})
			m.fail(channelID, messageID, "react", err)
		}
	}(context.WithoutCancel(ctx))
}

// Edit replaces a message body optimistically.
func (m *Manager) Edit(ctx context.Context, channelID, messageID, body string) {
	st := m.stores.Channel(channelID)
	var prevBody string
	var prevEdited bool
	if ok := st.Mutate(messageID, func(msg *model.Message) {
		prevBody, prevEdited = msg.Body, msg.Edited
		msg.Body = body
		msg.Edited = true
	}); !ok {
		return
	}
	m.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: channelID, MessageID: messageID})

	go func(ctx context.Context) {
		confirmed, err := m.backend.EditMessage(ctx, channelID, messageID, body)
		if err != nil {
			m.logger.Warn("edit failed", zap.String("msg_id", messageID), zap.Error(err))
			st.Mutate(messageID, func(msg *model.Message) {
				msg.Body = prevBody
				msg.Edited = prevEdited
			})
			m.fail(channelID, messageID, "edit", err)
			return
		}
		m.land(confirmed)
	}(context.WithoutCancel(ctx))
}

// Delete removes a message optimistically, restoring it on failure.
func (m *Manager) Delete(ctx context.Context, channelID, messageID string) {
	st := m.stores.Channel(channelID)
	prev, ok := st.Get(messageID)
	if !ok {
		return
	}
	st.Remove(messageID)
	m.bus.Emit(bus.KindMessageRemoved, Ref{ChannelID: channelID, MessageID: messageID})

	go func(ctx context.Context) {
		if err := m.backend.DeleteMessage(ctx, channelID, messageID); err != nil {
			m.logger.Warn("delete failed", zap.String("msg_id", messageID), zap.Error(err))
			st.Upsert(prev)
			m.fail(channelID, messageID, "delete", err)
		}
	}(context.WithoutCancel(ctx))
}

// SetPinned flips a message's pin optimistically.
func (m *Manager) SetPinned(ctx context.Context, channelID, messageID string, pinned bool) {
	st := m.stores.Channel(channelID)
	var prev bool
	if ok := st.Mutate(messageID, func(msg *model.Message) {
		prev = msg.Pinned
		msg.Pinned = pinned
	}); !ok {
		return
	}
	m.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: channelID, MessageID: messageID})

	go func(ctx context.Context) {
		if err := m.backend.SetPinned(ctx, channelID, messageID, pinned); err != nil {
			m.logger.Warn("pin failed", zap.String("msg_id", messageID), zap.Error(err))
			st.Mutate(messageID, func(msg *model.Message) {
				msg.Pinned = prev
			})
			m.fail(channelID, messageID, "pin", err)
		}
	}(context.WithoutCancel(ctx))
}

func (m *Manager) fail(channelID, messageID, action string, err error) {
	m.bus.Emit(bus.KindActionFailed, ActionFailure{
		ChannelID: channelID, MessageID: messageID, Action: action, Err: err.Error(),
	})
	m.bus.Emit(bus.KindMessageUpserted, Ref{ChannelID: channelID, MessageID: messageID})
}
