package push

import (
	"encoding/json"
	"fmt"

	"github.com/pedrohba/convo/internal/bus"
	"github.com/pedrohba/convo/internal/model"
)

// Envelope is the wire format for all transport-delivered events.
type Envelope struct {
	Type      string          `json:"type"`
	ChannelID string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
}

// Typed payloads published on the bus. The reconciler consumes these;
// nothing else subscribes to push events directly.

// MessageCreated carries a confirmed message from the server.
type MessageCreated struct {
	Message *model.Message
}

// MessageEdited carries a body replacement for an existing message.
type MessageEdited struct {
	ChannelID string
	MessageID string
	Body      string
	EditedAt  int64
}

// MessageDeleted removes a message.
type MessageDeleted struct {
	ChannelID string
	MessageID string
}

// ReactionToggled flips one user's reaction symbol on a message.
type ReactionToggled struct {
	ChannelID string
	MessageID string
	Symbol    string
	UserID    string
}

// PinChanged sets a message's pinned flag.
type PinChanged struct {
	ChannelID string
	MessageID string
	Pinned    bool
}

// MessageRead adds a reader to a message's read set.
type MessageRead struct {
	ChannelID string
	MessageID string
	UserID    string
}

// Typing reports a user starting or stopping typing.
type Typing struct {
	ChannelID string
	UserID    string
	Active    bool
}

// Decode maps a wire envelope to the bus event the reconciler handles.
// Unknown event types return an error and are dropped by the caller;
// the transport makes no promise the daemon understands every kind it
// may add.
func Decode(env Envelope) (bus.Event, error) {
	switch env.Type {
	case "message.created":
		var msg model.Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return bus.Event{}, fmt.Errorf("decode message.created: %w", err)
		}
		if msg.ChannelID == "" {
			msg.ChannelID = env.ChannelID
		}
		return bus.NewEvent(bus.KindPushMessageCreated, MessageCreated{Message: &msg}), nil

	case "message.edited":
		var p struct {
			MessageID string `json:"messageId"`
			Body      string `json:"body"`
			EditedAt  int64  `json:"editedAt"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode message.edited: %w", err)
		}
		return bus.NewEvent(bus.KindPushMessageEdited, MessageEdited{
			ChannelID: env.ChannelID, MessageID: p.MessageID, Body: p.Body, EditedAt: p.EditedAt,
		}), nil

	case "message.deleted":
		var p struct {
			MessageID string `json:"messageId"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode message.deleted: %w", err)
		}
		return bus.NewEvent(bus.KindPushMessageDeleted, MessageDeleted{
			ChannelID: env.ChannelID, MessageID: p.MessageID,
		}), nil

	case "reaction.toggled":
		var p struct {
			MessageID string `json:"messageId"`
			Symbol    string `json:"symbol"`
			UserID    string `json:"userId"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode reaction.toggled: %w", err)
		}
		return bus.NewEvent(bus.KindPushReactionToggled, ReactionToggled{
			ChannelID: env.ChannelID, MessageID: p.MessageID, Symbol: p.Symbol, UserID: p.UserID,
		}), nil

	case "pin.changed":
		var p struct {
			MessageID string `json:"messageId"`
			Pinned    bool   `json:"pinned"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode pin.changed: %w", err)
		}
		return bus.NewEvent(bus.KindPushPinChanged, PinChanged{
			ChannelID: env.ChannelID, MessageID: p.MessageID, Pinned: p.Pinned,
		}), nil

	case "message.read":
		var p struct {
			MessageID string `json:"messageId"`
			UserID    string `json:"userId"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode message.read: %w", err)
		}
		return bus.NewEvent(bus.KindPushMessageRead, MessageRead{
			ChannelID: env.ChannelID, MessageID: p.MessageID, UserID: p.UserID,
		}), nil

	case "typing.started", "typing.stopped":
		var p struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return bus.Event{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return bus.NewEvent(bus.KindPushTyping, Typing{
			ChannelID: env.ChannelID, UserID: p.UserID, Active: env.Type == "typing.started",
		}), nil
	}

	return bus.Event{}, fmt.Errorf("unknown push event type %q", env.Type)
}
