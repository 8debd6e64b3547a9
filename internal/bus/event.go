package bus

import "time"

// Event kinds published on the bus. Subscribers filter by namespace
// prefix, e.g. "push." receives every transport-delivered event.
const (
	// Transport-delivered events (decoded by internal/push).
	KindPushMessageCreated  = "push.message_created"
	KindPushMessageEdited   = "push.message_edited"
	KindPushMessageDeleted  = "push.message_deleted"
	KindPushReactionToggled = "push.reaction_toggled"
	KindPushPinChanged      = "push.pin_changed"
	KindPushMessageRead     = "push.message_read"
	KindPushTyping          = "push.typing"

	// Store-level notifications emitted by the reconciler and the
	// optimistic manager after a mutation lands.
	KindMessageUpserted   = "message.upserted"
	KindMessageRemoved    = "message.removed"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"
	KindActionFailed      = "message.action_failed"

	// Attachment upload outcomes (per file).
	KindUploadFailed = "attachment.upload_failed"

	// Presence and connection lifecycle.
	KindPresenceChanged  = "presence.changed"
	KindStatusChanged    = "session.status_changed"
	KindPushConnected    = "transport.connected"
	KindPushDisconnected = "transport.disconnected"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent builds an event stamped with the current time. Publishers
// go through this so every event on the bus carries a timestamp.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
