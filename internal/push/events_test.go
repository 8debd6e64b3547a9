package push

import (
	"encoding/json"
	"testing"

	"github.com/pedrohba/convo/internal/bus"
)

func envelope(t *testing.T, typ, channel, payload string) Envelope {
	t.Helper()
	return Envelope{Type: typ, ChannelID: channel, Payload: json.RawMessage(payload)}
}

func TestDecodeMessageCreated(t *testing.T) {
	evt, err := Decode(envelope(t, "message.created", "c1",
		`{"id":"m1","body":"hello","senderId":"u1","createdAt":1000}`))
	if err != nil {
		t.Fatal(err)
	}
	if evt.Kind != bus.KindPushMessageCreated {
		t.Errorf("kind = %q", evt.Kind)
	}
	p := evt.Payload.(MessageCreated)
	if p.Message.ID != "m1" || p.Message.Body != "hello" {
		t.Errorf("message = %+v", p.Message)
	}
	if p.Message.ChannelID != "c1" {
		t.Error("channel not filled from envelope")
	}
}

func TestDecodeMessageEdited(t *testing.T) {
	evt, err := Decode(envelope(t, "message.edited", "c1",
		`{"messageId":"m1","body":"v2","editedAt":2000}`))
	if err != nil {
		t.Fatal(err)
	}
	p := evt.Payload.(MessageEdited)
	if p.ChannelID != "c1" || p.MessageID != "m1" || p.Body != "v2" || p.EditedAt != 2000 {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodeMessageDeleted(t *testing.T) {
	evt, err := Decode(envelope(t, "message.deleted", "c1", `{"messageId":"m1"}`))
	if err != nil {
		t.Fatal(err)
	}
	p := evt.Payload.(MessageDeleted)
	if p.MessageID != "m1" {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodeReactionToggled(t *testing.T) {
	evt, err := Decode(envelope(t, "reaction.toggled", "c1",
		`{"messageId":"m1","symbol":"👍","userId":"u1"}`))
	if err != nil {
		t.Fatal(err)
	}
	p := evt.Payload.(ReactionToggled)
	if p.Symbol != "👍" || p.UserID != "u1" {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodePinChanged(t *testing.T) {
	evt, err := Decode(envelope(t, "pin.changed", "c1", `{"messageId":"m1","pinned":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if p := evt.Payload.(PinChanged); !p.Pinned {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodeMessageRead(t *testing.T) {
	evt, err := Decode(envelope(t, "message.read", "c1", `{"messageId":"m1","userId":"u2"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p := evt.Payload.(MessageRead); p.UserID != "u2" {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodeTyping(t *testing.T) {
	started, err := Decode(envelope(t, "typing.started", "c1", `{"userId":"u1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p := started.Payload.(Typing); !p.Active || p.UserID != "u1" {
		t.Errorf("payload = %+v", p)
	}

	stopped, err := Decode(envelope(t, "typing.stopped", "c1", `{"userId":"u1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p := stopped.Payload.(Typing); p.Active {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, err := Decode(envelope(t, "channel.renamed", "c1", `{}`)); err == nil {
		t.Error("unknown event type decoded without error")
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, err := Decode(envelope(t, "message.edited", "c1", `"not an object"`)); err == nil {
		t.Error("malformed payload decoded without error")
	}
}
