package model

import "testing"

func TestToggleReaction(t *testing.T) {
	m := &Message{ID: "m1"}

	if on := m.ToggleReaction("👍", "u1"); !on {
		t.Error("first toggle should add the reactor")
	}
	if on := m.ToggleReaction("👍", "u1"); on {
		t.Error("second toggle should remove the reactor")
	}
	if len(m.Reactions) != 0 {
		t.Errorf("symbol with no reactors should be dropped, got %v", m.Reactions)
	}
}

func TestToggleReactionKeepsSymbolOrder(t *testing.T) {
	m := &Message{ID: "m1"}
	m.ToggleReaction("🎉", "u1")
	m.ToggleReaction("👍", "u2")
	m.ToggleReaction("🎉", "u3")

	if len(m.Reactions) != 2 {
		t.Fatalf("got %d symbols, want 2", len(m.Reactions))
	}
	// First-insertion order is the display order.
	if m.Reactions[0].Symbol != "🎉" || m.Reactions[1].Symbol != "👍" {
		t.Errorf("symbol order changed: %v", m.Reactions)
	}
	if len(m.Reactions[0].Users) != 2 {
		t.Errorf("🎉 reactors = %v, want u1 and u3", m.Reactions[0].Users)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	m := &Message{ID: "m1"}
	m.MarkRead("u1")
	m.MarkRead("u1")
	if len(m.ReadBy) != 1 {
		t.Errorf("ReadBy = %v, want exactly one u1", m.ReadBy)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := &Message{
		ID:          "m1",
		Attachments: []Attachment{{ID: "a1", Name: "file.png"}},
		Reactions:   []Reaction{{Symbol: "👍", Users: []string{"u1"}}},
		ReadBy:      []string{"u1"},
	}
	c := m.Clone()

	c.Attachments[0].Name = "changed"
	c.Reactions[0].Users[0] = "changed"
	c.ReadBy[0] = "changed"

	if m.Attachments[0].Name != "file.png" {
		t.Error("clone shares attachments with original")
	}
	if m.Reactions[0].Users[0] != "u1" {
		t.Error("clone shares reaction users with original")
	}
	if m.ReadBy[0] != "u1" {
		t.Error("clone shares read set with original")
	}
}

func TestTempIDNamespace(t *testing.T) {
	if !IsTempID(TempIDPrefix + "abc") {
		t.Error("prefixed ID should be recognized as temporary")
	}
	if IsTempID("m123") {
		t.Error("server ID misclassified as temporary")
	}
}
