package model

import "strings"

// Kind classifies a message body.
type Kind string

const (
	KindText   Kind = "text"
	KindVoice  Kind = "voice"
	KindSystem Kind = "system"
)

// Role is the sender's workspace role, used only for display styling.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// TempIDPrefix is the reserved identifier namespace for optimistic
// entries. Server identifiers never start with it.
const TempIDPrefix = "tmp-"

// IsTempID reports whether id belongs to the optimistic namespace.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Attachment is a file or voice note attached to a message.
type Attachment struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Kind       string `json:"kind"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// Reaction is one reaction symbol and the users who applied it.
// Reactions are kept as an ordered slice so symbol display order is
// stable (first-insertion order).
type Reaction struct {
	Symbol string   `json:"symbol"`
	Users  []string `json:"users"`
}

// Message is one chat message in a channel.
type Message struct {
	ID           string       `json:"id"`
	ChannelID    string       `json:"channelId"`
	SenderID     string       `json:"senderId"`
	SenderName   string       `json:"senderName"`
	SenderAvatar string       `json:"senderAvatar,omitempty"`
	SenderRole   Role         `json:"senderRole,omitempty"`
	Body         string       `json:"body"`
	Kind         Kind         `json:"kind"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	ReplyTo      string       `json:"replyTo,omitempty"`
	Reactions    []Reaction   `json:"reactions,omitempty"`
	ReadBy       []string     `json:"readBy,omitempty"`
	Edited       bool         `json:"edited"`
	Pinned       bool         `json:"pinned"`
	CreatedAt    int64        `json:"createdAt"` // unix ms
	UpdatedAt    int64        `json:"updatedAt"` // unix ms
}

// Optimistic reports whether the message is a not-yet-confirmed local entry.
func (m *Message) Optimistic() bool {
	return IsTempID(m.ID)
}

// Clone returns a deep copy. Store snapshots hand out clones so readers
// never alias store-owned state.
func (m *Message) Clone() *Message {
	c := *m
	if m.Attachments != nil {
		c.Attachments = make([]Attachment, len(m.Attachments))
		copy(c.Attachments, m.Attachments)
	}
	if m.Reactions != nil {
		c.Reactions = make([]Reaction, len(m.Reactions))
		for i, r := range m.Reactions {
			users := make([]string, len(r.Users))
			copy(users, r.Users)
			c.Reactions[i] = Reaction{Symbol: r.Symbol, Users: users}
		}
	}
	if m.ReadBy != nil {
		c.ReadBy = make([]string, len(m.ReadBy))
		copy(c.ReadBy, m.ReadBy)
	}
	return &c
}

// ToggleReaction flips userID's membership in the symbol's reactor set.
// Returns true if the user is a reactor after the call. A symbol whose
// last reactor leaves is dropped so it does not linger in the display.
func (m *Message) ToggleReaction(symbol, userID string) bool {
	for i := range m.Reactions {
		r := &m.Reactions[i]
		if r.Symbol != symbol {
			continue
		}
		for j, u := range r.Users {
			if u == userID {
				r.Users = append(r.Users[:j], r.Users[j+1:]...)
				if len(r.Users) == 0 {
					m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
				}
				return false
			}
		}
		r.Users = append(r.Users, userID)
		return true
	}
	m.Reactions = append(m.Reactions, Reaction{Symbol: symbol, Users: []string{userID}})
	return true
}

// MarkRead adds userID to the read set (idempotent).
func (m *Message) MarkRead(userID string) {
	for _, u := range m.ReadBy {
		if u == userID {
			return
		}
	}
	m.ReadBy = append(m.ReadBy, userID)
}
