package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pedrohba/convo/internal/model"
)

// UpsertMessage writes a confirmed message through to the cache
// (idempotent on channel_id + msg_id). Optimistic entries are skipped:
// the cache only ever holds server truth.
func (db *DB) UpsertMessage(m *model.Message) error {
	if m.Optimistic() {
		return nil
	}

	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	reactions, err := json.Marshal(m.Reactions)
	if err != nil {
		return fmt.Errorf("marshal reactions: %w", err)
	}
	readBy, err := json.Marshal(m.ReadBy)
	if err != nil {
		return fmt.Errorf("marshal read_by: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO messages (channel_id, msg_id, sender_id, sender_name, sender_avatar, sender_role,
			body, kind, reply_to, attachments, reactions, read_by, edited, pinned, created_at, updated_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			sender_avatar = excluded.sender_avatar,
			sender_role = excluded.sender_role,
			body = excluded.body,
			reply_to = excluded.reply_to,
			attachments = excluded.attachments,
			reactions = excluded.reactions,
			read_by = excluded.read_by,
			edited = excluded.edited,
			pinned = excluded.pinned,
			updated_at = excluded.updated_at,
			cached_at = excluded.cached_at`,
		m.ChannelID, m.ID, m.SenderID, m.SenderName, m.SenderAvatar, string(m.SenderRole),
		m.Body, string(m.Kind), m.ReplyTo, string(attachments), string(reactions), string(readBy),
		m.Edited, m.Pinned, m.CreatedAt, m.UpdatedAt, time.Now().UnixMilli())
	return err
}

// DeleteMessage removes a message from the cache. No-op if absent.
func (db *DB) DeleteMessage(channelID, msgID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE channel_id = ? AND msg_id = ?`, channelID, msgID)
	return err
}

// ListMessages returns cached messages for a channel using keyset
// pagination by creation timestamp, newest page first, each page in
// ascending order.
func (db *DB) ListMessages(channelID string, beforeTs int64, limit int) ([]*model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT channel_id, msg_id, sender_id, sender_name, sender_avatar, sender_role,
			body, kind, reply_to, attachments, reactions, read_by, edited, pinned, created_at, updated_at
		FROM messages
		WHERE channel_id = ? AND created_at < ?
		ORDER BY created_at DESC, msg_id DESC
		LIMIT ?`, channelID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Flip to ascending chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Channels returns the distinct channel IDs present in the cache.
func (db *DB) Channels() ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT channel_id FROM messages ORDER BY channel_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	var role, kind, attachments, reactions, readBy string
	if err := row.Scan(&m.ChannelID, &m.ID, &m.SenderID, &m.SenderName, &m.SenderAvatar, &role,
		&m.Body, &kind, &m.ReplyTo, &attachments, &reactions, &readBy,
		&m.Edited, &m.Pinned, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.SenderRole = model.Role(role)
	m.Kind = model.Kind(kind)
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshal attachments: %w", err)
	}
	if err := json.Unmarshal([]byte(reactions), &m.Reactions); err != nil {
		return nil, fmt.Errorf("unmarshal reactions: %w", err)
	}
	if err := json.Unmarshal([]byte(readBy), &m.ReadBy); err != nil {
		return nil, fmt.Errorf("unmarshal read_by: %w", err)
	}
	return &m, nil
}
