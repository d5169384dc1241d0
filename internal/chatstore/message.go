package chatstore

import "time"

// UpsertMessage inserts or updates a message (idempotent on chat_jid + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (chat_jid, msg_id, ordinal, sender_jid, sender_name, body, message_type, forwarded, link_title, from_me, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_jid, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body,
			message_type = excluded.message_type,
			forwarded = excluded.forwarded,
			link_title = excluded.link_title`,
		m.ChatJID, m.MsgID, m.Ordinal, m.SenderJID, m.SenderName, m.Body, m.MessageType, m.Forwarded, m.LinkTitle, m.FromMe, m.Timestamp, now)
	return err
}

// RecentMessages returns up to limit messages for a chat, newest first.
func (db *DB) RecentMessages(chatJID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, chat_jid, msg_id, ordinal, sender_jid, sender_name, body, message_type, forwarded, link_title, from_me, timestamp
		FROM messages
		WHERE chat_jid = ?
		ORDER BY timestamp DESC
		LIMIT ?`, chatJID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatJID, &m.MsgID, &m.Ordinal, &m.SenderJID, &m.SenderName, &m.Body, &m.MessageType, &m.Forwarded, &m.LinkTitle, &m.FromMe, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
