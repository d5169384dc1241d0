package chatstore

import (
	"database/sql"
	"time"
)

// UpsertChat inserts or updates a chat record. Zero member counts, zero
// unread counts and empty titles never overwrite previously known values;
// clearing the unread counter is SetReadState's job.
func (db *DB) UpsertChat(c *Chat) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chats (jid, title, kind, member_count, unread_count, max_read_ordinal, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
			kind = CASE WHEN excluded.kind != 'unknown' THEN excluded.kind ELSE chats.kind END,
			member_count = CASE WHEN excluded.member_count > 0 THEN excluded.member_count ELSE chats.member_count END,
			unread_count = CASE WHEN excluded.unread_count > 0 THEN excluded.unread_count ELSE chats.unread_count END,
			max_read_ordinal = MAX(chats.max_read_ordinal, excluded.max_read_ordinal),
			last_message_at = MAX(chats.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		c.JID, c.Title, c.Kind, c.MemberCount, c.UnreadCount, c.MaxReadOrdinal, c.LastMessageAt, now)
	return err
}

// ListChats returns all chats sorted by last message timestamp descending.
func (db *DB) ListChats() ([]Chat, error) {
	rows, err := db.Query(`
		SELECT jid, title, kind, member_count, unread_count, max_read_ordinal, last_message_at
		FROM chats
		ORDER BY last_message_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.JID, &c.Title, &c.Kind, &c.MemberCount, &c.UnreadCount, &c.MaxReadOrdinal, &c.LastMessageAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat by JID, or nil when absent.
func (db *DB) GetChat(jid string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT jid, title, kind, member_count, unread_count, max_read_ordinal, last_message_at
		FROM chats
		WHERE jid = ?`, jid).
		Scan(&c.JID, &c.Title, &c.Kind, &c.MemberCount, &c.UnreadCount, &c.MaxReadOrdinal, &c.LastMessageAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetReadState advances the chat's maximum seen incoming ordinal and clears
// its unread counter. The ordinal never moves backwards.
func (db *DB) SetReadState(jid string, maxReadOrdinal int64) error {
	_, err := db.Exec(`
		UPDATE chats
		SET max_read_ordinal = MAX(max_read_ordinal, ?), unread_count = 0, updated_at = ?
		WHERE jid = ?`,
		maxReadOrdinal, time.Now().UnixMilli(), jid)
	return err
}

// GetReadState returns the chat's read state, or nil when the chat has no
// recorded read position.
func (db *DB) GetReadState(jid string) (*ReadState, error) {
	var ordinal int64
	err := db.QueryRow(`SELECT max_read_ordinal FROM chats WHERE jid = ?`, jid).Scan(&ordinal)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ordinal == 0 {
		return nil, nil
	}
	return &ReadState{MaxReadOrdinal: ordinal}, nil
}

// IncrementUnread bumps the unread counter for an incoming message.
func (db *DB) IncrementUnread(jid string) error {
	_, err := db.Exec(`
		UPDATE chats SET unread_count = unread_count + 1, updated_at = ? WHERE jid = ?`,
		time.Now().UnixMilli(), jid)
	return err
}
