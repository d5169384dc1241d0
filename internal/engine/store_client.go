package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/recap/internal/chatstore"
	"go.uber.org/zap"
)

// GroupInfoProvider resolves live member counts for community conversations.
// The WhatsApp adapter implements it via cached group metadata.
type GroupInfoProvider interface {
	GroupMemberCount(ctx context.Context, jid string) (int, error)
}

// StoreClient implements Client on top of the mirror database, delegating
// community member-count lookups to the live adapter when available.
type StoreClient struct {
	db     *chatstore.DB
	groups GroupInfoProvider
	logger *zap.Logger
}

// NewStoreClient creates an engine client backed by the mirror database.
// groups may be nil, in which case mirrored member counts are used as-is.
func NewStoreClient(db *chatstore.DB, groups GroupInfoProvider, logger *zap.Logger) *StoreClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreClient{db: db, groups: groups, logger: logger}
}

// Conversations enumerates all mirrored chats.
func (c *StoreClient) Conversations(_ context.Context) ([]Conversation, error) {
	chats, err := c.db.ListChats()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	out := make([]Conversation, 0, len(chats))
	for _, chat := range chats {
		out = append(out, Conversation{
			ID:          chat.JID,
			Title:       chat.Title,
			Kind:        kindOf(chat.Kind),
			MemberCount: chat.MemberCount,
		})
	}
	return out, nil
}

// MemberCount resolves a community's member count, preferring the live
// adapter's cached metadata and falling back to the mirrored value. A
// successful live lookup refreshes the mirror.
func (c *StoreClient) MemberCount(ctx context.Context, id string) (int, error) {
	if c.groups != nil {
		n, err := c.groups.GroupMemberCount(ctx, id)
		if err == nil {
			if upErr := c.db.UpsertChat(&chatstore.Chat{JID: id, Kind: chatstore.KindUnknown, MemberCount: n}); upErr != nil {
				c.logger.Warn("failed to cache member count", zap.String("jid", id), zap.Error(upErr))
			}
			return n, nil
		}
		c.logger.Warn("live member count lookup failed", zap.String("jid", id), zap.Error(err))
	}
	chat, err := c.db.GetChat(id)
	if err != nil {
		return 0, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return 0, fmt.Errorf("conversation %q not found", id)
	}
	return chat.MemberCount, nil
}

// RecentMessages returns up to limit mirrored messages, newest first, with
// conversation context attached.
func (c *StoreClient) RecentMessages(_ context.Context, id string, limit int) ([]Message, error) {
	chat, err := c.db.GetChat(id)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, fmt.Errorf("conversation %q not found", id)
	}
	msgs, err := c.db.RecentMessages(id, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			ChatID:     m.ChatJID,
			ChatTitle:  chat.Title,
			ChatKind:   kindOf(chat.Kind),
			SenderID:   m.SenderJID,
			SenderName: m.SenderName,
			MsgID:      m.MsgID,
			Ordinal:    m.Ordinal,
			Body:       m.Body,
			MediaType:  m.MessageType,
			Forwarded:  m.Forwarded,
			LinkTitle:  m.LinkTitle,
			FromMe:     m.FromMe,
			Timestamp:  time.UnixMilli(m.Timestamp),
		})
	}
	return out, nil
}

// ReadState returns the chat's read state, or nil when none was recorded.
func (c *StoreClient) ReadState(_ context.Context, id string) (*ReadState, error) {
	rs, err := c.db.GetReadState(id)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if rs == nil {
		return nil, nil
	}
	return &ReadState{MaxReadOrdinal: rs.MaxReadOrdinal}, nil
}

func kindOf(k chatstore.ChatKind) Kind {
	switch k {
	case chatstore.KindPrivate:
		return Private
	case chatstore.KindGroup:
		return Group
	case chatstore.KindCommunity:
		return Community
	default:
		return Unknown
	}
}
