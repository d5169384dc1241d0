// Package engine defines the boundary to the host messaging engine: the
// conversation listing, message history and read-state surface the
// summarization pipeline consumes. The production client is backed by the
// local mirror database plus the live adapter for member-count lookups.
package engine

import (
	"context"
	"time"
)

// Kind classifies a conversation.
type Kind string

const (
	Private   Kind = "private"
	Group     Kind = "group"
	Community Kind = "community"
	Unknown   Kind = "unknown"
)

// Conversation is a chat as seen by the selector. MemberCount is known
// directly for basic groups; for communities it requires a MemberCount
// lookup before it can be trusted.
type Conversation struct {
	ID          string
	Title       string
	Kind        Kind
	MemberCount int
}

// Message is one mirrored message with its conversation context attached.
type Message struct {
	ChatID     string
	ChatTitle  string
	ChatKind   Kind
	SenderID   string
	SenderName string
	MsgID      string
	Ordinal    int64
	Body       string
	MediaType  string
	Forwarded  bool
	LinkTitle  string
	FromMe     bool
	Timestamp  time.Time
}

// ReadState marks the highest incoming ordinal the user has seen in a
// conversation. A nil ReadState means nothing was ever marked read.
type ReadState struct {
	MaxReadOrdinal int64
}

// Client is the messaging-engine surface consumed by the pipeline.
type Client interface {
	// Conversations enumerates all known conversations.
	Conversations(ctx context.Context) ([]Conversation, error)
	// MemberCount resolves the member count of a community conversation
	// from the engine's cached metadata.
	MemberCount(ctx context.Context, id string) (int, error)
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, id string, limit int) ([]Message, error)
	// ReadState returns the conversation's read state, or nil if none exists.
	ReadState(ctx context.Context, id string) (*ReadState, error)
}
