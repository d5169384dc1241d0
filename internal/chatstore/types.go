package chatstore

// ChatKind classifies a mirrored chat.
type ChatKind string

const (
	KindPrivate   ChatKind = "private"
	KindGroup     ChatKind = "group"
	KindCommunity ChatKind = "community"
	KindUnknown   ChatKind = "unknown"
)

// Chat represents a mirrored chat.
type Chat struct {
	JID            string
	Title          string
	Kind           ChatKind
	MemberCount    int
	UnreadCount    int
	MaxReadOrdinal int64
	LastMessageAt  int64
}

// Message represents a mirrored message. Ordinal is the engine-assigned
// monotone position used for read-state comparison.
type Message struct {
	ID          int64
	ChatJID     string
	MsgID       string
	Ordinal     int64
	SenderJID   string
	SenderName  string
	Body        string
	MessageType string
	Forwarded   bool
	LinkTitle   string
	FromMe      bool
	Timestamp   int64
}

// ReadState is the per-chat marker of the highest incoming ordinal the user
// has seen. Absent read state means nothing was ever marked read.
type ReadState struct {
	MaxReadOrdinal int64
}
