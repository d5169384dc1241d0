package wa

import (
	"github.com/matheus3301/recap/internal/chatstore"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ParsedMessage is a normalized message ready for ingestion into the mirror.
type ParsedMessage struct {
	ChatJID     string
	MsgID       string
	SenderJID   string
	SenderName  string
	Body        string
	MessageType string
	Forwarded   bool
	LinkTitle   string
	FromMe      bool
	Timestamp   int64
}

// NormalizeJID strips device and agent suffixes so history sync and live
// messages map the same contact to the same chat row.
func NormalizeJID(raw string) string {
	jid, err := types.ParseJID(raw)
	if err != nil {
		return raw
	}
	return jid.ToNonAD().String()
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	p := parseContent(evt.Message)
	p.ChatJID = evt.Info.Chat.ToNonAD().String()
	p.MsgID = evt.Info.ID
	p.SenderJID = evt.Info.Sender.ToNonAD().String()
	p.SenderName = evt.Info.PushName
	p.FromMe = evt.Info.IsFromMe
	p.Timestamp = evt.Info.Timestamp.UnixMilli()
	return p
}

// ParseHistoryMessage normalizes a history sync message.
func ParseHistoryMessage(msg *waE2E.Message, info types.MessageInfo) *ParsedMessage {
	p := parseContent(msg)
	p.ChatJID = info.Chat.ToNonAD().String()
	p.MsgID = info.ID
	p.SenderJID = info.Sender.ToNonAD().String()
	p.SenderName = info.PushName
	p.FromMe = info.IsFromMe
	p.Timestamp = info.Timestamp.UnixMilli()
	return p
}

// ToStoreMessage converts a ParsedMessage to a chatstore.Message. The
// message timestamp doubles as the read-state ordinal.
func (p *ParsedMessage) ToStoreMessage() *chatstore.Message {
	return &chatstore.Message{
		ChatJID:     p.ChatJID,
		MsgID:       p.MsgID,
		Ordinal:     p.Timestamp,
		SenderJID:   p.SenderJID,
		SenderName:  p.SenderName,
		Body:        p.Body,
		MessageType: p.MessageType,
		Forwarded:   p.Forwarded,
		LinkTitle:   p.LinkTitle,
		FromMe:      p.FromMe,
		Timestamp:   p.Timestamp,
	}
}

// ChatKindOf classifies a chat JID by its server part.
func ChatKindOf(jid types.JID) chatstore.ChatKind {
	switch jid.Server {
	case types.DefaultUserServer, types.HiddenUserServer:
		return chatstore.KindPrivate
	case types.GroupServer:
		return chatstore.KindGroup
	case types.NewsletterServer:
		return chatstore.KindCommunity
	default:
		return chatstore.KindUnknown
	}
}

func parseContent(msg *waE2E.Message) *ParsedMessage {
	p := &ParsedMessage{MessageType: "unknown"}
	if msg == nil {
		return p
	}
	switch {
	case msg.GetConversation() != "":
		p.MessageType = "text"
		p.Body = msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		ext := msg.GetExtendedTextMessage()
		p.Body = ext.GetText()
		if ext.GetMatchedText() != "" || ext.GetTitle() != "" {
			p.MessageType = "link"
			p.LinkTitle = ext.GetTitle()
		} else {
			p.MessageType = "text"
		}
		p.Forwarded = ext.GetContextInfo().GetIsForwarded()
	case msg.GetImageMessage() != nil:
		p.MessageType = "image"
		p.Forwarded = msg.GetImageMessage().GetContextInfo().GetIsForwarded()
	case msg.GetVideoMessage() != nil:
		p.MessageType = "video"
		p.Forwarded = msg.GetVideoMessage().GetContextInfo().GetIsForwarded()
	case msg.GetAudioMessage() != nil:
		p.MessageType = "voice"
		p.Forwarded = msg.GetAudioMessage().GetContextInfo().GetIsForwarded()
	case msg.GetDocumentMessage() != nil:
		p.MessageType = "file"
		p.Forwarded = msg.GetDocumentMessage().GetContextInfo().GetIsForwarded()
	case msg.GetStickerMessage() != nil:
		p.MessageType = "image"
	case msg.GetContactMessage() != nil:
		p.MessageType = "contact"
	case msg.GetLocationMessage() != nil:
		p.MessageType = "location"
	}
	return p
}
