package summarize

import (
	"fmt"

	"github.com/matheus3301/recap/internal/engine"
)

// Item is one normalized message in the outbound request payload. Field
// names match the wire contract of the summarization service.
type Item struct {
	ChatID     string `json:"chatId"`
	ChatTitle  string `json:"chatTitle"`
	ChatType   string `json:"chatType"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Date       int64  `json:"date"`
	MessageID  string `json:"messageId"`
	Content    string `json:"content"`
}

// normalizeItem maps an engine message to its request representation.
// Media degrades to a bracketed placeholder and forwarded messages carry a
// marker prefix so the model can tell relayed content apart.
func normalizeItem(m engine.Message) Item {
	return Item{
		ChatID:     m.ChatID,
		ChatTitle:  m.ChatTitle,
		ChatType:   string(m.ChatKind),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Date:       m.Timestamp.Unix(),
		MessageID:  m.MsgID,
		Content:    normalizeContent(m),
	}
}

func normalizeContent(m engine.Message) string {
	var content string
	switch m.MediaType {
	case "", "text":
		content = m.Body
	case "image", "sticker":
		content = "[image]"
	case "video":
		content = "[video]"
	case "audio", "voice":
		content = "[voice]"
	case "document", "file":
		content = "[file]"
	case "link":
		if m.LinkTitle != "" {
			content = fmt.Sprintf("[link: %s]", m.LinkTitle)
		} else {
			content = "[link]"
		}
	case "contact":
		content = "[contact]"
	case "location":
		content = "[location]"
	default:
		content = "[message]"
	}
	if content == "" {
		content = "[message]"
	}
	if m.Forwarded {
		content = "[forwarded] " + content
	}
	return content
}
