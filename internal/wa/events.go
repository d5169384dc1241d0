package wa

import (
	"github.com/matheus3301/recap/internal/bus"
	"github.com/matheus3301/recap/internal/chatstore"
	"github.com/matheus3301/recap/internal/status"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// ReadMarker is published when the user marks a chat as read. Ordinal is
// the highest incoming ordinal now considered seen.
type ReadMarker struct {
	ChatJID string
	Ordinal int64
}

// EventHandler processes whatsmeow events, drives the state machine,
// and publishes parsed domain events on the bus. It does NOT touch the
// mirror store directly — the sync engine subscribes to the bus.
type EventHandler struct {
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:     b,
		machine: machine,
		logger:  logger,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		current := h.machine.Current()
		if current == status.AuthRequired || current == status.Reconnecting {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Syncing)
		h.bus.Emit("sync.connected", nil)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
		h.bus.Emit("sync.disconnected", nil)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.MarkChatAsRead:
		h.bus.Emit("wa.read", &ReadMarker{
			ChatJID: evt.JID.ToNonAD().String(),
			Ordinal: evt.Timestamp.UnixMilli(),
		})
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Emit("session.logged_out", evt.Reason.String())
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}

	parsed := ParseLiveMessage(evt)
	h.bus.Emit("wa.message", parsed.ToStoreMessage())
}

// ChatMeta describes a chat discovered during history sync.
type ChatMeta struct {
	Chat     *chatstore.Chat
	Messages []*chatstore.Message
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var batch []*ChatMeta
	for _, conv := range data.GetConversations() {
		jid, err := parseJIDString(conv.GetID())
		if err != nil {
			continue
		}
		chatJID := jid.ToNonAD().String()

		meta := &ChatMeta{
			Chat: &chatstore.Chat{
				JID:         chatJID,
				Title:       conv.GetName(),
				Kind:        ChatKindOf(jid),
				UnreadCount: int(conv.GetUnreadCount()),
			},
		}
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			parsed := parseContent(wmsg.GetMessage())
			parsed.ChatJID = chatJID
			parsed.MsgID = wmsg.GetKey().GetID()
			parsed.SenderJID = NormalizeJID(wmsg.GetKey().GetParticipant())
			parsed.FromMe = wmsg.GetKey().GetFromMe()
			parsed.Timestamp = int64(wmsg.GetMessageTimestamp()) * 1000
			meta.Messages = append(meta.Messages, parsed.ToStoreMessage())
		}
		batch = append(batch, meta)
	}

	if len(batch) > 0 {
		h.bus.Emit("wa.history_batch", batch)
	}
}
