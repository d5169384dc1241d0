package sync

import (
	"context"

	"github.com/matheus3301/recap/internal/bus"
	"github.com/matheus3301/recap/internal/chatstore"
	"github.com/matheus3301/recap/internal/wa"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
)

// Engine consumes WhatsApp events from the bus and applies them to the
// local mirror store. It is the only writer of the mirror database.
type Engine struct {
	db     *chatstore.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(db *chatstore.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to WhatsApp events and begins applying them.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	events, unsub := e.bus.Subscribe("wa.", 256)
	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-events:
				e.apply(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts down the event loop and waits for it to drain.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) apply(evt bus.Event) {
	switch evt.Kind {
	case "wa.message":
		msg, ok := evt.Payload.(*chatstore.Message)
		if !ok {
			return
		}
		e.applyMessage(msg)
	case "wa.history_batch":
		batch, ok := evt.Payload.([]*wa.ChatMeta)
		if !ok {
			return
		}
		e.applyHistoryBatch(batch)
	case "wa.read":
		marker, ok := evt.Payload.(*wa.ReadMarker)
		if !ok {
			return
		}
		e.applyReadMarker(marker)
	}
}

func (e *Engine) applyMessage(msg *chatstore.Message) {
	kind := chatstore.KindUnknown
	if jid, err := types.ParseJID(msg.ChatJID); err == nil {
		kind = wa.ChatKindOf(jid)
	}

	if err := e.db.UpsertChat(&chatstore.Chat{
		JID:           msg.ChatJID,
		Kind:          kind,
		LastMessageAt: msg.Timestamp,
	}); err != nil {
		e.logger.Error("failed to upsert chat", zap.String("chat", msg.ChatJID), zap.Error(err))
		return
	}

	if err := e.db.UpsertMessage(msg); err != nil {
		e.logger.Error("failed to upsert message",
			zap.String("chat", msg.ChatJID),
			zap.String("msg_id", msg.MsgID),
			zap.Error(err))
		return
	}

	if !msg.FromMe {
		if err := e.db.IncrementUnread(msg.ChatJID); err != nil {
			e.logger.Warn("failed to bump unread counter", zap.String("chat", msg.ChatJID), zap.Error(err))
		}
	}

	e.bus.Emit("sync.message_stored", msg.ChatJID)
}

func (e *Engine) applyHistoryBatch(batch []*wa.ChatMeta) {
	chats := 0
	messages := 0
	for _, meta := range batch {
		if meta.Chat == nil {
			continue
		}
		for _, m := range meta.Messages {
			if m.Timestamp > meta.Chat.LastMessageAt {
				meta.Chat.LastMessageAt = m.Timestamp
			}
		}
		if err := e.db.UpsertChat(meta.Chat); err != nil {
			e.logger.Error("failed to upsert chat from history", zap.String("chat", meta.Chat.JID), zap.Error(err))
			continue
		}
		chats++
		for _, m := range meta.Messages {
			if err := e.db.UpsertMessage(m); err != nil {
				e.logger.Warn("failed to upsert history message",
					zap.String("chat", m.ChatJID),
					zap.String("msg_id", m.MsgID),
					zap.Error(err))
				continue
			}
			messages++
		}
	}

	e.logger.Info("history batch applied", zap.Int("chats", chats), zap.Int("messages", messages))
	e.bus.Emit("sync.history_applied", chats)
}

func (e *Engine) applyReadMarker(marker *wa.ReadMarker) {
	if err := e.db.SetReadState(marker.ChatJID, marker.Ordinal); err != nil {
		e.logger.Error("failed to apply read marker", zap.String("chat", marker.ChatJID), zap.Error(err))
		return
	}
	e.bus.Emit("sync.read_applied", marker.ChatJID)
}
