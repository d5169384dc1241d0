package history

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/recap/internal/kv"
	"go.uber.org/zap"
)

// Summary is the public shape of a persisted summarization result.
type Summary struct {
	ID           string
	UserMessage  string
	AIResponse   string
	Timestamp    time.Time
	MessageCount int
}

// contentEnvelope is how a summary is packed into the stored record's
// content field.
type contentEnvelope struct {
	UserMessage  string `json:"userMessage"`
	AIResponse   string `json:"aiResponse"`
	MessageCount int    `json:"messageCount"`
}

// Manager owns the summary history table: id assignment, persistence and
// paginated read-back. All operations run inside a store transaction.
type Manager struct {
	store  *kv.Store
	table  recordTable
	logger *zap.Logger

	mu     sync.Mutex
	nextID int32
}

// NewManager binds a manager to the given store and seeds the sequence
// counter from max(existing ids) + 1.
func NewManager(store *kv.Store, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, table := range []string{tableRecords, tableIndex} {
		if err := store.EnsureTable(table); err != nil {
			return nil, err
		}
	}

	m := &Manager{store: store, logger: logger, nextID: 1}
	err := store.View(func(tx *kv.Tx) error {
		records, skipped, err := m.table.scanAll(tx)
		if err != nil {
			return err
		}
		if skipped > 0 {
			logger.Warn("undecodable summary records skipped", zap.Int("count", skipped))
		}
		for _, rec := range records {
			if rec.ID >= m.nextID {
				m.nextID = rec.ID + 1
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seed summary sequence: %w", err)
	}
	logger.Info("summary history ready", zap.Int32("next_id", m.nextID))
	return m, nil
}

// AddSummary persists a new summary record stamped with the current time
// and returns it. Safe for concurrent use.
func (m *Manager) AddSummary(userMessage, aiResponse string, messageCount int) (Summary, error) {
	content, err := json.Marshal(contentEnvelope{
		UserMessage:  userMessage,
		AIResponse:   aiResponse,
		MessageCount: messageCount,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("encode summary content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := storedRecord{
		ID:        m.nextID,
		Role:      "assistant",
		Content:   string(content),
		Timestamp: nowMillis(),
	}
	err = m.store.Update(func(tx *kv.Tx) error {
		return m.table.insert(tx, rec)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("insert summary: %w", err)
	}
	m.nextID++
	return toSummary(rec), nil
}

// List returns all summaries, most recent first.
func (m *Manager) List() ([]Summary, error) {
	var out []Summary
	err := m.store.View(func(tx *kv.Tx) error {
		records, skipped, err := m.table.scanAll(tx)
		if err != nil {
			return err
		}
		if skipped > 0 {
			m.logger.Warn("undecodable summary records skipped", zap.Int("count", skipped))
		}
		out = summaries(records)
		return nil
	})
	return out, err
}

// ListPaginated returns one page of summaries, most recent first. Pages are
// zero-based; a page past the end is empty, not an error.
func (m *Manager) ListPaginated(page, pageSize int) ([]Summary, error) {
	var out []Summary
	err := m.store.View(func(tx *kv.Tx) error {
		records, skipped, err := m.table.paginate(tx, page, pageSize)
		if err != nil {
			return err
		}
		if skipped > 0 {
			m.logger.Warn("undecodable summary records skipped", zap.Int("count", skipped))
		}
		out = summaries(records)
		return nil
	})
	return out, err
}

// Count returns the number of decodable summary records.
func (m *Manager) Count() (int, error) {
	var n int
	err := m.store.View(func(tx *kv.Tx) error {
		records, _, err := m.table.scanAll(tx)
		if err != nil {
			return err
		}
		n = len(records)
		return nil
	})
	return n, err
}

// DeleteByID removes the record whose public id matches. Returns
// ErrNotFound when no record matches; a repeated delete fails the same way.
func (m *Manager) DeleteByID(id string) error {
	seq, err := strconv.ParseInt(id, 10, 32)
	if err != nil {
		return ErrNotFound
	}
	return m.store.Update(func(tx *kv.Tx) error {
		return m.table.delete(tx, int32(seq))
	})
}

// ClearAll removes every record and resets the sequence counter.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.Update(func(tx *kv.Tx) error {
		records, _, err := m.table.scanAll(tx)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := m.table.delete(tx, rec.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.nextID = 1
	return nil
}

func summaries(records []storedRecord) []Summary {
	out := make([]Summary, 0, len(records))
	for _, rec := range records {
		out = append(out, toSummary(rec))
	}
	return out
}

// toSummary converts the stored payload to the public shape. Content that
// does not parse as an envelope (records written by older builds) degrades
// to a bare response with a zero message count.
func toSummary(rec storedRecord) Summary {
	s := Summary{
		ID:        strconv.FormatInt(int64(rec.ID), 10),
		Timestamp: time.UnixMilli(rec.Timestamp),
	}
	var env contentEnvelope
	if err := json.Unmarshal([]byte(rec.Content), &env); err == nil && env.AIResponse != "" {
		s.UserMessage = env.UserMessage
		s.AIResponse = env.AIResponse
		s.MessageCount = env.MessageCount
	} else {
		s.AIResponse = rec.Content
	}
	return s
}
