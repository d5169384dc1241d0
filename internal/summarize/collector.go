package summarize

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matheus3301/recap/internal/engine"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Collector gathers the messages of interest from the selected
// conversations and normalizes them into request items.
type Collector struct {
	client       engine.Client
	window       int
	lookback     time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// NewCollector creates a collector. window bounds how many recent messages
// are fetched per conversation; lookback bounds how old a message may be.
func NewCollector(client engine.Client, window int, lookback, fetchTimeout time.Duration, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		client:       client,
		window:       window,
		lookback:     lookback,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Collect fetches each conversation's recent messages and read state
// concurrently, keeps the unread messages inside the lookback window, and
// returns them flattened newest-first. A conversation whose fetch fails or
// times out is skipped; the join never stalls on one branch.
func (c *Collector) Collect(ctx context.Context, convs []engine.Conversation) ([]Item, error) {
	cutoff := time.Now().Add(-c.lookback)

	var (
		mu        sync.Mutex
		collected []engine.Message
	)
	g, gctx := errgroup.WithContext(ctx)

	for _, conv := range convs {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, c.fetchTimeout)
			defer cancel()

			msgs, err := c.client.RecentMessages(fctx, conv.ID, c.window)
			if err != nil {
				c.logger.Warn("message fetch failed, skipping conversation",
					zap.String("chat", conv.ID), zap.Error(err))
				return nil
			}
			readState, err := c.client.ReadState(fctx, conv.ID)
			if err != nil {
				c.logger.Warn("read state fetch failed, skipping conversation",
					zap.String("chat", conv.ID), zap.Error(err))
				return nil
			}

			var keep []engine.Message
			for _, m := range msgs {
				if m.FromMe {
					continue
				}
				if m.Timestamp.Before(cutoff) {
					continue
				}
				if readState != nil && m.Ordinal <= readState.MaxReadOrdinal {
					continue
				}
				keep = append(keep, m)
			}
			if len(keep) > 0 {
				mu.Lock()
				collected = append(collected, keep...)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Timestamp.After(collected[j].Timestamp)
	})

	items := make([]Item, 0, len(collected))
	for _, m := range collected {
		items = append(items, normalizeItem(m))
	}
	return items, nil
}
