package summarize

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/recap/internal/engine"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Selector picks the conversations worth summarizing: every direct chat,
// plus groups and communities below the member-count threshold.
type Selector struct {
	client        engine.Client
	threshold     int
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// NewSelector creates a selector with the given member-count threshold and
// per-lookup timeout.
func NewSelector(client engine.Client, threshold int, lookupTimeout time.Duration, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		client:        client,
		threshold:     threshold,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// Select enumerates all conversations and applies the size policy. Member
// counts for communities are resolved concurrently; a lookup that fails or
// times out excludes that conversation instead of stalling the join.
func (s *Selector) Select(ctx context.Context) ([]engine.Conversation, error) {
	convs, err := s.client.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		selected []engine.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)

	for _, conv := range convs {
		switch conv.Kind {
		case engine.Private:
			mu.Lock()
			selected = append(selected, conv)
			mu.Unlock()
		case engine.Group:
			if conv.MemberCount < s.threshold {
				mu.Lock()
				selected = append(selected, conv)
				mu.Unlock()
			}
		case engine.Community:
			g.Go(func() error {
				lctx, cancel := context.WithTimeout(gctx, s.lookupTimeout)
				defer cancel()
				n, err := s.client.MemberCount(lctx, conv.ID)
				if err != nil {
					s.logger.Warn("member count lookup failed, excluding conversation",
						zap.String("chat", conv.ID), zap.Error(err))
					return nil
				}
				if n < s.threshold {
					conv.MemberCount = n
					mu.Lock()
					selected = append(selected, conv)
					mu.Unlock()
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return selected, nil
}
