package summarize

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/matheus3301/recap/internal/bus"
	"github.com/matheus3301/recap/internal/history"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned when a run is requested while another
	// run is in flight. The in-flight run is unaffected.
	ErrAlreadyRunning = errors.New("summarization already running")
	// ErrNoData is returned when no messages of interest were found; no
	// network call is made in that case.
	ErrNoData = errors.New("no messages to summarize")
)

// Sender performs the network exchange. Client implements it.
type Sender interface {
	Send(ctx context.Context, payload string) (string, error)
}

// Coordinator drives one pipeline run end to end: selection, collection,
// request build, network exchange with bounded retries, persistence. At
// most one run is in flight at a time; concurrent callers are rejected,
// not queued.
type Coordinator struct {
	selector  *Selector
	collector *Collector
	sender    Sender
	hist      *history.Manager
	bus       *bus.Bus
	logger    *zap.Logger

	retryAttempts int
	retryDelay    time.Duration

	running atomic.Bool
}

// NewCoordinator wires the pipeline stages together. retryAttempts bounds
// how many times a retryable send failure is re-attempted.
func NewCoordinator(
	selector *Selector,
	collector *Collector,
	sender Sender,
	hist *history.Manager,
	b *bus.Bus,
	retryAttempts int,
	retryDelay time.Duration,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		selector:      selector,
		collector:     collector,
		sender:        sender,
		hist:          hist,
		bus:           b,
		logger:        logger,
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}
}

// Running reports whether a run is currently in flight.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// Run executes one summarization run and returns the raw model response.
// The single-flight guard is cleared on every terminal outcome, success or
// failure.
func (c *Coordinator) Run(ctx context.Context) (string, error) {
	if !c.running.CompareAndSwap(false, true) {
		return "", ErrAlreadyRunning
	}
	defer c.running.Store(false)

	c.emit("summary.started", nil)

	response, count, err := c.run(ctx)
	if err != nil {
		c.emit("summary.failed", err.Error())
		return "", err
	}
	c.emit("summary.completed", count)
	return response, nil
}

func (c *Coordinator) run(ctx context.Context) (string, int, error) {
	convs, err := c.selector.Select(ctx)
	if err != nil {
		return "", 0, err
	}
	if len(convs) == 0 {
		return "", 0, ErrNoData
	}

	items, err := c.collector.Collect(ctx, convs)
	if err != nil {
		return "", 0, err
	}
	if len(items) == 0 {
		return "", 0, ErrNoData
	}

	payload := BuildRequest(items)
	c.logger.Info("summarization request built",
		zap.Int("conversations", len(convs)), zap.Int("messages", len(items)))

	response, err := c.sendWithRetry(ctx, payload)
	if err != nil {
		return "", 0, err
	}

	// Persistence failure is logged but does not fail the run; the remote
	// answer is still delivered to the caller.
	if _, err := c.hist.AddSummary(payload, response, len(items)); err != nil {
		c.logger.Error("failed to persist summary", zap.Error(err))
	}
	return response, len(items), nil
}

func (c *Coordinator) sendWithRetry(ctx context.Context, payload string) (string, error) {
	attemptsLeft := c.retryAttempts
	for {
		response, err := c.sender.Send(ctx, payload)
		if err == nil {
			return response, nil
		}
		if attemptsLeft <= 0 || !Retryable(err) {
			return "", err
		}
		attemptsLeft--
		c.logger.Warn("summarization request failed, retrying",
			zap.Int("attempts_left", attemptsLeft), zap.Error(err))

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}
}

func (c *Coordinator) emit(kind string, payload any) {
	if c.bus != nil {
		c.bus.Emit(kind, payload)
	}
}
