package summarize

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/recap/internal/bus"
	"github.com/matheus3301/recap/internal/engine"
	"github.com/matheus3301/recap/internal/history"
	"github.com/matheus3301/recap/internal/kv"
)

// fakeSender is a scriptable Sender. Each call pops the next scripted
// error; past the script, calls succeed with the fixed response.
type fakeSender struct {
	mu       sync.Mutex
	errs     []error
	response string
	calls    int
	block    chan struct{} // when set, Send waits until closed
}

func (f *fakeSender) Send(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return f.response, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testHistory(t *testing.T) *history.Manager {
	t.Helper()
	store, err := kv.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	m, err := history.NewManager(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func oneMessageEngine(now time.Time, n int) *fakeEngine {
	msgs := make([]engine.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, engine.Message{
			ChatID: "c1", ChatTitle: "Alice", ChatKind: engine.Private,
			MsgID: "m" + string(rune('0'+i)), Ordinal: int64(i + 1),
			Body: "hello", MediaType: "text",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	return &fakeEngine{
		convs:    []engine.Conversation{{ID: "c1", Kind: engine.Private}},
		messages: map[string][]engine.Message{"c1": msgs},
	}
}

func testCoordinator(t *testing.T, fake *fakeEngine, sender Sender, retries int, delay time.Duration) (*Coordinator, *history.Manager, *bus.Bus) {
	t.Helper()
	hist := testHistory(t)
	b := bus.New()
	selector := NewSelector(fake, 50, time.Second, nil)
	collector := NewCollector(fake, 50, 7*24*time.Hour, time.Second, nil)
	return NewCoordinator(selector, collector, sender, hist, b, retries, delay, nil), hist, b
}

func TestRunEndToEnd(t *testing.T) {
	sender := &fakeSender{response: "OK"}
	c, hist, b := testCoordinator(t, oneMessageEngine(time.Now(), 2), sender, 3, time.Millisecond)

	ch, unsub := b.Subscribe("summary.", 10)
	defer unsub()

	resp, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp != "OK" {
		t.Errorf("response = %q, want OK", resp)
	}

	// Persisted with the message count.
	summaries, err := hist.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1", len(summaries))
	}
	if summaries[0].AIResponse != "OK" {
		t.Errorf("stored response = %q, want OK", summaries[0].AIResponse)
	}
	if summaries[0].MessageCount != 2 {
		t.Errorf("stored message count = %d, want 2", summaries[0].MessageCount)
	}
	if summaries[0].UserMessage == "" {
		t.Error("stored request payload is empty")
	}

	kinds := map[string]bool{}
	for len(ch) > 0 {
		kinds[(<-ch).Kind] = true
	}
	if !kinds["summary.started"] || !kinds["summary.completed"] {
		t.Errorf("events = %v, want started and completed", kinds)
	}
}

func TestRunNoConversations(t *testing.T) {
	sender := &fakeSender{response: "OK"}
	c, hist, _ := testCoordinator(t, &fakeEngine{}, sender, 3, time.Millisecond)

	_, err := c.Run(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Run() error = %v, want ErrNoData", err)
	}
	if sender.callCount() != 0 {
		t.Error("no network call should happen without data")
	}
	n, _ := hist.Count()
	if n != 0 {
		t.Errorf("history count = %d, want 0", n)
	}
}

func TestRunNoMessages(t *testing.T) {
	fake := &fakeEngine{
		convs: []engine.Conversation{{ID: "c1", Kind: engine.Private}},
	}
	sender := &fakeSender{response: "OK"}
	c, _, _ := testCoordinator(t, fake, sender, 3, time.Millisecond)

	_, err := c.Run(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Run() error = %v, want ErrNoData", err)
	}
	if sender.callCount() != 0 {
		t.Error("no network call should happen without messages")
	}
}

// TestRunRetriesRetryableFailures verifies the bounded retry loop: three
// retryable failures consume the budget, the fourth attempt succeeds.
func TestRunRetriesRetryableFailures(t *testing.T) {
	sender := &fakeSender{
		response: "recovered",
		errs: []error{
			&ServerError{Code: 502},
			&TransportError{Cause: timeoutError{}},
			&ServerError{Code: 500},
		},
	}
	c, _, _ := testCoordinator(t, oneMessageEngine(time.Now(), 1), sender, 3, time.Millisecond)

	resp, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp != "recovered" {
		t.Errorf("response = %q, want recovered", resp)
	}
	if sender.callCount() != 4 {
		t.Errorf("send calls = %d, want 4 (1 + 3 retries)", sender.callCount())
	}
}

func TestRunRetryBudgetExhausted(t *testing.T) {
	sender := &fakeSender{
		response: "never",
		errs: []error{
			&ServerError{Code: 500},
			&ServerError{Code: 500},
			&ServerError{Code: 500},
			&ServerError{Code: 500},
		},
	}
	c, hist, _ := testCoordinator(t, oneMessageEngine(time.Now(), 1), sender, 3, time.Millisecond)

	_, err := c.Run(context.Background())
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("Run() error = %v, want ServerError", err)
	}
	if sender.callCount() != 4 {
		t.Errorf("send calls = %d, want 4 (budget exhausted)", sender.callCount())
	}
	n, _ := hist.Count()
	if n != 0 {
		t.Errorf("history count = %d, want 0 after failed run", n)
	}
}

// TestRunTerminalErrorNoRetry verifies a non-retryable failure short-circuits
// the retry loop.
func TestRunTerminalErrorNoRetry(t *testing.T) {
	sender := &fakeSender{
		response: "never",
		errs:     []error{&ServerError{Code: 400}},
	}
	c, _, _ := testCoordinator(t, oneMessageEngine(time.Now(), 1), sender, 3, time.Millisecond)

	_, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail")
	}
	if sender.callCount() != 1 {
		t.Errorf("send calls = %d, want 1 (no retry on 4xx)", sender.callCount())
	}
}

// TestRunSingleFlight verifies a second Run while one is in flight is
// rejected immediately, and that the guard clears afterwards.
func TestRunSingleFlight(t *testing.T) {
	block := make(chan struct{})
	sender := &fakeSender{response: "OK", block: block}
	c, _, _ := testCoordinator(t, oneMessageEngine(time.Now(), 1), sender, 0, time.Millisecond)

	var firstErr error
	var firstResp string
	done := make(chan struct{})
	go func() {
		defer close(done)
		firstResp, firstErr = c.Run(context.Background())
	}()

	// Wait until the first run reaches the sender.
	deadline := time.Now().Add(2 * time.Second)
	for sender.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first run never reached the sender")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !c.Running() {
		t.Error("Running() = false during an in-flight run")
	}

	if _, err := c.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("concurrent Run() error = %v, want ErrAlreadyRunning", err)
	}

	close(block)
	<-done
	if firstErr != nil {
		t.Fatalf("first Run() error = %v", firstErr)
	}
	if firstResp != "OK" {
		t.Errorf("first response = %q, want OK", firstResp)
	}

	// The rejected call must not have poisoned the guard.
	if c.Running() {
		t.Error("Running() = true after run completed")
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Errorf("follow-up Run() error = %v", err)
	}
}

// TestGuardClearsAfterFailure verifies the single-flight guard is released
// on a failed run, not just on success.
func TestGuardClearsAfterFailure(t *testing.T) {
	sender := &fakeSender{errs: []error{&ServerError{Code: 400}}, response: "OK"}
	c, _, _ := testCoordinator(t, oneMessageEngine(time.Now(), 1), sender, 0, time.Millisecond)

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("first Run() should fail")
	}
	if c.Running() {
		t.Fatal("guard still set after failed run")
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Errorf("second Run() error = %v", err)
	}
}

func TestRunConcurrentHammer(t *testing.T) {
	block := make(chan struct{})
	sender := &fakeSender{response: "OK", block: block}
	c, _, _ := testCoordinator(t, oneMessageEngine(time.Now(), 1), sender, 0, time.Millisecond)

	var wg sync.WaitGroup
	var successes, rejections atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Run(context.Background())
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyRunning):
				rejections.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	// Let one run win the guard, then release it.
	deadline := time.Now().Add(2 * time.Second)
	for sender.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no run reached the sender")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if successes.Load() < 1 {
		t.Error("no run succeeded")
	}
	if successes.Load()+rejections.Load() != 8 {
		t.Errorf("successes=%d rejections=%d, want total 8", successes.Load(), rejections.Load())
	}
}

// TestRunCancelDuringRetryWait verifies cancellation interrupts the delay
// between attempts.
func TestRunCancelDuringRetryWait(t *testing.T) {
	sender := &fakeSender{
		response: "never",
		errs:     []error{&ServerError{Code: 500}},
	}
	c, _, _ := testCoordinator(t, oneMessageEngine(time.Now(), 1), sender, 3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the retry wait")
	}
	if c.Running() {
		t.Error("guard still set after cancelled run")
	}
}
