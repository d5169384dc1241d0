package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Failure sentinels and types for the network exchange. TransportError and
// ServerError carry the detail the retry classification needs; everything
// else is terminal.
var (
	ErrInvalidEndpoint = errors.New("invalid summarization endpoint")
	ErrNoResponseBody  = errors.New("empty response body")
	ErrDecode          = errors.New("response is not valid UTF-8")
)

// TransportError wraps a failure below the HTTP layer.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport failure: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// ServerError is a non-2xx HTTP status from the summarization service.
type ServerError struct {
	Code int
}

func (e *ServerError) Error() string { return fmt.Sprintf("server returned status %d", e.Code) }

// Retryable reports whether a send failure is worth another attempt:
// transport timeouts and connectivity losses, or 5xx server statuses.
func Retryable(err error) bool {
	var srv *ServerError
	if errors.As(err, &srv) {
		return srv.Code >= 500
	}
	var tr *TransportError
	if !errors.As(err, &tr) {
		return false
	}
	if errors.Is(tr.Cause, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(tr.Cause, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(tr.Cause, syscall.ECONNREFUSED) ||
		errors.Is(tr.Cause, syscall.ECONNRESET) ||
		errors.Is(tr.Cause, syscall.EHOSTUNREACH) ||
		errors.Is(tr.Cause, syscall.ENETUNREACH)
}

type chatMessage struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

// Client performs the network exchange with the remote summarization
// service. The response body is treated as an opaque UTF-8 string; the
// delimited JSON blocks inside it are a downstream concern.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the given base endpoint. Generative
// responses are slow, so the timeout should be generous.
func NewClient(endpoint string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send posts the payload as a single user message and returns the raw
// response text. Cancelling ctx aborts the request without a result.
func (c *Client) Send(ctx context.Context, payload string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidEndpoint
	}
	u = u.JoinPath("generate")

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{{
			ID:      uuid.NewString(),
			Role:    "user",
			Content: payload,
		}},
	})
	if err != nil {
		return "", &TransportError{Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", ErrInvalidEndpoint
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ServerError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Cause: err}
	}
	if len(data) == 0 {
		return "", ErrNoResponseBody
	}
	if !utf8.Valid(data) {
		return "", ErrDecode
	}
	return string(data), nil
}
