package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"
)

func TestSendSuccess(t *testing.T) {
	var gotPath, gotContentType, gotAccept string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("summary text"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	resp, err := c.Send(context.Background(), "the payload")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp != "summary text" {
		t.Errorf("response = %q, want summary text", resp)
	}
	if gotPath != "/generate" {
		t.Errorf("path = %q, want /generate", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("content-type = %q", gotContentType)
	}
	if gotAccept != "text/event-stream" {
		t.Errorf("accept = %q", gotAccept)
	}

	var req struct {
		Messages []struct {
			ID      string `json:"id"`
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if len(req.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(req.Messages))
	}
	if req.Messages[0].Role != "user" || req.Messages[0].Content != "the payload" {
		t.Errorf("message = %+v", req.Messages[0])
	}
	if req.Messages[0].ID == "" {
		t.Error("message id should be set")
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Send(context.Background(), "p")

	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("error = %T, want ServerError", err)
	}
	if srvErr.Code != http.StatusBadGateway {
		t.Errorf("code = %d, want 502", srvErr.Code)
	}
}

func TestSendEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Send(context.Background(), "p")
	if !errors.Is(err, ErrNoResponseBody) {
		t.Errorf("error = %v, want ErrNoResponseBody", err)
	}
}

func TestSendInvalidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Send(context.Background(), "p")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestSendInvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "not a url", "/relative/only"} {
		c := NewClient(endpoint, time.Second, nil)
		_, err := c.Send(context.Background(), "p")
		if !errors.Is(err, ErrInvalidEndpoint) {
			t.Errorf("Send(%q) error = %v, want ErrInvalidEndpoint", endpoint, err)
		}
	}
}

func TestSendConnectionRefusedIsTransport(t *testing.T) {
	// Reserve a port and close it so nothing is listening.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, nil)
	_, err := c.Send(context.Background(), "p")

	var tr *TransportError
	if !errors.As(err, &tr) {
		t.Fatalf("error = %T, want TransportError", err)
	}
	if !Retryable(err) {
		t.Error("connection refused should be retryable")
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"5xx", &ServerError{Code: 500}, true},
		{"503", &ServerError{Code: 503}, true},
		{"4xx", &ServerError{Code: 404}, false},
		{"429", &ServerError{Code: 429}, false},
		{"refused", &TransportError{Cause: syscall.ECONNREFUSED}, true},
		{"reset", &TransportError{Cause: syscall.ECONNRESET}, true},
		{"host unreachable", &TransportError{Cause: syscall.EHOSTUNREACH}, true},
		{"net unreachable", &TransportError{Cause: syscall.ENETUNREACH}, true},
		{"timeout", &TransportError{Cause: timeoutError{}}, true},
		{"canceled", &TransportError{Cause: context.Canceled}, false},
		{"other transport", &TransportError{Cause: errors.New("tls woes")}, false},
		{"invalid endpoint", ErrInvalidEndpoint, false},
		{"empty body", ErrNoResponseBody, false},
		{"decode", ErrDecode, false},
		{"plain", errors.New("whatever"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
