package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/matheus3301/recap/internal/session"
	qrcode "github.com/skip2/go-qrcode"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := newClient(session.SocketPath(sessionName))

	switch args[0] {
	case "status":
		cmdStatus(c, *jsonFlag)
	case "auth":
		cmdAuth(c)
	case "run":
		cmdRun(c, *jsonFlag)
	case "history":
		cmdHistory(c, args[1:], *jsonFlag)
	case "count":
		cmdCount(c, *jsonFlag)
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: recapctl delete <id>")
			os.Exit(1)
		}
		cmdDelete(c, args[1])
	case "clear":
		cmdClear(c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: recapctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                         Show session status")
	fmt.Fprintln(os.Stderr, "  auth                           Pair by scanning a QR code")
	fmt.Fprintln(os.Stderr, "  run                            Run a summarization now")
	fmt.Fprintln(os.Stderr, "  history [--page N] [--size N]  List past summaries")
	fmt.Fprintln(os.Stderr, "  count                          Count past summaries")
	fmt.Fprintln(os.Stderr, "  delete <id>                    Delete one summary")
	fmt.Fprintln(os.Stderr, "  clear                          Delete all summaries")
}

// client speaks HTTP to the daemon over its Unix socket.
type client struct {
	http       *http.Client
	socketPath string
}

func newClient(socketPath string) *client {
	return &client{
		socketPath: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *client) do(method, path string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, "http://recapd"+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s: %w", c.socketPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s", e.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out != nil && len(body) > 0 {
		return json.Unmarshal(body, out)
	}
	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdStatus(c *client, jsonOut bool) {
	var resp struct {
		State    string `json:"state"`
		LoggedIn bool   `json:"logged_in"`
		Phone    string `json:"phone"`
		Running  bool   `json:"running"`
	}
	if err := c.do(http.MethodGet, "/v1/status", 10*time.Second, &resp); err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("State:     %s\n", resp.State)
	fmt.Printf("Logged in: %v\n", resp.LoggedIn)
	if resp.Phone != "" {
		fmt.Printf("Phone:     %s\n", resp.Phone)
	}
	if resp.Running {
		fmt.Println("A summarization run is in progress.")
	}
}

func cmdAuth(c *client) {
	var resp struct {
		Status string `json:"status"`
		QRCode string `json:"qr_code"`
	}
	if err := c.do(http.MethodPost, "/v1/auth", 45*time.Second, &resp); err != nil {
		fail(err)
	}
	switch resp.Status {
	case "already_authenticated":
		fmt.Println("Session already authenticated.")
	case "authenticated":
		fmt.Println("Authenticated.")
	case "qr_code":
		q, err := qrcode.New(resp.QRCode, qrcode.Medium)
		if err != nil {
			fail(err)
		}
		fmt.Println("Scan this QR code with WhatsApp on your phone:")
		fmt.Println(q.ToSmallString(false))
		fmt.Println("Run 'recapctl status' to check pairing progress.")
	default:
		fmt.Printf("Auth status: %s\n", resp.Status)
	}
}

func cmdRun(c *client, jsonOut bool) {
	var resp struct {
		Response string `json:"response"`
	}
	// Selection, collection and the remote exchange with retries can take
	// a while; give the run plenty of room.
	if err := c.do(http.MethodPost, "/v1/summaries/run", 10*time.Minute, &resp); err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Println(resp.Response)
}

func cmdHistory(c *client, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	page := fs.Int("page", 0, "zero-based page number")
	size := fs.Int("size", 20, "page size")
	_ = fs.Parse(args)

	path := "/v1/summaries/?page=" + strconv.Itoa(*page) + "&page_size=" + strconv.Itoa(*size)
	var resp struct {
		Summaries []struct {
			ID           string    `json:"id"`
			AIResponse   string    `json:"ai_response"`
			Timestamp    time.Time `json:"timestamp"`
			MessageCount int       `json:"message_count"`
		} `json:"summaries"`
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	if err := c.do(http.MethodGet, path, 10*time.Second, &resp); err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Summaries) == 0 {
		fmt.Println("No summaries found.")
		return
	}
	for _, s := range resp.Summaries {
		fmt.Printf("--- #%s  %s  (%d messages)\n", s.ID, s.Timestamp.Local().Format(time.RFC822), s.MessageCount)
		fmt.Println(s.AIResponse)
		fmt.Println()
	}
}

func cmdCount(c *client, jsonOut bool) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(http.MethodGet, "/v1/summaries/count", 10*time.Second, &resp); err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("%d\n", resp.Count)
}

func cmdDelete(c *client, id string) {
	if err := c.do(http.MethodDelete, "/v1/summaries/"+id, 10*time.Second, nil); err != nil {
		fail(err)
	}
	fmt.Printf("Deleted summary %s.\n", id)
}

func cmdClear(c *client) {
	if err := c.do(http.MethodDelete, "/v1/summaries/", 10*time.Second, nil); err != nil {
		fail(err)
	}
	fmt.Println("Summary history cleared.")
}

func outputJSON(v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		return
	}
	_, _ = os.Stdout.Write(buf.Bytes())
}
