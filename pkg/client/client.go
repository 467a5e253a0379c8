package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/riskfeed/pkg/scheduler"
	"github.com/cuemby/riskfeed/pkg/types"
)

// DefaultTimeout bounds every non-streaming request
const DefaultTimeout = 10 * time.Second

// ErrNotFound is returned when the server answers 404
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps 404 responses to ErrNotFound
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to a riskfeed server over HTTP
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a client for the server at addr. addr may omit the scheme.
func NewClient(addr string) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q: missing host", addr)
	}

	return &Client{
		baseURL: u,
		// No client timeout: Watch holds the connection open
		http: &http.Client{},
	}, nil
}

// Health checks liveness
func (c *Client) Health() error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.get("/api/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("server reported status %q", resp.Status)
	}
	return nil
}

// ListAlerts returns the newest alerts. limit <= 0 uses the server default.
func (c *Client) ListAlerts(limit int) ([]*types.Alert, error) {
	var alerts []*types.Alert
	if err := c.get("/api/alerts", limitQuery(limit), &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// ListCases returns all cases, most recently updated first
func (c *Client) ListCases() ([]*types.Case, error) {
	var cases []*types.Case
	if err := c.get("/api/cases", nil, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// GetCase returns a case with related records
func (c *Client) GetCase(id string) (*types.CaseDetail, error) {
	var detail types.CaseDetail
	if err := c.get("/api/cases/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateCaseStatus moves a case to status and returns the updated case
func (c *Client) UpdateCaseStatus(id string, status types.CaseStatus) (*types.Case, error) {
	var updated types.Case
	body := map[string]types.CaseStatus{"status": status}
	if err := c.send(http.MethodPatch, "/api/cases/"+url.PathEscape(id), body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListTransactions returns the newest transactions. limit <= 0 uses the server default.
func (c *Client) ListTransactions(limit int) ([]*types.Transaction, error) {
	var txns []*types.Transaction
	if err := c.get("/api/transactions", limitQuery(limit), &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// Metrics returns the current metrics snapshot
func (c *Client) Metrics() (types.Metrics, error) {
	var m types.Metrics
	err := c.get("/api/metrics", nil, &m)
	return m, err
}

// FeedStatus returns the feed scheduler state
func (c *Client) FeedStatus() (scheduler.Status, error) {
	var st scheduler.Status
	err := c.get("/api/feed/status", nil, &st)
	return st, err
}

// PauseFeed pauses synthesis
func (c *Client) PauseFeed() (scheduler.Status, error) {
	var st scheduler.Status
	err := c.post("/api/feed/pause", &st)
	return st, err
}

// ResumeFeed resumes synthesis
func (c *Client) ResumeFeed() (scheduler.Status, error) {
	var st scheduler.Status
	err := c.post("/api/feed/resume", &st)
	return st, err
}

// RunResult holds the records produced by a manual synthesis cycle. Alert
// and Case are nil when the cycle raised none.
type RunResult struct {
	Transaction *types.Transaction `json:"transaction"`
	Alert       *types.Alert       `json:"alert"`
	Case        *types.Case        `json:"case"`
}

// RunFeed runs one synthesis cycle immediately
func (c *Client) RunFeed() (*RunResult, error) {
	var res RunResult
	if err := c.post("/api/feed/run", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Event is one event read from the push stream. Exactly one of Metrics and
// Alert is set.
type Event struct {
	Type    string
	Metrics *types.Metrics
	Alert   *types.Alert
}

// Watch reads the push stream and calls fn for every event until ctx is
// done, the server closes the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/stream", nil), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	err = readStream(resp.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readStream parses text/event-stream framing. Comment lines are skipped.
func readStream(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name == "" && data.Len() == 0 {
				continue
			}
			ev, err := decodeEvent(name, data.String())
			name = ""
			data.Reset()
			if err != nil {
				return err
			}
			if err := fn(ev); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func decodeEvent(name, data string) (Event, error) {
	ev := Event{Type: name}
	switch name {
	case "metrics":
		ev.Metrics = &types.Metrics{}
		if err := json.Unmarshal([]byte(data), ev.Metrics); err != nil {
			return ev, fmt.Errorf("invalid metrics event: %w", err)
		}
	case "alert":
		ev.Alert = &types.Alert{}
		if err := json.Unmarshal([]byte(data), ev.Alert); err != nil {
			return ev, fmt.Errorf("invalid alert event: %w", err)
		}
	default:
		return ev, fmt.Errorf("unknown event type %q", name)
	}
	return ev, nil
}

func (c *Client) get(path string, query url.Values, out any) error {
	return c.do(http.MethodGet, path, query, nil, out)
}

func (c *Client) post(path string, out any) error {
	return c.do(http.MethodPost, path, nil, nil, out)
}

func (c *Client) send(method, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", path, err)
	}
	return c.do(method, path, nil, data, out)
}

func (c *Client) do(method, path string, query url.Values, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) url(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}
