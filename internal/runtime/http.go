// ABOUTME: NDJSON-over-HTTP implementation of the runtime Client interface
// ABOUTME: Streams newline-delimited turn events from a runtime service until EOF

package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxEventBytes bounds a single NDJSON event line
const maxEventBytes = 1 << 20

// eventBufferSize is the channel buffer between the wire reader and the consumer
const eventBufferSize = 16

// HTTPClient talks to an agent runtime over streaming HTTP.
//
// Protocol: POST {base}/v1/runs with a JSON body carrying the message,
// optional thread id, and opaque options. The response is
// application/x-ndjson: one JSON event per line until the turn ends.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a runtime client for the given base URL.
// The underlying http.Client carries no global timeout: runs are long-lived
// streams, so cancellation flows through the request context instead.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		logger:  slog.Default().With("component", "runtime"),
	}
}

// StartThread prepares a session with no canonical thread id yet.
// No network call is made; the runtime assigns the id on the first run.
func (c *HTTPClient) StartThread(ctx context.Context) (Session, error) {
	return &httpSession{client: c}, nil
}

// ResumeThread validates that the runtime still holds the thread and
// reattaches to it. Returns an error when the thread is gone; callers are
// expected to fall back to StartThread.
func (c *HTTPClient) ResumeThread(ctx context.Context, threadID string) (Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/threads/"+threadID, nil)
	if err != nil {
		return nil, fmt.Errorf("building resume request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resuming thread %s: %w", threadID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("resuming thread %s: thread not found", threadID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resuming thread %s: unexpected status %d", threadID, resp.StatusCode)
	}

	return &httpSession{client: c, threadID: threadID}, nil
}

// runRequest is the wire body for POST /v1/runs
type runRequest struct {
	ThreadID string          `json:"thread_id,omitempty"`
	Message  string          `json:"message"`
	Options  json.RawMessage `json:"options,omitempty"`
}

// httpSession implements Session over the NDJSON run endpoint
type httpSession struct {
	client   *HTTPClient
	threadID string // canonical id once known; empty for fresh threads
}

// Run submits the message and streams turn events until EOF.
// Lines that fail to decode are logged and skipped; a transport failure
// mid-stream surfaces as a terminal error event.
func (s *httpSession) Run(ctx context.Context, message string, options json.RawMessage) (<-chan Event, error) {
	body, err := json.Marshal(runRequest{
		ThreadID: s.threadID,
		Message:  message,
		Options:  options,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/v1/runs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := s.client.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("starting run: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	events := make(chan Event, eventBufferSize)
	go s.readEvents(ctx, resp.Body, events)
	return events, nil
}

// readEvents decodes NDJSON lines into events until EOF or cancellation
func (s *httpSession) readEvents(ctx context.Context, body io.ReadCloser, events chan<- Event) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			s.client.logger.Warn("skipping undecodable runtime event", "error", err)
			continue
		}
		// The scanner reuses its buffer, so the raw payload needs a copy
		ev.Raw = append(json.RawMessage(nil), line...)

		if ev.ThreadID != "" {
			s.threadID = ev.ThreadID
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.client.logger.Warn("runtime stream failed", "error", err)
		ev := Event{Type: EventError, ThreadID: s.threadID, Error: err.Error()}
		raw, merr := json.Marshal(ev)
		if merr == nil {
			ev.Raw = raw
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
}

// Close releases the session. The HTTP transport holds no per-thread state,
// so this only forgets the canonical id.
func (s *httpSession) Close() error {
	return nil
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
