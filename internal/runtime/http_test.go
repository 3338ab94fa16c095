// ABOUTME: Tests for the NDJSON-over-HTTP runtime client
// ABOUTME: Uses httptest servers to verify streaming decode, resume, and failure handling

package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ndjsonHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/runs", r.URL.Path)

		var req runRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}
}

func TestHTTPSession_RunStreamsEvents(t *testing.T) {
	lines := []string{
		`{"type":"thread.started","thread_id":"th_1"}`,
		`{"type":"item.completed","thread_id":"th_1","item":{"id":"i1","type":"message","role":"assistant","text":"hello"}}`,
		`{"type":"turn.completed","thread_id":"th_1"}`,
	}
	srv := httptest.NewServer(ndjsonHandler(t, lines))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	session, err := client.StartThread(context.Background())
	require.NoError(t, err)
	defer session.Close()

	events, err := session.Run(context.Background(), "hi", nil)
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, EventThreadStarted, got[0].Type)
	assert.Equal(t, "th_1", got[0].ThreadID)
	assert.JSONEq(t, lines[0], string(got[0].Raw))

	text, ok := got[1].AssistantMessage()
	assert.True(t, ok)
	assert.Equal(t, "hello", text)

	assert.True(t, got[2].Terminal())
}

func TestHTTPSession_RunForwardsThreadIDAndOptions(t *testing.T) {
	var received runRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprintln(w, `{"type":"turn.completed","thread_id":"th_9"}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	session := &httpSession{client: client, threadID: "th_9"}

	events, err := session.Run(context.Background(), "again", json.RawMessage(`{"verbosity":"high"}`))
	require.NoError(t, err)
	for range events {
	}

	assert.Equal(t, "th_9", received.ThreadID)
	assert.Equal(t, "again", received.Message)
	assert.JSONEq(t, `{"verbosity":"high"}`, string(received.Options))
}

func TestHTTPSession_SkipsUndecodableLines(t *testing.T) {
	lines := []string{
		`{"type":"thread.started","thread_id":"th_1"}`,
		`this is not json`,
		`{"type":"turn.completed","thread_id":"th_1"}`,
	}
	srv := httptest.NewServer(ndjsonHandler(t, lines))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	session, err := client.StartThread(context.Background())
	require.NoError(t, err)

	events, err := session.Run(context.Background(), "hi", nil)
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, EventThreadStarted, got[0].Type)
	assert.Equal(t, EventTurnCompleted, got[1].Type)
}

func TestHTTPSession_RunRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "runtime overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	session, err := client.StartThread(context.Background())
	require.NoError(t, err)

	_, err = session.Run(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPSession_CancellationStopsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"type":"thread.started","thread_id":"th_1"}`)
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewHTTPClient(srv.URL)
	session, err := client.StartThread(ctx)
	require.NoError(t, err)

	events, err := session.Run(ctx, "hi", nil)
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, EventThreadStarted, first.Type)

	cancel()

	select {
	case _, open := <-events:
		// Either a drained event or a closed channel is acceptable; the
		// channel must close shortly after cancellation either way.
		if open {
			_, open = <-events
			assert.False(t, open)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel did not close after cancellation")
	}
}

func TestHTTPClient_ResumeThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path == "/v1/threads/th_live" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)

	session, err := client.ResumeThread(context.Background(), "th_live")
	require.NoError(t, err)
	require.NotNil(t, session)

	_, err = client.ResumeThread(context.Background(), "th_gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
