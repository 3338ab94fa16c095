// ABOUTME: Scripted agent runtime for local development — speaks the NDJSON run protocol.
// ABOUTME: Usage: fake-runtime [-addr localhost:8091] [-delay 50ms]

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type runRequest struct {
	ThreadID string          `json:"thread_id,omitempty"`
	Message  string          `json:"message"`
	Options  json.RawMessage `json:"options,omitempty"`
}

type item struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`
}

type event struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Item     *item  `json:"item,omitempty"`
	Delta    string `json:"delta,omitempty"`
	Error    string `json:"error,omitempty"`
}

// fakeRuntime holds the set of threads this process has handed out, so
// resume checks behave like a real runtime that forgets nothing until restart.
type fakeRuntime struct {
	mu      sync.Mutex
	threads map[string]bool
	delay   time.Duration
}

func main() {
	addr := flag.String("addr", "localhost:8091", "HTTP listen address")
	delay := flag.Duration("delay", 50*time.Millisecond, "delay between streamed events")
	flag.Parse()

	rt := &fakeRuntime{
		threads: make(map[string]bool),
		delay:   *delay,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/runs", rt.handleRun)
	mux.HandleFunc("GET /v1/threads/{id}", rt.handleGetThread)

	log.Printf("fake-runtime listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal(err)
	}
}

// handleGetThread answers resume probes: 200 for threads this process
// created, 404 otherwise.
func (rt *fakeRuntime) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rt.mu.Lock()
	known := rt.threads[id]
	rt.mu.Unlock()

	if !known {
		http.Error(w, "thread not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"thread_id":%q}`, id)
}

// handleRun streams a scripted turn as NDJSON. The first event always
// announces the thread id, minting one for fresh threads.
func (rt *fakeRuntime) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = "th_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	rt.mu.Lock()
	rt.threads[threadID] = true
	rt.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	emit := func(ev event) bool {
		if r.Context().Err() != nil {
			return false
		}
		if err := enc.Encode(ev); err != nil {
			return false
		}
		flusher.Flush()
		if rt.delay > 0 {
			time.Sleep(rt.delay)
		}
		return true
	}

	log.Printf("run thread=%s message=%q", threadID, req.Message)

	if !emit(event{Type: "thread.started", ThreadID: threadID}) {
		return
	}

	for _, ev := range scriptTurn(threadID, req.Message) {
		if !emit(ev) {
			return
		}
	}
}

// scriptTurn picks a canned turn based on keywords in the message.
func scriptTurn(threadID, message string) []event {
	lower := strings.ToLower(message)

	if strings.Contains(lower, "fail") {
		return []event{
			{Type: "error", ThreadID: threadID, Error: "scripted failure"},
		}
	}

	var events []event

	if strings.Contains(lower, "sql") || strings.Contains(lower, "query") {
		sqlID := "item_" + uuid.New().String()[:8]
		events = append(events,
			event{Type: "item.started", ThreadID: threadID, Item: &item{ID: sqlID, Type: "sql"}},
			event{Type: "item.completed", ThreadID: threadID, Item: &item{
				ID:   sqlID,
				Type: "sql",
				Text: "SELECT region, SUM(revenue) AS revenue FROM sales GROUP BY region ORDER BY revenue DESC",
			}},
		)
	}

	if strings.Contains(lower, "chart") || strings.Contains(lower, "plot") {
		chartID := "item_" + uuid.New().String()[:8]
		events = append(events,
			event{Type: "item.started", ThreadID: threadID, Item: &item{ID: chartID, Type: "chart"}},
			event{Type: "item.completed", ThreadID: threadID, Item: &item{
				ID:   chartID,
				Type: "chart",
				Text: `{"mark":"bar","encoding":{"x":{"field":"region"},"y":{"field":"revenue"}}}`,
			}},
		)
	}

	reply := scriptReply(message)
	msgID := "item_" + uuid.New().String()[:8]
	events = append(events,
		event{Type: "item.started", ThreadID: threadID, Item: &item{ID: msgID, Type: "message", Role: "assistant"}},
	)
	for _, chunk := range chunkText(reply, 24) {
		events = append(events, event{Type: "item.delta", ThreadID: threadID, Delta: chunk, Item: &item{ID: msgID}})
	}
	events = append(events,
		event{Type: "item.completed", ThreadID: threadID, Item: &item{ID: msgID, Type: "message", Role: "assistant", Text: reply}},
		event{Type: "turn.completed", ThreadID: threadID},
	)
	return events
}

func scriptReply(input string) string {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "sql"), strings.Contains(lower, "query"):
		return "I ran the query. **Revenue by region** is shown above; the top region accounts for roughly a third of the total."
	case strings.Contains(lower, "chart"), strings.Contains(lower, "plot"):
		return "Here is the chart you asked for. Pin it to a dashboard if you want to keep it."
	case strings.Contains(lower, "markdown"), strings.Contains(lower, "list"):
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n"
	default:
		return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
	}
}

// chunkText splits s into delta-sized pieces for a streaming feel.
func chunkText(s string, size int) []string {
	var chunks []string
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}
