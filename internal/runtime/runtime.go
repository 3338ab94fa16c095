// ABOUTME: Client and Session interfaces for pluggable conversational-agent runtimes
// ABOUTME: Defines the runtime-native Event shape consumed by the job coordinator

package runtime

import (
	"context"
	"encoding/json"
)

// Event type constants emitted by agent runtimes
const (
	EventThreadStarted = "thread.started" // First reveal of the canonical thread id
	EventItemStarted   = "item.started"
	EventItemDelta     = "item.delta"
	EventItemCompleted = "item.completed"
	EventTurnCompleted = "turn.completed"
	EventError         = "error"
)

// Item type constants
const (
	ItemTypeMessage   = "message"
	ItemTypeReasoning = "reasoning"
	ItemTypeSQL       = "sql"
	ItemTypeChart     = "chart"
)

// Item role constants
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Item is one unit of turn output: a message, a reasoning step, a SQL
// execution, or a chart.
type Item struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`
}

// Event is one structured turn event as produced by the runtime. Raw holds
// the verbatim wire payload; the gateway relays and persists Raw untouched so
// clients see exactly what the runtime said.
type Event struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Item     *Item  `json:"item,omitempty"`
	Delta    string `json:"delta,omitempty"`
	Error    string `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// AssistantMessage returns the text of a completed agent-authored message
// item and true, or "" and false for any other event.
func (e *Event) AssistantMessage() (string, bool) {
	if e.Type == EventItemCompleted && e.Item != nil &&
		e.Item.Type == ItemTypeMessage && e.Item.Role == RoleAssistant {
		return e.Item.Text, true
	}
	return "", false
}

// Terminal reports whether the event ends the turn
func (e *Event) Terminal() bool {
	return e.Type == EventTurnCompleted || e.Type == EventError
}

// Client creates sessions against one agent runtime
type Client interface {
	// StartThread prepares a session for a brand-new thread. The runtime
	// assigns the canonical thread id lazily, announcing it on the first
	// thread.started event of the first run.
	StartThread(ctx context.Context) (Session, error)

	// ResumeThread reattaches to an existing thread by canonical id.
	// Failure is expected when the runtime no longer holds the thread;
	// callers fall back to StartThread.
	ResumeThread(ctx context.Context, threadID string) (Session, error)
}

// Session is one live conversation thread on the runtime side
type Session interface {
	// Run submits a user message and returns the stream of turn events.
	// The channel is closed when the turn ends or ctx is cancelled.
	Run(ctx context.Context, message string, options json.RawMessage) (<-chan Event, error)

	// Close releases session resources. It does not cancel in-flight runs.
	Close() error
}
