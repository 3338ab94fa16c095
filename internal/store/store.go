// ABOUTME: Store interface and data types for scry-gateway persistence
// ABOUTME: Defines Thread, ThreadEvent, Dashboard, Plot, KnowledgeEntry and the Store interface

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDashboardFull is returned when adding or moving a plot would exceed
// MaxPlotsPerDashboard on the target dashboard
var ErrDashboardFull = errors.New("dashboard is full")

// MaxPlotsPerDashboard is the fixed plot capacity of a single dashboard.
// Dashboard responses echo this constant so clients can render capacity.
const MaxPlotsPerDashboard = 6

// Thread represents durable metadata for one conversation thread.
// The ID is the runtime's canonical thread id; rows only exist once the
// canonical id is known.
type Thread struct {
	ID               string
	AgentType        string
	Title            string
	LastUserMessage  string
	LastAgentMessage string
	LastClientID     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EventType constants for durable thread events
const (
	EventTypeUserMessage = "user_message" // The user's submitted message
	EventTypeAgentEvent  = "agent_event"  // A runtime-native turn event, payload relayed verbatim
	EventTypeJobComplete = "job_complete" // Terminal completion marker with duration
	EventTypeError       = "error"        // Terminal error marker
)

// ThreadEvent is one entry in a thread's append-only event log.
// Seq is assigned by the store on append and is strictly increasing
// within a thread.
type ThreadEvent struct {
	Seq       int64
	ThreadID  string
	JobID     string
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Dashboard is a named collection of pinned chart plots
type Dashboard struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DashboardSummary is a dashboard plus its live plot count, used by listings
type DashboardSummary struct {
	Dashboard
	PlotCount int
}

// PlotLayout is the grid placement of a plot on its dashboard
type PlotLayout struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Default placement for plots pinned without an explicit layout
const (
	DefaultPlotWidth  = 4
	DefaultPlotHeight = 3
)

// Plot is a chart pinned to a dashboard. ChartSpec holds the chart's data
// and encoding; ChartOption holds optional renderer overrides.
type Plot struct {
	ID             string
	DashboardID    string
	Title          string
	ChartSpec      json.RawMessage
	ChartOption    json.RawMessage
	AgentType      string
	SourceThreadID string
	Layout         PlotLayout
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PlotPatch describes a partial plot update. Nil fields are left unchanged.
// Setting DashboardID moves the plot; the destination's capacity is checked
// before anything is written.
type PlotPatch struct {
	DashboardID *string
	Title       *string
	ChartSpec   json.RawMessage
	ChartOption json.RawMessage
	Layout      *PlotLayout
}

// KnowledgeEntry is one deduplicated SQL snippet. SQLHash is the hex BLAKE2b
// digest of the normalized text and carries a UNIQUE constraint.
type KnowledgeEntry struct {
	ID        string
	AgentType string
	ThreadID  string
	MessageID string
	SQLText   string
	SQLHash   string
	CreatedAt time.Time
}

// SaveKnowledgeResult reports the outcome of a batch knowledge save
type SaveKnowledgeResult struct {
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
}

// Store defines the interface for gateway persistence
type Store interface {
	// Threads
	UpsertThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, agentType string, limit int) ([]*Thread, error)
	DeleteThread(ctx context.Context, id string) error

	// Thread events (append-only log)
	AppendEvent(ctx context.Context, event *ThreadEvent) error
	ThreadEvents(ctx context.Context, threadID string) ([]*ThreadEvent, error)

	// Dashboards
	CreateDashboard(ctx context.Context, dashboard *Dashboard) error
	GetDashboard(ctx context.Context, id string) (*Dashboard, error)
	ListDashboards(ctx context.Context) ([]*DashboardSummary, error)
	DeleteDashboard(ctx context.Context, id string) error

	// Plots
	AddPlot(ctx context.Context, plot *Plot) error
	GetPlot(ctx context.Context, id string) (*Plot, error)
	ListPlots(ctx context.Context, dashboardID string) ([]*Plot, error)
	UpdatePlot(ctx context.Context, id string, patch PlotPatch) (*Plot, error)
	DeletePlot(ctx context.Context, id string) error

	// Knowledge
	SaveKnowledgeEntries(ctx context.Context, entries []*KnowledgeEntry) (*SaveKnowledgeResult, error)
	ListKnowledgeEntries(ctx context.Context, agentType string, limit int) ([]*KnowledgeEntry, error)
	DeleteKnowledgeEntry(ctx context.Context, id string) error

	// Close releases any resources held by the store
	Close() error
}
