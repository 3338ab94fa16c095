// ABOUTME: Coordinates message jobs between clients, agent runtimes, and the store.
// ABOUTME: Owns submission validation, the per-job run loop, and advisory stop.

package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/scry-gateway/internal/broker"
	"github.com/2389/scry-gateway/internal/registry"
	"github.com/2389/scry-gateway/internal/store"
	"github.com/2389/scry-gateway/internal/telemetry"
)

// ErrInvalidRequest indicates a submission missing required fields.
var ErrInvalidRequest = errors.New("invalid request")

// ErrClientNotConnected indicates the submitting client has no open push
// stream. Without one the agent's reply would vanish, so the message is
// rejected up front.
var ErrClientNotConnected = errors.New("client has no open stream")

// ErrJobNotFound indicates the job id is unknown or already purged.
var ErrJobNotFound = errors.New("job not found")

// defaultPersistTimeout bounds each best-effort store write so a wedged
// database cannot stall a live relay.
const defaultPersistTimeout = 5 * time.Second

// SubmitRequest is one user message bound for an agent. Options, when set,
// replace the profile's run options for this turn only.
type SubmitRequest struct {
	ClientID  string          `json:"client_id"`
	AgentType string          `json:"agent_type"`
	ThreadID  string          `json:"thread_id,omitempty"`
	Message   string          `json:"message"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// Coordinator runs message jobs: it resolves the thread, consumes the runtime
// event stream, relays frames to the client, and records durable history.
type Coordinator struct {
	tracker  *Tracker
	store    store.Store
	broker   *broker.Broker
	registry *registry.Registry
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	persistTimeout time.Duration
}

// NewCoordinator wires the coordinator's collaborators together.
func NewCoordinator(
	tracker *Tracker,
	st store.Store,
	br *broker.Broker,
	reg *registry.Registry,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		tracker:        tracker,
		store:          st,
		broker:         br,
		registry:       reg,
		metrics:        metrics,
		logger:         logger.With("component", "coordinator"),
		persistTimeout: defaultPersistTimeout,
	}
}

// Submit validates the request, registers a queued job, and launches its run
// loop. It returns immediately; progress flows over the client's push stream.
func (c *Coordinator) Submit(req SubmitRequest) (Job, error) {
	if req.ClientID == "" {
		return Job{}, fmt.Errorf("%w: client_id is required", ErrInvalidRequest)
	}
	if req.AgentType == "" {
		return Job{}, fmt.Errorf("%w: agent_type is required", ErrInvalidRequest)
	}
	if req.Message == "" {
		return Job{}, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}

	profile, ok := c.registry.Profile(req.AgentType)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", registry.ErrUnknownAgent, req.AgentType)
	}
	if !c.broker.IsConnected(req.ClientID) {
		return Job{}, fmt.Errorf("%w: %s", ErrClientNotConnected, req.ClientID)
	}

	j := &Job{
		ID:        uuid.New().String(),
		ClientID:  req.ClientID,
		AgentType: req.AgentType,
		ThreadID:  req.ThreadID,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	// Snapshot before the run loop starts; it mutates the tracked job.
	snapshot := *j
	c.tracker.Add(j)
	c.metrics.JobsSubmitted.Add(context.Background(), 1)

	c.logger.Info("job submitted",
		"job_id", j.ID,
		"client_id", req.ClientID,
		"agent_type", req.AgentType,
		"thread_id", req.ThreadID,
	)

	go c.run(j.ID, req, profile)

	return snapshot, nil
}

// Stop marks a running job completed and tells the client. It is advisory:
// the runtime call is not cancelled, but the run loop stops relaying and
// persisting once it observes the terminal state.
func (c *Coordinator) Stop(jobID string) (Job, error) {
	current, ok := c.tracker.Get(jobID)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if current.Status.Terminal() {
		return current, nil
	}

	stopped, changed := c.tracker.Finish(jobID, StatusCompleted, "")
	if changed {
		c.broker.Send(stopped.ClientID, broker.Event{
			Type:     broker.TypeJobStopped,
			JobID:    jobID,
			ThreadID: stopped.ThreadID,
		})
		c.logger.Info("job stopped", "job_id", jobID, "client_id", stopped.ClientID)
	}
	return stopped, nil
}

// Get returns a snapshot of the job.
func (c *Coordinator) Get(jobID string) (Job, bool) {
	return c.tracker.Get(jobID)
}
