// ABOUTME: The per-job run loop: resolve the thread, stream events, relay, persist.
// ABOUTME: Relay always precedes persistence; store failures never stop a turn.

package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/scry-gateway/internal/broker"
	"github.com/2389/scry-gateway/internal/mdtext"
	"github.com/2389/scry-gateway/internal/registry"
	"github.com/2389/scry-gateway/internal/runtime"
	"github.com/2389/scry-gateway/internal/store"
)

const (
	titleExcerptLen   = 80
	summaryExcerptLen = 200
)

// run executes one job end to end. It runs on a background context because
// the job outlives the submit request; the client follows along on its push
// stream. The profile's request timeout bounds the whole turn.
func (c *Coordinator) run(jobID string, req SubmitRequest, profile registry.Profile) {
	ctx := context.Background()
	start := time.Now()

	c.tracker.SetProcessing(jobID)
	c.metrics.ActiveJobs.Add(ctx, 1)
	defer c.metrics.ActiveJobs.Add(ctx, -1)

	runCtx, cancel := context.WithTimeout(ctx, profile.RequestTimeout)
	defer cancel()

	handle, err := c.resolveThread(runCtx, req)
	if err != nil {
		c.fail(ctx, jobID, req, registry.ThreadRef{}, start, fmt.Sprintf("starting agent thread: %v", err))
		return
	}

	ref := handle.Ref
	metaPersisted := false
	if ref.Canonical() {
		c.tracker.SetThread(jobID, ref.ID())
		c.beginTurn(ctx, jobID, ref.ID(), req)
		metaPersisted = true
	}

	options := profile.OptionsJSON()
	if len(req.Options) > 0 {
		options = req.Options
	}
	events, err := handle.Session.Run(runCtx, req.Message, options)
	if err != nil {
		c.fail(ctx, jobID, req, ref, start, fmt.Sprintf("starting run: %v", err))
		return
	}

	for ev := range events {
		if j, ok := c.tracker.Get(jobID); !ok || j.Status.Terminal() {
			// Stopped from the outside. Abandon the stream; the deferred
			// cancel tears down the runtime call.
			c.logger.Info("job no longer active, abandoning stream", "job_id", jobID)
			return
		}

		// The first event carrying a thread id resolves a pending ref:
		// rekey the handle and do the deferred turn-start persistence.
		// This fires at most once per job.
		if !metaPersisted && ev.ThreadID != "" {
			ref = c.reconcile(ctx, jobID, ref, ev.ThreadID, req)
			metaPersisted = true
		}

		if ev.Type == runtime.EventError {
			msg := ev.Error
			if msg == "" {
				msg = "agent runtime reported an error"
			}
			c.fail(ctx, jobID, req, ref, start, msg)
			return
		}

		c.relayAndPersist(ctx, jobID, req.ClientID, ref, ev)
	}

	c.complete(ctx, jobID, req, ref, start)
}

// resolveThread picks the session for this turn. A known thread id is resumed
// if possible; resume failure is expected after evictions or runtime restarts
// and falls back to a fresh thread rather than failing the job.
func (c *Coordinator) resolveThread(ctx context.Context, req SubmitRequest) (registry.ThreadHandle, error) {
	if req.ThreadID != "" {
		handle, err := c.registry.ResumeThread(ctx, req.AgentType, req.ThreadID)
		if err == nil {
			return handle, nil
		}
		c.logger.Warn("resume failed, starting fresh thread",
			"thread_id", req.ThreadID,
			"agent_type", req.AgentType,
			"error", err,
		)
	}
	return c.registry.StartThread(ctx, req.AgentType)
}

// reconcile moves a pending ref to the canonical id the runtime revealed,
// then records the turn-start state that was deferred while no durable id
// existed.
func (c *Coordinator) reconcile(ctx context.Context, jobID string, ref registry.ThreadRef, canonicalID string, req SubmitRequest) registry.ThreadRef {
	if ref.Canonical() && ref.ID() == canonicalID {
		return ref
	}

	rekeyed, err := c.registry.RekeyThread(ref.ID(), canonicalID)
	if err != nil {
		// The handle may have been evicted mid-run. The canonical id is
		// still authoritative for persistence.
		c.logger.Warn("rekey failed",
			"job_id", jobID,
			"old_id", ref.ID(),
			"thread_id", canonicalID,
			"error", err,
		)
		ref = registry.CanonicalRef(canonicalID)
	} else {
		ref = rekeyed.Ref
	}

	c.tracker.SetThread(jobID, canonicalID)
	c.beginTurn(ctx, jobID, canonicalID, req)
	return ref
}

// beginTurn records the turn's opening state once the canonical thread id is
// known: metadata upsert, thread_info frame, durable user-message event.
func (c *Coordinator) beginTurn(ctx context.Context, jobID, threadID string, req SubmitRequest) {
	c.persistThread(&store.Thread{
		ID:              threadID,
		AgentType:       req.AgentType,
		Title:           mdtext.Excerpt(req.Message, titleExcerptLen),
		LastUserMessage: mdtext.Excerpt(req.Message, summaryExcerptLen),
		LastClientID:    req.ClientID,
	})

	info, _ := json.Marshal(map[string]string{
		"thread_id":  threadID,
		"agent_type": req.AgentType,
	})
	c.broker.Send(req.ClientID, broker.Event{
		Type:     broker.TypeThreadInfo,
		JobID:    jobID,
		ThreadID: threadID,
		Data:     info,
	})

	payload, _ := json.Marshal(map[string]string{
		"type":      "user_message",
		"message":   req.Message,
		"client_id": req.ClientID,
	})
	c.persistEvent(ctx, threadID, jobID, store.EventTypeUserMessage, payload)
}

// relayAndPersist pushes one runtime event to the client and then, if the
// thread has a canonical id, appends it to the durable log. Events that
// arrive before the canonical id exists have nowhere durable to go; they are
// relayed only.
func (c *Coordinator) relayAndPersist(ctx context.Context, jobID, clientID string, ref registry.ThreadRef, ev runtime.Event) {
	threadID := ""
	if ref.Canonical() {
		threadID = ref.ID()
	}

	payload := ev.Raw
	if len(payload) == 0 {
		payload, _ = json.Marshal(ev)
	}

	// Relay first. A client that has gone away does not stop the turn; the
	// durable log remains the source of truth for replay.
	if c.broker.Send(clientID, broker.Event{
		Type:     broker.TypeAgentEvent,
		JobID:    jobID,
		ThreadID: threadID,
		Data:     payload,
	}) {
		c.metrics.EventsRelayed.Add(ctx, 1)
	} else {
		c.metrics.RelayDrops.Add(ctx, 1)
	}

	if threadID == "" {
		return
	}

	c.persistEvent(ctx, threadID, jobID, store.EventTypeAgentEvent, payload)

	if text, ok := ev.AssistantMessage(); ok {
		c.persistThread(&store.Thread{
			ID:               threadID,
			LastAgentMessage: mdtext.Excerpt(text, summaryExcerptLen),
		})
	}
}

// complete marks the job done and emits the job_complete frame with the
// turn's duration. A job already stopped stays as the stop left it.
func (c *Coordinator) complete(ctx context.Context, jobID string, req SubmitRequest, ref registry.ThreadRef, start time.Time) {
	if _, changed := c.tracker.Finish(jobID, StatusCompleted, ""); !changed {
		return
	}

	duration := time.Since(start)
	threadID := ""
	if ref.Canonical() {
		threadID = ref.ID()
		c.registry.TouchThread(threadID)
	}

	data, _ := json.Marshal(map[string]any{
		"job_id":      jobID,
		"duration_ms": duration.Milliseconds(),
	})
	c.broker.Send(req.ClientID, broker.Event{
		Type:     broker.TypeJobComplete,
		JobID:    jobID,
		ThreadID: threadID,
		Data:     data,
	})

	if threadID != "" {
		payload, _ := json.Marshal(map[string]any{
			"type":        "job_complete",
			"job_id":      jobID,
			"duration_ms": duration.Milliseconds(),
		})
		c.persistEvent(ctx, threadID, jobID, store.EventTypeJobComplete, payload)
	}

	c.metrics.JobsCompleted.Add(ctx, 1)
	c.metrics.JobDuration.Record(ctx, duration.Seconds())

	c.logger.Info("job complete",
		"job_id", jobID,
		"thread_id", threadID,
		"duration", duration.Round(time.Millisecond).String(),
	)
}

// fail marks the job errored, notifies the client, and records a durable
// error event when a canonical thread exists.
func (c *Coordinator) fail(ctx context.Context, jobID string, req SubmitRequest, ref registry.ThreadRef, start time.Time, msg string) {
	if _, changed := c.tracker.Finish(jobID, StatusError, msg); !changed {
		return
	}

	threadID := ""
	if ref.Canonical() {
		threadID = ref.ID()
	}

	data, _ := json.Marshal(map[string]string{"error": msg})
	c.broker.Send(req.ClientID, broker.Event{
		Type:     broker.TypeError,
		JobID:    jobID,
		ThreadID: threadID,
		Data:     data,
	})

	if threadID != "" {
		payload, _ := json.Marshal(map[string]string{
			"type":  "error",
			"error": msg,
		})
		c.persistEvent(ctx, threadID, jobID, store.EventTypeError, payload)
	}

	c.metrics.JobsErrored.Add(ctx, 1)
	c.metrics.JobDuration.Record(ctx, time.Since(start).Seconds())

	c.logger.Error("job failed", "job_id", jobID, "thread_id", threadID, "error", msg)
}

// persistThread upserts thread metadata on a detached short-timeout context.
// Failures are logged and swallowed; history is best-effort by contract.
func (c *Coordinator) persistThread(thread *store.Thread) {
	pctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	defer cancel()

	if err := c.store.UpsertThread(pctx, thread); err != nil {
		c.logger.Error("persisting thread metadata", "thread_id", thread.ID, "error", err)
	}
}

// persistEvent appends one durable event on a detached short-timeout context.
// Failures are logged and swallowed.
func (c *Coordinator) persistEvent(ctx context.Context, threadID, jobID, eventType string, payload json.RawMessage) {
	pctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	defer cancel()

	err := c.store.AppendEvent(pctx, &store.ThreadEvent{
		ThreadID:  threadID,
		JobID:     jobID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		c.logger.Error("persisting thread event",
			"thread_id", threadID,
			"event_type", eventType,
			"error", err,
		)
		return
	}
	c.metrics.EventsPersisted.Add(ctx, 1)
}
