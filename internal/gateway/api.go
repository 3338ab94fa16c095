// ABOUTME: HTTP API handlers for message submission, jobs, threads, and agents
// ABOUTME: JSON request/response types and the error helpers shared by all handlers

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/scry-gateway/internal/job"
	"github.com/2389/scry-gateway/internal/registry"
	"github.com/2389/scry-gateway/internal/store"
)

// AgentInfoResponse is one catalog entry in GET /api/agents.
type AgentInfoResponse struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Model       string `json:"model,omitempty"`
}

// ResumeThreadRequest is the JSON request body for POST /api/threads/resume.
type ResumeThreadRequest struct {
	AgentType string `json:"agent_type"`
	ThreadID  string `json:"thread_id"`
}

// ResumeThreadResponse reports the reattached thread.
type ResumeThreadResponse struct {
	ThreadID  string `json:"thread_id"`
	AgentType string `json:"agent_type"`
}

// ThreadResponse is the JSON shape of one thread's metadata.
type ThreadResponse struct {
	ID               string `json:"id"`
	AgentType        string `json:"agent_type"`
	Title            string `json:"title"`
	LastUserMessage  string `json:"last_user_message,omitempty"`
	LastAgentMessage string `json:"last_agent_message,omitempty"`
	LastClientID     string `json:"last_client_id,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// ThreadEventResponse is one replayed entry from a thread's event log.
type ThreadEventResponse struct {
	Seq       int64           `json:"seq"`
	JobID     string          `json:"job_id,omitempty"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// ThreadEventsResponse is the JSON response for GET /api/threads/{id}/events.
type ThreadEventsResponse struct {
	ThreadID string                `json:"thread_id"`
	Events   []ThreadEventResponse `json:"events"`
}

// handleSubmitMessage handles POST /api/messages. The message is accepted and
// processed asynchronously; results arrive on the client's push stream.
func (g *Gateway) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req job.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	j, err := g.coordinator.Submit(req)
	switch {
	case errors.Is(err, job.ErrInvalidRequest):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, registry.ErrUnknownAgent):
		g.sendJSONError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, job.ErrClientNotConnected):
		g.sendJSONError(w, http.StatusConflict, "open a stream before submitting messages")
		return
	case err != nil:
		g.logger.Error("failed to submit message", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, http.StatusAccepted, j)
}

// handleGetJob handles GET /api/jobs/{id}.
func (g *Gateway) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := g.coordinator.Get(r.PathValue("id"))
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	g.writeJSON(w, http.StatusOK, j)
}

// handleStopJob handles POST /api/jobs/{id}/stop. The stop is advisory: the
// job stops relaying and persisting, but the runtime turn is not canceled.
func (g *Gateway) handleStopJob(w http.ResponseWriter, r *http.Request) {
	j, err := g.coordinator.Stop(r.PathValue("id"))
	if errors.Is(err, job.ErrJobNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to stop job", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusOK, j)
}

// handleListAgents handles GET /api/agents. Returns the loaded profile catalog.
func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	profiles := g.registry.Profiles()

	response := make([]AgentInfoResponse, 0, len(profiles))
	for _, p := range profiles {
		response = append(response, AgentInfoResponse{
			Type:        p.Type,
			Name:        p.Name,
			Description: p.Description,
			Model:       p.Model,
		})
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleResumeThread handles POST /api/threads/resume. Reattaching to an
// already-live thread is a no-op, so the call is safe to repeat.
func (g *Gateway) handleResumeThread(w http.ResponseWriter, r *http.Request) {
	var req ResumeThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentType == "" || req.ThreadID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "agent_type and thread_id are required")
		return
	}

	handle, err := g.registry.ResumeThread(r.Context(), req.AgentType, req.ThreadID)
	if errors.Is(err, registry.ErrUnknownAgent) {
		g.sendJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		// Not fatal for the conversation: a later submit starts fresh.
		g.logger.Warn("resume failed", "thread_id", req.ThreadID, "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "runtime could not resume thread")
		return
	}

	g.writeJSON(w, http.StatusOK, ResumeThreadResponse{
		ThreadID:  handle.Ref.ID(),
		AgentType: handle.AgentType,
	})
}

// handleListThreads handles GET /api/threads?agent_type=&limit=.
// Threads are returned most recently updated first.
func (g *Gateway) handleListThreads(w http.ResponseWriter, r *http.Request) {
	limit, ok := g.parseLimit(w, r, 50, 500)
	if !ok {
		return
	}

	threads, err := g.store.ListThreads(r.Context(), r.URL.Query().Get("agent_type"), limit)
	if err != nil {
		g.logger.Error("failed to list threads", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]ThreadResponse, len(threads))
	for i, t := range threads {
		response[i] = threadResponse(t)
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleGetThread handles GET /api/threads/{id}.
func (g *Gateway) handleGetThread(w http.ResponseWriter, r *http.Request) {
	thread, err := g.store.GetThread(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get thread", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusOK, threadResponse(thread))
}

// handleDeleteThread handles DELETE /api/threads/{id}. Deletes the thread
// and its event log.
func (g *Gateway) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	err := g.store.DeleteThread(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to delete thread", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleThreadEvents handles GET /api/threads/{id}/events. Returns the full
// event log in append order.
func (g *Gateway) handleThreadEvents(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")

	if _, err := g.store.GetThread(r.Context(), threadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "thread not found")
			return
		}
		g.logger.Error("failed to get thread", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	events, err := g.store.ThreadEvents(r.Context(), threadID)
	if err != nil {
		g.logger.Error("failed to list thread events", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := ThreadEventsResponse{
		ThreadID: threadID,
		Events:   make([]ThreadEventResponse, len(events)),
	}
	for i, ev := range events {
		payload := ev.Payload
		// A stored payload that is not valid JSON is replayed as a JSON
		// string so one malformed row cannot fail the whole response.
		if len(payload) > 0 && !json.Valid(payload) {
			payload, _ = json.Marshal(string(ev.Payload))
		}
		response.Events[i] = ThreadEventResponse{
			Seq:       ev.Seq,
			JobID:     ev.JobID,
			EventType: ev.EventType,
			Payload:   payload,
			CreatedAt: ev.CreatedAt.Format(time.RFC3339),
		}
	}
	g.writeJSON(w, http.StatusOK, response)
}

// threadResponse converts a stored thread to its JSON shape.
func threadResponse(t *store.Thread) ThreadResponse {
	return ThreadResponse{
		ID:               t.ID,
		AgentType:        t.AgentType,
		Title:            t.Title,
		LastUserMessage:  t.LastUserMessage,
		LastAgentMessage: t.LastAgentMessage,
		LastClientID:     t.LastClientID,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        t.UpdatedAt.Format(time.RFC3339),
	}
}

// parseLimit reads the optional ?limit= parameter, writing a 400 response and
// returning ok=false when it is not a positive integer.
func (g *Gateway) parseLimit(w http.ResponseWriter, r *http.Request, def, max int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if limit > max {
		limit = max
	}
	return limit, true
}

// writeJSON writes a JSON response with the given status code.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
