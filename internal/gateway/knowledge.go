// ABOUTME: HTTP handlers for the deduplicated SQL knowledge base
// ABOUTME: Batch saves report saved vs duplicate counts; resubmits are idempotent

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/scry-gateway/internal/store"
)

// KnowledgeEntryInput is one snippet in a POST /api/knowledge batch.
type KnowledgeEntryInput struct {
	SQL       string `json:"sql"`
	AgentType string `json:"agent_type,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// SaveKnowledgeRequest is the JSON request body for POST /api/knowledge.
type SaveKnowledgeRequest struct {
	Entries []KnowledgeEntryInput `json:"entries"`
}

// KnowledgeEntryResponse is the JSON shape of one stored snippet.
type KnowledgeEntryResponse struct {
	ID        string `json:"id"`
	SQL       string `json:"sql"`
	SQLHash   string `json:"sql_hash"`
	AgentType string `json:"agent_type,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// handleSaveKnowledge handles POST /api/knowledge. Snippets are deduplicated
// by content hash; the response reports how many were new.
func (g *Gateway) handleSaveKnowledge(w http.ResponseWriter, r *http.Request) {
	var req SaveKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Entries) == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "entries is required")
		return
	}

	entries := make([]*store.KnowledgeEntry, len(req.Entries))
	for i, in := range req.Entries {
		entries[i] = &store.KnowledgeEntry{
			ID:        uuid.New().String(),
			AgentType: in.AgentType,
			ThreadID:  in.ThreadID,
			MessageID: in.MessageID,
			SQLText:   in.SQL,
		}
	}

	result, err := g.store.SaveKnowledgeEntries(r.Context(), entries)
	if err != nil {
		g.logger.Error("failed to save knowledge entries", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusOK, result)
}

// handleListKnowledge handles GET /api/knowledge?agent_type=&limit=.
func (g *Gateway) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	limit, ok := g.parseLimit(w, r, 100, 1000)
	if !ok {
		return
	}

	entries, err := g.store.ListKnowledgeEntries(r.Context(), r.URL.Query().Get("agent_type"), limit)
	if err != nil {
		g.logger.Error("failed to list knowledge entries", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]KnowledgeEntryResponse, len(entries))
	for i, e := range entries {
		response[i] = KnowledgeEntryResponse{
			ID:        e.ID,
			SQL:       e.SQLText,
			SQLHash:   e.SQLHash,
			AgentType: e.AgentType,
			ThreadID:  e.ThreadID,
			MessageID: e.MessageID,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	g.writeJSON(w, http.StatusOK, response)
}

// handleDeleteKnowledge handles DELETE /api/knowledge/{id}.
func (g *Gateway) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	err := g.store.DeleteKnowledgeEntry(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "knowledge entry not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to delete knowledge entry", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
