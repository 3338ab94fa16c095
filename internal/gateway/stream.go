// ABOUTME: SSE push channel handler, one stream per connected client id
// ABOUTME: Registers with the broker and forwards frames until the client goes away

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2389/scry-gateway/internal/broker"
)

// handleStream handles GET /api/stream?client_id=&agent_type=. It registers
// the client with the broker and relays push frames as SSE until the client
// disconnects or is superseded by a newer stream for the same id. The first
// frame is always the connected ack.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	agentType := r.URL.Query().Get("agent_type")

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, done := g.broker.AddClient(clientID, agentType)
	defer done()

	g.metrics.StreamClients.Add(r.Context(), 1)
	defer g.metrics.StreamClients.Add(context.Background(), -1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				// Channel closed: superseded by a newer stream or the
				// broker dropped us as a slow reader.
				return
			}
			g.writeSSEEvent(w, ev)
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single push frame in SSE wire format:
// event: <type>\ndata: <json>\n\n
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, ev broker.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", ev.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
