// ABOUTME: In-memory push broker with one buffered channel per connected client.
// ABOUTME: Best-effort fan-out; slow or vanished clients are dropped, never buffered.

package broker

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// clientBufferSize is the channel buffer for each connected client.
const clientBufferSize = 64

// Push frame types, in the order a client typically sees them.
const (
	TypeConnected   = "connected"
	TypeThreadInfo  = "thread_info"
	TypeAgentEvent  = "agent_event"
	TypeJobComplete = "job_complete"
	TypeJobStopped  = "job_stopped"
	TypeError       = "error"
)

// Event is one push frame delivered to a client's stream.
type Event struct {
	Type     string          `json:"type"`
	JobID    string          `json:"job_id,omitempty"`
	ThreadID string          `json:"thread_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type client struct {
	ch        chan Event
	agentType string
}

// Broker routes push frames to connected clients. Delivery is fire-and-forget:
// a frame a client cannot take immediately is dropped and the client is
// deregistered, on the assumption its reader is gone.
type Broker struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
}

// NewBroker creates a broker. Pass nil logger for default.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		clients: make(map[string]*client),
		logger:  logger.With("component", "broker"),
	}
}

// AddClient registers a fresh channel for the client id and returns it along
// with a deregister func. A later registration for the same id supersedes the
// old one, whose channel is closed. The first frame on the new channel is the
// connected ack.
func (b *Broker) AddClient(clientID, agentType string) (<-chan Event, func()) {
	c := &client{
		ch:        make(chan Event, clientBufferSize),
		agentType: agentType,
	}

	// Queue the ack before the channel is visible to anyone else, so a
	// concurrent supersede cannot close it mid-push.
	ack, _ := json.Marshal(map[string]string{
		"client_id":  clientID,
		"agent_type": agentType,
	})
	c.ch <- Event{Type: TypeConnected, Data: ack}

	b.mu.Lock()
	prev, existed := b.clients[clientID]
	b.clients[clientID] = c
	total := len(b.clients)
	b.mu.Unlock()

	if existed {
		close(prev.ch)
		b.logger.Info("client superseded", "client_id", clientID)
	}

	b.logger.Info("client connected",
		"client_id", clientID,
		"agent_type", agentType,
		"total_clients", total,
	)
	return c.ch, func() { b.RemoveClient(clientID, c.ch) }
}

// RemoveClient deregisters the client and closes its channel, but only if ch
// is still the registered channel. A stale deregister from a superseded
// connection is a no-op.
func (b *Broker) RemoveClient(clientID string, ch <-chan Event) {
	b.mu.Lock()
	c, ok := b.clients[clientID]
	if !ok || (<-chan Event)(c.ch) != ch {
		b.mu.Unlock()
		return
	}
	delete(b.clients, clientID)
	total := len(b.clients)
	b.mu.Unlock()

	close(c.ch)
	b.logger.Info("client disconnected", "client_id", clientID, "total_clients", total)
}

// Send delivers one frame to the client without blocking. Returns false if
// the client is unknown or its channel is full; a full channel deregisters
// the client. The send happens under the read lock so the channel cannot be
// closed out from under it.
func (b *Broker) Send(clientID string, ev Event) bool {
	b.mu.RLock()
	c, ok := b.clients[clientID]
	if !ok {
		b.mu.RUnlock()
		return false
	}

	select {
	case c.ch <- ev:
		b.mu.RUnlock()
		return true
	default:
		b.mu.RUnlock()
		b.logger.Warn("dropping slow client",
			"client_id", clientID,
			"frame_type", ev.Type,
		)
		b.RemoveClient(clientID, c.ch)
		return false
	}
}

// IsConnected reports whether the client has an open channel.
func (b *Broker) IsConnected(clientID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.clients[clientID]
	return ok
}

// AgentType returns the agent type the client registered with.
func (b *Broker) AgentType(clientID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.clients[clientID]
	if !ok {
		return "", false
	}
	return c.agentType, true
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close deregisters every client and closes all channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, c := range b.clients {
		close(c.ch)
		delete(b.clients, id)
	}
	b.logger.Debug("broker closed")
}
