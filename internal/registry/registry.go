// ABOUTME: Tracks live runtime threads and the agent profiles that can serve them.
// ABOUTME: Central lookup for thread handles, keyed by pending or canonical id.

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/scry-gateway/internal/runtime"
)

// ErrUnknownAgent indicates the requested agent type has no loaded profile.
var ErrUnknownAgent = errors.New("unknown agent type")

// ErrThreadNotFound indicates no live handle exists for the given thread id.
var ErrThreadNotFound = errors.New("thread handle not found")

// ThreadRef identifies a runtime thread. A ref starts out pending, keyed by
// a local placeholder id, and becomes canonical once the runtime reveals the
// durable thread id on its first event.
type ThreadRef struct {
	id        string
	canonical bool
}

// PendingRef returns a ref for a thread whose canonical id is not yet known.
func PendingRef(placeholder string) ThreadRef {
	return ThreadRef{id: placeholder}
}

// CanonicalRef returns a ref carrying the runtime's durable thread id.
func CanonicalRef(id string) ThreadRef {
	return ThreadRef{id: id, canonical: true}
}

// ID returns the id the handle is currently keyed by.
func (r ThreadRef) ID() string { return r.id }

// Canonical reports whether the id is the runtime's durable thread id.
func (r ThreadRef) Canonical() bool { return r.canonical }

func (r ThreadRef) String() string {
	if r.canonical {
		return r.id
	}
	return r.id + " (pending)"
}

// ThreadHandle is a live attachment to a runtime thread. Handles are value
// snapshots; the registry owns the mutable state behind them.
type ThreadHandle struct {
	Ref          ThreadRef
	AgentType    string
	Session      runtime.Session
	StartedAt    time.Time
	LastActivity time.Time
}

// ClientFactory builds a runtime client for an agent profile. Tests inject
// fakes here; production uses the NDJSON HTTP client.
type ClientFactory func(p Profile) (runtime.Client, error)

// Registry owns the agent catalog and the map of live thread handles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	handles  map[string]*ThreadHandle
	clients  map[string]runtime.Client

	factory ClientFactory
	logger  *slog.Logger
}

// NewRegistry creates a registry. A nil factory defaults to the HTTP runtime
// client built from each profile's endpoint.
func NewRegistry(logger *slog.Logger, factory ClientFactory) *Registry {
	if factory == nil {
		factory = func(p Profile) (runtime.Client, error) {
			return runtime.NewHTTPClient(p.Endpoint), nil
		}
	}
	return &Registry{
		profiles: make(map[string]Profile),
		handles:  make(map[string]*ThreadHandle),
		clients:  make(map[string]runtime.Client),
		factory:  factory,
		logger:   logger,
	}
}

// RegisterProfile adds or replaces a profile in the catalog.
func (r *Registry) RegisterProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Type] = p
	return nil
}

// Profiles returns the catalog sorted by agent type.
func (r *Registry) Profiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Profile looks up one profile by agent type.
func (r *Registry) Profile(agentType string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[agentType]
	return p, ok
}

// StartThread opens a fresh runtime session for the given agent type and
// registers it under a pending placeholder id. The canonical id arrives later
// on the session's event stream, at which point the caller rekeys the handle.
func (r *Registry) StartThread(ctx context.Context, agentType string) (ThreadHandle, error) {
	client, err := r.clientFor(agentType)
	if err != nil {
		return ThreadHandle{}, err
	}

	session, err := client.StartThread(ctx)
	if err != nil {
		return ThreadHandle{}, fmt.Errorf("starting thread for %s: %w", agentType, err)
	}

	now := time.Now().UTC()
	handle := &ThreadHandle{
		Ref:          PendingRef("pending-" + uuid.New().String()),
		AgentType:    agentType,
		Session:      session,
		StartedAt:    now,
		LastActivity: now,
	}

	r.mu.Lock()
	r.handles[handle.Ref.ID()] = handle
	total := len(r.handles)
	r.mu.Unlock()

	r.logger.Info("thread started",
		"agent_type", agentType,
		"thread_id", handle.Ref.ID(),
		"total_threads", total,
	)
	return *handle, nil
}

// ResumeThread reattaches to an existing canonical thread. If a live handle
// already exists it is reused; otherwise the runtime is asked to resume. A
// resume failure is returned to the caller, who may fall back to StartThread.
func (r *Registry) ResumeThread(ctx context.Context, agentType, threadID string) (ThreadHandle, error) {
	r.mu.RLock()
	existing, ok := r.handles[threadID]
	r.mu.RUnlock()
	if ok {
		r.TouchThread(threadID)
		return *existing, nil
	}

	client, err := r.clientFor(agentType)
	if err != nil {
		return ThreadHandle{}, err
	}

	session, err := client.ResumeThread(ctx, threadID)
	if err != nil {
		return ThreadHandle{}, fmt.Errorf("resuming thread %s: %w", threadID, err)
	}

	now := time.Now().UTC()
	handle := &ThreadHandle{
		Ref:          CanonicalRef(threadID),
		AgentType:    agentType,
		Session:      session,
		StartedAt:    now,
		LastActivity: now,
	}

	r.mu.Lock()
	r.handles[threadID] = handle
	r.mu.Unlock()

	r.logger.Info("thread resumed", "agent_type", agentType, "thread_id", threadID)
	return *handle, nil
}

// Thread returns a snapshot of the live handle for the given id, if any.
func (r *Registry) Thread(id string) (ThreadHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	if !ok {
		return ThreadHandle{}, false
	}
	return *h, true
}

// TouchThread marks the thread as recently used so the idle sweep skips it.
func (r *Registry) TouchThread(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[id]; ok {
		h.LastActivity = time.Now().UTC()
	}
}

// RekeyThread moves a handle from its pending placeholder to the canonical
// id revealed by the runtime. The returned snapshot carries the canonical ref.
func (r *Registry) RekeyThread(oldID, canonicalID string) (ThreadHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[oldID]
	if !ok {
		return ThreadHandle{}, fmt.Errorf("rekey %s: %w", oldID, ErrThreadNotFound)
	}

	if prev, exists := r.handles[canonicalID]; exists && prev != h {
		r.logger.Warn("rekey replacing existing handle", "thread_id", canonicalID)
	}

	delete(r.handles, oldID)
	h.Ref = CanonicalRef(canonicalID)
	h.LastActivity = time.Now().UTC()
	r.handles[canonicalID] = h

	r.logger.Debug("thread rekeyed", "old_id", oldID, "thread_id", canonicalID)
	return *h, nil
}

// EvictIdleThreads closes and drops handles whose last activity is older than
// maxIdle. Returns the number of handles evicted.
func (r *Registry) EvictIdleThreads(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	r.mu.Lock()
	var evicted []*ThreadHandle
	for id, h := range r.handles {
		if h.LastActivity.Before(cutoff) {
			delete(r.handles, id)
			evicted = append(evicted, h)
		}
	}
	remaining := len(r.handles)
	r.mu.Unlock()

	for _, h := range evicted {
		if err := h.Session.Close(); err != nil {
			r.logger.Warn("closing evicted session", "thread_id", h.Ref.ID(), "error", err)
		}
		r.logger.Info("thread evicted",
			"thread_id", h.Ref.ID(),
			"agent_type", h.AgentType,
			"idle", time.Since(h.LastActivity).Round(time.Second).String(),
		)
	}
	if len(evicted) > 0 {
		r.logger.Debug("idle sweep complete", "evicted", len(evicted), "remaining", remaining)
	}
	return len(evicted)
}

// ActiveThreads returns the number of live handles.
func (r *Registry) ActiveThreads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Close drops all handles and closes their sessions.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := make([]*ThreadHandle, 0, len(r.handles))
	for id, h := range r.handles {
		delete(r.handles, id)
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		if err := h.Session.Close(); err != nil {
			r.logger.Warn("closing session", "thread_id", h.Ref.ID(), "error", err)
		}
	}
	return nil
}

// clientFor returns the runtime client for an agent type, building it on
// first use.
func (r *Registry) clientFor(agentType string) (runtime.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentType)
	}
	if client, ok := r.clients[agentType]; ok {
		return client, nil
	}

	client, err := r.factory(p)
	if err != nil {
		return nil, fmt.Errorf("building runtime client for %s: %w", agentType, err)
	}
	r.clients[agentType] = client
	return client, nil
}
