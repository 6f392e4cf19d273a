// Package livesupport routes messages between customer and agent sockets,
// maintains the wait queue for escalated conversations, and auto-assigns
// agents. Socket maps are process-local; the queue and the agent
// notification channel live in redis so other processes stay informed.
package livesupport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/idfine/chatbot-platform/pkg/logging"
)

// agentChannel is the pub/sub channel carrying queue events across processes.
const agentChannel = "live_support:agents"

// previewLimit caps message previews in queue metadata and notifications.
const previewLimit = 200

// Conn is the write side of a live socket. Registered conns are written to
// from HTTP handlers and socket read loops at once, so implementations must
// tolerate concurrent WriteJSON calls; raw gorilla conns are wrapped in
// lockedConn before registration. Tests use in-memory fakes.
type Conn interface {
	WriteJSON(v any) error
}

// Event is a socket payload with a "type" discriminator.
type Event map[string]any

// Registry tracks which conversations are reachable from this process and
// fans queue events out to agent notification listeners everywhere.
type Registry struct {
	mu        sync.Mutex
	widgets   map[string]Conn
	agents    map[string]Conn
	listeners []Conn

	redis  *redis.Client
	logger *logging.Logger
}

// NewRegistry creates a connection registry.
func NewRegistry(rdb *redis.Client, logger *logging.Logger) *Registry {
	if rdb == nil {
		panic("livesupport: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		widgets: make(map[string]Conn),
		agents:  make(map[string]Conn),
		redis:   rdb,
		logger:  logger,
	}
}

// RegisterWidget binds the customer socket for a conversation. A reconnect
// simply replaces the previous entry.
func (r *Registry) RegisterWidget(conversationID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[conversationID] = c
}

// UnregisterWidget removes the customer socket. Idempotent.
func (r *Registry) UnregisterWidget(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.widgets, conversationID)
}

// RegisterAgent binds the agent socket for a conversation.
func (r *Registry) RegisterAgent(conversationID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[conversationID] = c
}

// UnregisterAgent removes the agent socket. Idempotent.
func (r *Registry) UnregisterAgent(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, conversationID)
}

// RegisterListener adds an agent notification socket.
func (r *Registry) RegisterListener(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, c)
}

// UnregisterListener removes an agent notification socket. Idempotent.
func (r *Registry) UnregisterListener(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l == c {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount reports how many agent notification sockets are connected
// to this process.
func (r *Registry) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// SendToWidget delivers a payload to the customer side. A transport failure
// evicts the stale entry and reports non-delivery; it never propagates.
func (r *Registry) SendToWidget(conversationID string, payload any) bool {
	r.mu.Lock()
	c, ok := r.widgets[conversationID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.WriteJSON(payload); err != nil {
		r.logger.Warn("widget send failed", "conversation_id", conversationID, "error", err)
		r.UnregisterWidget(conversationID)
		return false
	}
	return true
}

// SendToAgent delivers a payload to the agent side, with the same eviction
// semantics as SendToWidget.
func (r *Registry) SendToAgent(conversationID string, payload any) bool {
	r.mu.Lock()
	c, ok := r.agents[conversationID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.WriteJSON(payload); err != nil {
		r.logger.Warn("agent send failed", "conversation_id", conversationID, "error", err)
		r.UnregisterAgent(conversationID)
		return false
	}
	return true
}

// HasWidgetConnection reports whether the customer socket is live here.
func (r *Registry) HasWidgetConnection(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.widgets[conversationID]
	return ok
}

// HasAgentConnection reports whether the agent socket is live here.
func (r *Registry) HasAgentConnection(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[conversationID]
	return ok
}

// NotifyAgents publishes the event on the shared channel and pushes it to
// this process's local listeners directly, evicting any that fail.
func (r *Registry) NotifyAgents(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("livesupport: failed to encode event: %w", err)
	}
	if err := r.redis.Publish(ctx, agentChannel, payload).Err(); err != nil {
		// Local listeners still get the event; other processes miss it.
		r.logger.Error("agent event publish failed", "error", err)
	}

	r.mu.Lock()
	listeners := make([]Conn, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, l := range listeners {
		if err := l.WriteJSON(event); err != nil {
			r.logger.Warn("notification send failed", "error", err)
			r.UnregisterListener(l)
		}
	}
	return nil
}

// NotifyNewEscalation announces a newly queued conversation to all agents.
func (r *Registry) NotifyNewEscalation(ctx context.Context, conversationID, preview, sourceGroupID string) error {
	return r.NotifyAgents(ctx, Event{
		"type":            "new_escalation",
		"conversation_id": conversationID,
		"preview":         truncate(preview, previewLimit),
		"source_group_id": sourceGroupID,
		"timestamp":       time.Now().Unix(),
	})
}

// NotifyQueueUpdate broadcasts a queue-affecting transition with the current
// waiting count so dashboards stay live without polling.
func (r *Registry) NotifyQueueUpdate(ctx context.Context, conversationID, event string) error {
	count, err := r.redis.ZCard(ctx, queueKey).Result()
	if err != nil {
		return fmt.Errorf("livesupport: failed to read queue count: %w", err)
	}
	return r.NotifyAgents(ctx, Event{
		"type":            "queue_update",
		"event":           event,
		"conversation_id": conversationID,
		"waiting_count":   count,
	})
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
