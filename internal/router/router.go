// Package router implements the channel router: the registry of channel
// senders, the channel→session binding table, and the outbound fan-out
// queue that decouples the agent runtime from any particular adapter.
package router

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// Sender is the write side of an adapter's inbound queue, registered with
// the router so that Route can forward a ChannelEvent to the right adapter.
type Sender chan<- models.ChannelEvent

// Router is safe for concurrent use by many adapters and the agent runtime.
// Its tables are lock-striped: independent mutexes guard the channel
// registry, the session bindings, and the outbound queue so that a slow
// reader in one never blocks registration activity for another.
type Router struct {
	chansMu sync.RWMutex
	chans   map[models.ChannelID]Sender

	bindingsMu sync.RWMutex
	bindings   map[models.ChannelID]models.SessionID

	outbound chan models.AgentResponse
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// WithMetrics attaches m so every Respond call records an outbound message
// for its channel. m may be nil, in which case recording is a no-op.
func (r *Router) WithMetrics(m *metrics.Metrics) *Router {
	r.metrics = m
	return r
}

// channelKind reduces a ChannelID like "telegram:12345" to its adapter
// prefix ("telegram") for metric labeling.
func channelKind(channelID models.ChannelID) string {
	return strings.SplitN(string(channelID), ":", 2)[0]
}

// New creates a Router whose outbound fan-out queue has the given capacity.
func New(outboundCapacity int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		chans:    make(map[models.ChannelID]Sender),
		bindings: make(map[models.ChannelID]models.SessionID),
		outbound: make(chan models.AgentResponse, outboundCapacity),
		logger:   logger,
	}
}

// Register associates an adapter's inbound sender with channelID. A second
// Register call for the same id replaces the sender (e.g. on reconnect).
func (r *Router) Register(channelID models.ChannelID, sender Sender) {
	r.chansMu.Lock()
	r.chans[channelID] = sender
	r.chansMu.Unlock()
}

// Deregister removes channelID's sender and drops any session binding for
// it. Safe to call on an id that was never registered.
func (r *Router) Deregister(channelID models.ChannelID) {
	r.chansMu.Lock()
	delete(r.chans, channelID)
	r.chansMu.Unlock()

	r.bindingsMu.Lock()
	delete(r.bindings, channelID)
	r.bindingsMu.Unlock()
}

// BindSession declares which session owns channelID. Rebinding overwrites
// the previous session.
func (r *Router) BindSession(channelID models.ChannelID, sessionID models.SessionID) {
	r.bindingsMu.Lock()
	r.bindings[channelID] = sessionID
	r.bindingsMu.Unlock()
}

// SessionFor looks up the session bound to channelID.
func (r *Router) SessionFor(channelID models.ChannelID) (models.SessionID, bool) {
	r.bindingsMu.RLock()
	defer r.bindingsMu.RUnlock()
	sessionID, ok := r.bindings[channelID]
	return sessionID, ok
}

// Route forwards event to the sender registered for event.ChannelID. It
// returns false — logging a warning rather than panicking or poisoning the
// registry — if no sender is registered, or if the send cannot complete
// because the adapter's receiver has gone away.
func (r *Router) Route(event models.ChannelEvent) bool {
	r.chansMu.RLock()
	sender, ok := r.chans[event.ChannelID]
	r.chansMu.RUnlock()
	if !ok {
		r.logger.Warn("router: no sender registered for channel", "channel_id", event.ChannelID)
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("router: send on closed channel", "channel_id", event.ChannelID)
		}
	}()
	sender <- event
	r.metrics.ObserveMessage(channelKind(event.ChannelID), "inbound")
	return true
}

// Respond pushes resp onto the central outbound fan-out queue. The caller
// (typically the agent runtime) blocks if the queue is full, matching the
// project-wide backpressure-over-drop policy.
func (r *Router) Respond(resp models.AgentResponse) {
	r.metrics.ObserveMessage(channelKind(resp.ChannelID), "outbound")
	r.outbound <- resp
}

// Outbound returns the receive side of the fan-out queue, which a
// dispatcher loop drains and hands back to the owning adapter by channel
// prefix. Adapters never hold a Router reference; they only read from this
// channel, breaking the adapter↔router reference cycle.
func (r *Router) Outbound() <-chan models.AgentResponse {
	return r.outbound
}

// ChannelCount returns the number of currently registered channels.
func (r *Router) ChannelCount() int {
	r.chansMu.RLock()
	defer r.chansMu.RUnlock()
	return len(r.chans)
}
