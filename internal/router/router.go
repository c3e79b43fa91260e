// Package router implements the Router component of the multi-agent
// coordination core: subscription dispatch, message deduplication, TTL and
// hop-count enforcement, and local-vs-remote delivery.
package router

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

// maxHopCount is the hard cap on forwarding: messages at or above this
// hop count are dropped rather than forwarded.
const maxHopCount = 16

// Filter narrows a subscription to messages matching the given fields;
// a zero-value field matches everything.
type Filter struct {
	PayloadType       protocol.PayloadType
	FromAgentConfigID string
	FromRoleID        string
}

func (f Filter) matches(msg protocol.MultiAgentMessage) bool {
	if f.PayloadType != "" && f.PayloadType != msg.Payload.Type {
		return false
	}
	if f.FromAgentConfigID != "" && f.FromAgentConfigID != msg.Envelope.From.AgentConfigID {
		return false
	}
	if f.FromRoleID != "" && f.FromRoleID != msg.Envelope.From.RoleID {
		return false
	}
	return true
}

// Handler is invoked for every locally delivered message matching a
// subscription's Filter. A Handler must not block for long; if it returns
// an error the Router logs it and moves on to the next handler — one bad
// handler never blocks or breaks delivery to the others.
type Handler func(ctx context.Context, msg protocol.MultiAgentMessage) error

type subscription struct {
	id      uint64
	filter  Filter
	handler Handler
}

// Router delivers MultiAgentMessages to matching local subscribers and
// queues them for forwarding to connected peer gateways.
type Router struct {
	mu sync.RWMutex

	localGatewayID string
	localAgents    map[string]protocol.Identity // agentInstanceId -> identity
	peers          map[string]Peer              // gatewayId -> peer
	subs           []subscription
	nextSubID      uint64
	seen           *dedupSet

	sendToPeer MessageSender
	now        func() time.Time
	log        *log.Logger
}

// New creates a Router for the given local gateway. sendToPeer may be nil,
// in which case peer forwarding is a no-op.
func New(localGatewayID string, sendToPeer MessageSender) *Router {
	if sendToPeer == nil {
		sendToPeer = func(context.Context, Peer, protocol.MultiAgentMessage) error { return nil }
	}
	return &Router{
		localGatewayID: localGatewayID,
		localAgents:    make(map[string]protocol.Identity),
		peers:          make(map[string]Peer),
		seen:           newDedupSet(),
		sendToPeer:     sendToPeer,
		now:            time.Now,
		log:            log.New(os.Stderr, "[ROUTER] ", log.LstdFlags),
	}
}

// RegisterLocalAgent adds id to the local-agent map.
func (r *Router) RegisterLocalAgent(id protocol.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localAgents[id.AgentInstanceID] = id
}

// UnregisterLocalAgent removes instanceID from the local-agent map.
func (r *Router) UnregisterLocalAgent(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.localAgents, instanceID)
}

// LocalAgents returns a snapshot of currently registered local agents.
func (r *Router) LocalAgents() []protocol.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Identity, 0, len(r.localAgents))
	for _, id := range r.localAgents {
		out = append(out, id)
	}
	return out
}

// RegisterPeer adds or updates a peer gateway's entry.
func (r *Router) RegisterPeer(peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[peer.GatewayID] = peer
}

// RemovePeer deletes a peer gateway's entry.
func (r *Router) RemovePeer(gatewayID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, gatewayID)
}

// Subscribe registers handler for messages matching filter and returns an
// unsubscribe function.
func (r *Router) Subscribe(filter Filter, handler Handler) func() {
	r.mu.Lock()
	r.nextSubID++
	id := r.nextSubID
	r.subs = append(r.subs, subscription{id: id, filter: filter, handler: handler})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// Send constructs an envelope for payload, assigns it a fresh messageId,
// inherits or mints a correlationId, derives direction from whether `to`
// is present, and routes it immediately.
func (r *Router) Send(ctx context.Context, from protocol.Identity, to *protocol.Identity, payload protocol.Payload, correlationID string, opts ...func(*protocol.Envelope)) protocol.Envelope {
	direction := protocol.DirectionBroadcast
	if to != nil {
		direction = protocol.DirectionRequest
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	env := protocol.Envelope{
		MessageID:       uuid.New().String(),
		CorrelationID:   correlationID,
		Timestamp:       r.now(),
		From:            from,
		To:              to,
		Direction:       direction,
		ProtocolVersion: protocol.ProtocolVersion,
	}
	for _, opt := range opts {
		opt(&env)
	}

	msg := protocol.MultiAgentMessage{Envelope: env, Payload: payload}
	r.Route(ctx, msg)
	return env
}

// Route is the entry point for both locally originated and peer-received
// messages: it dedups, enforces TTL/hop-count, then dispatches locally
// and/or forwards to peers.
func (r *Router) Route(ctx context.Context, msg protocol.MultiAgentMessage) {
	r.mu.Lock()
	if r.seen.seenBefore(msg.Envelope.MessageID) {
		r.mu.Unlock()
		r.log.Printf("debug: dropping duplicate message %s", msg.Envelope.MessageID)
		return
	}
	now := r.now()
	if msg.Envelope.Expired(now) {
		r.mu.Unlock()
		r.log.Printf("debug: dropping expired message %s", msg.Envelope.MessageID)
		return
	}
	if msg.Envelope.HopCount >= maxHopCount {
		r.mu.Unlock()
		r.log.Printf("debug: dropping message %s at hop limit", msg.Envelope.MessageID)
		return
	}

	to := msg.Envelope.To
	isLocal := to == nil || to.GatewayID == r.localGatewayID
	isRemote := to != nil && to.GatewayID != r.localGatewayID
	isBroadcast := msg.Envelope.Direction == protocol.DirectionBroadcast

	var matched []subscription
	if isLocal || isBroadcast {
		matched = make([]subscription, 0, len(r.subs))
		for _, s := range r.subs {
			if s.filter.matches(msg) {
				matched = append(matched, s)
			}
		}
	}

	var peersToForward []Peer
	if isRemote || isBroadcast {
		for _, p := range r.peers {
			if p.Status != PeerConnected {
				continue
			}
			if isRemote && p.GatewayID != to.GatewayID {
				continue
			}
			peersToForward = append(peersToForward, p)
		}
	}
	r.mu.Unlock()

	if len(matched) > 0 {
		r.deliverLocal(ctx, matched, msg)
	}
	if len(peersToForward) > 0 {
		r.forwardToPeers(ctx, peersToForward, msg)
	}
}

// deliverLocal invokes each matching handler, isolating failures so one
// bad handler never blocks or breaks delivery to the others.
func (r *Router) deliverLocal(ctx context.Context, subs []subscription, msg protocol.MultiAgentMessage) {
	for _, s := range subs {
		r.invokeHandler(ctx, s, msg)
	}
}

func (r *Router) invokeHandler(ctx context.Context, s subscription, msg protocol.MultiAgentMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Printf("handler panic for subscription %d: %v", s.id, rec)
		}
	}()
	if err := s.handler(ctx, msg); err != nil {
		r.log.Printf("handler error for subscription %d: %v", s.id, err)
	}
}

// forwardToPeers clones the envelope with an incremented hop count and
// calls sendToPeer for each connected peer outside the Router's lock.
func (r *Router) forwardToPeers(ctx context.Context, peers []Peer, msg protocol.MultiAgentMessage) {
	clone := msg
	clone.Envelope = msg.Envelope.Clone()
	clone.Envelope.HopCount++

	for _, p := range peers {
		if err := r.sendToPeer(ctx, p, clone); err != nil {
			r.log.Printf("forward to peer %s failed: %v", p.GatewayID, err)
		}
	}
}

// SeenCount returns the current size of the dedup set, for diagnostics
// and tests.
func (r *Router) SeenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seen.size()
}
