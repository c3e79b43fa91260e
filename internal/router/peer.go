package router

import (
	"context"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
)

// PeerStatus mirrors a peer gateway's connection state.
type PeerStatus string

const (
	PeerConnecting   PeerStatus = "connecting"
	PeerConnected    PeerStatus = "connected"
	PeerDisconnected PeerStatus = "disconnected"
)

// Peer describes a gateway reachable through the mesh.
type Peer struct {
	GatewayID string
	Status    PeerStatus
}

// MessageSender is the transport hook the Router calls to forward a
// message to a connected peer. Implementations (e.g.
// internal/transport/wsmesh, internal/transport/natsmesh) fulfill this
// hook outside the Router's lock; the zero value is a no-op.
type MessageSender func(ctx context.Context, peer Peer, msg protocol.MultiAgentMessage) error
