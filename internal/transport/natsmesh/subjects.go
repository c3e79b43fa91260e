// Package natsmesh is a NATS-based peer transport fulfilling the Router's
// SendToPeer hook: one per-gateway inbox subject carrying
// MultiAgentMessage envelopes.
package natsmesh

// SubjectGatewayInbox is the pattern every gateway subscribes to for
// inbound peer traffic. Use fmt.Sprintf(SubjectGatewayInbox, gatewayID)
// to address a specific gateway.
const SubjectGatewayInbox = "agentmesh.gateway.%s.inbox"

// SubjectGatewayBroadcast is the subject all gateways subscribe to for
// broadcast-direction messages.
const SubjectGatewayBroadcast = "agentmesh.broadcast"
