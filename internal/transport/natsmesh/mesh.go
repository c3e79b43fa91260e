package natsmesh

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	nc "github.com/nats-io/nats.go"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/router"
)

// Handler is invoked for every MultiAgentMessage received on the mesh.
type Handler func(msg protocol.MultiAgentMessage)

// Mesh is a peer transport built on top of Client: it publishes every
// outbound message to the target peer's SubjectGatewayInbox and listens on
// both its own inbox and SubjectGatewayBroadcast, fulfilling
// router.MessageSender.
type Mesh struct {
	client       *Client
	localGateway string
	onMsg        Handler
	subs         []*nc.Subscription
}

// NewMesh connects to url and subscribes the local gateway's inbox plus
// the shared broadcast subject. onMsg is invoked for every message
// received; pass it the Router's Route method to feed traffic into the
// core.
func NewMesh(url, localGateway string, onMsg Handler) (*Mesh, error) {
	client, err := NewClient(url)
	if err != nil {
		return nil, err
	}

	if onMsg == nil {
		onMsg = func(protocol.MultiAgentMessage) {}
	}
	m := &Mesh{client: client, localGateway: localGateway, onMsg: onMsg}
	if err := m.subscribeAll(); err != nil {
		client.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mesh) subscribeAll() error {
	inboxSubject := fmt.Sprintf(SubjectGatewayInbox, m.localGateway)
	inboxSub, err := m.client.Subscribe(inboxSubject, m.deliver)
	if err != nil {
		return err
	}
	broadcastSub, err := m.client.Subscribe(SubjectGatewayBroadcast, m.deliver)
	if err != nil {
		return err
	}
	m.subs = append(m.subs, inboxSub, broadcastSub)
	return nil
}

func (m *Mesh) deliver(raw *Message) {
	var msg protocol.MultiAgentMessage
	if err := json.Unmarshal(raw.Data, &msg); err != nil {
		log.Printf("[NATSMESH] dropping malformed message on %s: %v", raw.Subject, err)
		return
	}
	m.onMsg(msg)
}

// Send implements router.MessageSender: every message, directed or
// broadcast, is published to peer's inbox subject. The Router calls Send
// once per connected peer, so a broadcast is published once per peer
// inbox; Send never publishes on SubjectGatewayBroadcast.
func (m *Mesh) Send(ctx context.Context, peer router.Peer, msg protocol.MultiAgentMessage) error {
	subject := fmt.Sprintf(SubjectGatewayInbox, peer.GatewayID)
	return m.client.PublishJSON(subject, msg)
}

// Close releases the underlying subscriptions and connection.
func (m *Mesh) Close() {
	for _, sub := range m.subs {
		sub.Unsubscribe()
	}
	m.client.Close()
}

// IsConnected reports whether the underlying NATS connection is live.
func (m *Mesh) IsConnected() bool {
	return m.client.IsConnected()
}
