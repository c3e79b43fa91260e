// Package wsmesh is a WebSocket-based peer transport fulfilling the
// Router's SendToPeer hook: one persistent connection per peer gateway,
// carrying JSON-encoded MultiAgentMessages.
package wsmesh

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/router"
)

// sendBufferSize is the per-connection outbound queue depth.
const sendBufferSize = 256

// Handler is invoked for every message read off a peer connection.
type Handler func(msg protocol.MultiAgentMessage)

// conn wraps one peer's websocket.Conn with its own outbound queue.
type conn struct {
	gatewayID string
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// Mesh maintains one connection per peer gateway and fulfills
// router.MessageSender by writing to the matching connection.
type Mesh struct {
	mu      sync.RWMutex
	conns   map[string]*conn // gatewayId -> conn
	onMsg   Handler
	dialer  *websocket.Dialer
}

// New creates an empty Mesh. onMsg is invoked (on its own goroutine per
// connection) for every message received from a peer; pass it the
// Router's Route method to feed inbound traffic into the core.
func New(onMsg Handler) *Mesh {
	return &Mesh{
		conns:  make(map[string]*conn),
		onMsg:  onMsg,
		dialer: websocket.DefaultDialer,
	}
}

// Dial opens an outbound connection to a peer gateway at url and
// registers it under gatewayID.
func (m *Mesh) Dial(gatewayID, url string) error {
	if err := protocol.ValidateGatewayURL(url); err != nil {
		return err
	}
	ws, _, err := m.dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("wsmesh: dial %s: %w", gatewayID, err)
	}
	m.register(gatewayID, ws)
	return nil
}

// Accept registers an already-upgraded inbound connection under
// gatewayID (used by an HTTP upgrade handler elsewhere in the gateway).
func (m *Mesh) Accept(gatewayID string, ws *websocket.Conn) {
	m.register(gatewayID, ws)
}

func (m *Mesh) register(gatewayID string, ws *websocket.Conn) {
	c := &conn{gatewayID: gatewayID, ws: ws, send: make(chan []byte, sendBufferSize)}

	m.mu.Lock()
	if old, ok := m.conns[gatewayID]; ok {
		old.closeLocked()
	}
	m.conns[gatewayID] = c
	m.mu.Unlock()

	go m.writePump(c)
	go m.readPump(c)
}

// Send implements router.MessageSender: it looks up the connection for
// peer.GatewayID and enqueues the JSON-encoded message.
func (m *Mesh) Send(ctx context.Context, peer router.Peer, msg protocol.MultiAgentMessage) error {
	m.mu.RLock()
	c, ok := m.conns[peer.GatewayID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsmesh: no connection to gateway %s", peer.GatewayID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("wsmesh: send queue full for gateway %s", peer.GatewayID)
	}
}

// Disconnect closes and forgets the connection for gatewayID, if any.
func (m *Mesh) Disconnect(gatewayID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[gatewayID]; ok {
		c.closeLocked()
		delete(m.conns, gatewayID)
	}
}

// ConnectedGateways returns the gatewayIds currently connected.
func (m *Mesh) ConnectedGateways() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.conns))
	for id := range m.conns {
		out = append(out, id)
	}
	return out
}

func (c *conn) closeLocked() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.ws.Close()
	})
}

func (m *Mesh) readPump(c *conn) {
	defer m.forget(c)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg protocol.MultiAgentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[WSMESH] dropping malformed message from %s: %v", c.gatewayID, err)
			continue
		}
		if m.onMsg != nil {
			m.onMsg(msg)
		}
	}
}

func (m *Mesh) writePump(c *conn) {
	defer c.ws.Close()
	for data := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (m *Mesh) forget(c *conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.conns[c.gatewayID]; ok && current == c {
		delete(m.conns, c.gatewayID)
	}
	c.closeLocked()
}
