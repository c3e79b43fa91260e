package natsmesh

import (
	"context"
	"testing"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/router"
)

func startTestServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := NewEmbeddedServer(EmbeddedServerConfig{Port: 14222})
	if err != nil {
		t.Fatalf("NewEmbeddedServer failed: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestMeshSendDeliversToGatewayInbox(t *testing.T) {
	srv := startTestServer(t)

	received := make(chan protocol.MultiAgentMessage, 1)
	receiverMesh, err := NewMesh(srv.URL(), "gw-receiver", func(msg protocol.MultiAgentMessage) { received <- msg })
	if err != nil {
		t.Fatalf("NewMesh (receiver) failed: %v", err)
	}
	defer receiverMesh.Close()

	senderMesh, err := NewMesh(srv.URL(), "gw-sender", nil)
	if err != nil {
		t.Fatalf("NewMesh (sender) failed: %v", err)
	}
	defer senderMesh.Close()

	msg := protocol.MultiAgentMessage{
		Envelope: protocol.Envelope{
			MessageID: protocol.NewInstanceID(), CorrelationID: protocol.NewInstanceID(),
			Direction: protocol.DirectionRequest, ProtocolVersion: protocol.ProtocolVersion,
		},
		Payload: protocol.Payload{Type: protocol.PayloadHeartbeat, Heartbeat: &protocol.HeartbeatPayload{Load: 0.4}},
	}

	if err := senderMesh.Send(context.Background(), router.Peer{GatewayID: "gw-receiver"}, msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-received:
		if got.Envelope.MessageID != msg.Envelope.MessageID {
			t.Errorf("expected messageId %s, got %s", msg.Envelope.MessageID, got.Envelope.MessageID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message delivery")
	}
}

func TestMeshIsConnected(t *testing.T) {
	srv := startTestServer(t)
	m, err := NewMesh(srv.URL(), "gw-1", nil)
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}
	defer m.Close()

	if !m.IsConnected() {
		t.Fatal("expected mesh to report connected")
	}
}
