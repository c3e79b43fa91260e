// Command gateway runs one coordination-core gateway: it wires the
// Orchestrator to an HTTP RPC surface and, optionally, a mesh transport
// so it can exchange messages with peer gateways.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/cliaimonitor/agentmesh/internal/config"
	"github.com/cliaimonitor/agentmesh/internal/gatewayhttp"
	"github.com/cliaimonitor/agentmesh/internal/notify"
	"github.com/cliaimonitor/agentmesh/internal/orchestrator"
	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/router"
	"github.com/cliaimonitor/agentmesh/internal/transport/natsmesh"
	"github.com/cliaimonitor/agentmesh/internal/transport/wsmesh"
)

// wsUpgrader accepts connections from any origin: peer gateways are
// trusted operator-configured endpoints, not browsers.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	gatewayID := flag.String("gateway-id", "", "this gateway's id (required)")
	port := flag.Int("port", 8080, "HTTP port for the RPC surface")
	rolesConfigPath := flag.String("roles-config", "", "optional roles.yaml to load at startup")
	transportMode := flag.String("transport", "none", "peer transport: none, ws, or nats")
	peerList := flag.String("peers", "", "transport=ws: comma-separated gatewayId=wsURL pairs to dial at startup")
	natsURL := flag.String("nats-url", "", "NATS server URL (transport=nats; empty starts an embedded server)")
	natsEmbeddedPort := flag.Int("nats-port", 4222, "port for the embedded NATS server (transport=nats, nats-url empty)")
	flag.Parse()

	if *gatewayID == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -gateway-id is required")
		os.Exit(1)
	}

	log.Println("===============================================")
	log.Printf("  Gateway %s starting on port %d", *gatewayID, *port)
	log.Println("===============================================")

	var sendToPeer router.MessageSender
	var wsTransport *wsmesh.Mesh

	// routeInbound is filled in once orc exists; the transports need a
	// Handler now but orc.Router.Route isn't available until after New.
	var routeInbound wsmesh.Handler = func(protocol.MultiAgentMessage) {}
	routeInboundPtr := &routeInbound

	switch *transportMode {
	case "none":
		log.Println("[GATEWAY] running without a peer transport (single-gateway mode)")
	case "ws":
		wsTransport = wsmesh.New(func(msg protocol.MultiAgentMessage) { (*routeInboundPtr)(msg) })
		sendToPeer = wsTransport.Send
		log.Println("[GATEWAY] websocket mesh transport enabled")
	case "nats":
		url := *natsURL
		if url == "" {
			srv, err := natsmesh.NewEmbeddedServer(natsmesh.EmbeddedServerConfig{Port: *natsEmbeddedPort})
			if err != nil {
				log.Fatalf("failed to configure embedded NATS server: %v", err)
			}
			if err := srv.Start(); err != nil {
				log.Fatalf("failed to start embedded NATS server: %v", err)
			}
			defer srv.Shutdown()
			url = srv.URL()
			log.Printf("[GATEWAY] embedded NATS server listening at %s", url)
		}
		mesh, err := natsmesh.NewMesh(url, *gatewayID, func(msg protocol.MultiAgentMessage) { (*routeInboundPtr)(msg) })
		if err != nil {
			log.Fatalf("failed to connect NATS mesh: %v", err)
		}
		defer mesh.Close()
		sendToPeer = mesh.Send
		log.Printf("[GATEWAY] NATS mesh transport connected to %s", url)
	default:
		fmt.Fprintf(os.Stderr, "ERROR: unknown -transport %q (want none, ws, or nats)\n", *transportMode)
		os.Exit(1)
	}

	orc := orchestrator.New(orchestrator.DefaultConfig(*gatewayID), sendToPeer)
	*routeInboundPtr = func(msg protocol.MultiAgentMessage) {
		orc.Router.Route(context.Background(), msg)
	}

	notifyManager := notify.NewDefaultManager()
	notifyManager.SetTerminalTitle(*gatewayID)
	notifyRouter := notify.NewRouter([]notify.Channel{
		notify.NewManagerChannel(notifyManager, orc.Tasks.GetTask),
	})
	orc.OnEvent(nil, notifyRouter.Route)

	if *rolesConfigPath != "" {
		cfg, err := config.LoadRolesConfig(*rolesConfigPath)
		if err != nil {
			log.Fatalf("failed to load roles config %s: %v", *rolesConfigPath, err)
		}
		if err := config.ApplyToManager(cfg, orc.Roles); err != nil {
			log.Fatalf("failed to apply roles config: %v", err)
		}
		log.Printf("[GATEWAY] loaded %d role(s) from %s", len(cfg.Roles), *rolesConfigPath)
	}

	if wsTransport != nil && *peerList != "" {
		for _, pair := range strings.Split(*peerList, ",") {
			parts := strings.SplitN(pair, "=", 2)
			if len(parts) != 2 {
				log.Fatalf("malformed -peers entry %q, want gatewayId=wsURL", pair)
			}
			peerID, peerURL := parts[0], parts[1]
			if err := wsTransport.Dial(peerID, peerURL); err != nil {
				log.Fatalf("failed to dial peer %s: %v", peerID, err)
			}
			orc.Router.RegisterPeer(router.Peer{GatewayID: peerID, Status: router.PeerConnected})
			log.Printf("[GATEWAY] dialed peer %s at %s", peerID, peerURL)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orc.Start(ctx)

	muxRouter := mux.NewRouter()
	gatewayhttp.NewHandler(orc).RegisterRoutes(muxRouter)
	if wsTransport != nil {
		muxRouter.HandleFunc("/ws/{gatewayId}", func(w http.ResponseWriter, r *http.Request) {
			peerID := mux.Vars(r)["gatewayId"]
			ws, err := wsUpgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Printf("[GATEWAY] websocket upgrade from %s failed: %v", peerID, err)
				return
			}
			wsTransport.Accept(peerID, ws)
			orc.Router.RegisterPeer(router.Peer{GatewayID: peerID, Status: router.PeerConnected})
			log.Printf("[GATEWAY] accepted inbound peer connection from %s", peerID)
		})
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: muxRouter,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe()
	}()

	log.Printf("[GATEWAY] RPC surface listening on :%d", *port)
	log.Println("  Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Printf("[GATEWAY] RPC server error: %v", err)
		}
	case <-sigCh:
		log.Println("[GATEWAY] shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[GATEWAY] error shutting down RPC server: %v", err)
	}

	cancel()
	orc.Shutdown(shutdownCtx)
	log.Println("[GATEWAY] stopped")
}
