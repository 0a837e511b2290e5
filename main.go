// Package main is the entry point for the lkn node.
// It loads the node key and configuration, opens the state database, serves
// the ABCI application to Tendermint and exposes the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/natefinch/lumberjack"

	"likoin.network/lkn/internal/abci"
	"likoin.network/lkn/internal/api"
	"likoin.network/lkn/internal/config"
	"likoin.network/lkn/internal/discovery"
	"likoin.network/lkn/internal/docs"
	"likoin.network/lkn/internal/identity"
	"likoin.network/lkn/internal/logger"
	"likoin.network/lkn/internal/store"
	"likoin.network/lkn/internal/tendermint"
	"likoin.network/lkn/internal/types"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogFile != "" {
		w := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		defer w.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, w))
	}
	log.Printf("INFO: lkn %s (%s) starting...", types.Version, types.BuildTime)

	id, err := identity.LoadOrCreateIdentity(cfg.KeyFile)
	if err != nil {
		log.Fatalf("Failed to load node key: %v", err)
	}
	nodeAddr := types.Address(id.PublicKeyHex())
	log.Printf("INFO: Node address %s", nodeAddr)

	st, err := store.NewStore(cfg.DataFile)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()
	log.Printf("INFO: State database at %s", st.Path())

	events := logger.New(cfg.LogBuffer)

	app, err := abci.NewABCIApplication(cfg.GenesisFor(nodeAddr), st, events, abci.Options{KeepSnapshots: cfg.KeepSnapshots})
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	height, _ := app.LastCommit()

	socket := cfg.SocketAddress
	abciServer, err := tendermint.NewABCIServer(app, &tendermint.Config{
		TendermintHome: cfg.TendermintHome,
		SocketAddress:  socket,
	})
	if err != nil {
		log.Fatalf("Failed to create ABCI server: %v", err)
	}
	if err := abciServer.Start(); err != nil {
		log.Fatalf("Failed to start ABCI server: %v", err)
	}
	log.Printf("INFO: ABCI server listening on %s (height %d)", abciServer.SocketPath(), height)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := resolvePort(cfg.Port)
	if err := ensurePortAvailable(port); err != nil {
		log.Fatalf("Port %d unavailable: %v", port, err)
	}

	home := cfg.TendermintHome
	if home == "" {
		home = tendermint.TendermintHome()
	}

	var disc *discovery.DiscoveryService
	if cfg.Discovery {
		disc = startDiscovery(ctx, cfg, home, string(nodeAddr), port)
		if disc != nil {
			defer disc.Stop()
		}
	}

	var node *tendermint.Process
	if cfg.ManageTendermint {
		node = &tendermint.Process{Binary: cfg.TendermintBinary, Home: home, Socket: socket}
		if disc != nil {
			// give the LAN a moment to answer before the peer list is fixed
			time.Sleep(3 * time.Second)
			node.Peers = disc.PersistentPeers()
			log.Printf("INFO: Seeding tendermint with %d discovered peers", len(node.Peers))
		}
		if err := node.Start(ctx); err != nil {
			log.Fatalf("Failed to start tendermint: %v", err)
		}
	}

	var peers api.PeerLister
	if disc != nil {
		peers = disc
	}
	svc := api.NewService(app, st, tendermint.NewBroadcastClient(cfg.TendermintRPC), docs.NewService(cfg.DocsDir), events, api.Options{
		NodeID:     string(nodeAddr),
		MaxBackups: cfg.MaxBackups,
		Peers:      peers,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ListenAndServe()
	}()
	log.Printf("INFO: API available at http://localhost:%d/api", port)

	select {
	case <-ctx.Done():
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: API server exited: %v", err)
		}
	}

	log.Println("INFO: Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: API shutdown: %v", err)
	}
	if node != nil {
		node.Stop()
	}
	if err := abciServer.Stop(); err != nil {
		log.Printf("WARN: ABCI server stop: %v", err)
	}
}

// startDiscovery announces the node on the LAN. Failures only disable
// discovery.
func startDiscovery(ctx context.Context, cfg *config.Config, home, addr string, port int) *discovery.DiscoveryService {
	ann := discovery.Announcement{Address: addr, APIPort: port, P2PPort: cfg.P2PPort}
	if cfg.ManageTendermint {
		if err := tendermint.InitTendermint(ctx, cfg.TendermintBinary, home); err != nil {
			log.Printf("WARN: %v", err)
		} else if id, err := tendermint.NodeID(ctx, cfg.TendermintBinary, home); err == nil {
			ann.NodeID = id
		}
	}

	disc, err := discovery.NewDiscoveryService()
	if err != nil {
		log.Printf("WARN: mDNS discovery unavailable: %v", err)
		return nil
	}
	if err := disc.Start(ctx, ann); err != nil {
		log.Printf("WARN: mDNS announce failed: %v", err)
		return nil
	}
	return disc
}

func resolvePort(defaultPort int) int {
	portStr := os.Getenv("PORT")
	if portStr == "" {
		return defaultPort
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		log.Printf("Warning: invalid PORT value %q, using %d", portStr, defaultPort)
		return defaultPort
	}

	return port
}

func ensurePortAvailable(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}
