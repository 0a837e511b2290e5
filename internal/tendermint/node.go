// Package tendermint hosts the ABCI application for an external Tendermint
// node. The application listens on a socket, Tendermint runs as its own
// process (optionally managed by this package) and connects to it, and
// clients submit signed transactions through Tendermint's JSON-RPC.
package tendermint

import (
	"fmt"
	"os"
	"strings"

	abciserver "github.com/tendermint/tendermint/abci/server"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/service"
)

// DefaultSocket is used when no socket address is configured.
const DefaultSocket = "unix://lkn.sock"

// Config holds configuration for the ABCI server and Tendermint connection.
type Config struct {
	// TendermintHome is the directory for Tendermint data and config
	TendermintHome string

	// SocketAddress is the ABCI listen address, "unix://path" or "tcp://host:port"
	SocketAddress string
}

// ABCIServer wraps an ABCI socket server.
type ABCIServer struct {
	server service.Service
	socket string
}

// NewABCIServer creates a socket server for app. It does not listen until
// Start is called.
func NewABCIServer(app abci.Application, config *Config) (*ABCIServer, error) {
	if app == nil {
		return nil, fmt.Errorf("ABCI application cannot be nil")
	}
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	socket := config.SocketAddress
	if socket == "" {
		socket = DefaultSocket
	}

	return &ABCIServer{
		server: abciserver.NewSocketServer(socket, app),
		socket: socket,
	}, nil
}

// Start begins listening for Tendermint connections. A stale unix socket
// left by a crashed process is removed first.
func (s *ABCIServer) Start() error {
	if path, ok := unixPath(s.socket); ok {
		if _, err := os.Stat(path); err == nil {
			os.Remove(path)
		}
	}
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("failed to start ABCI server: %w", err)
	}
	return nil
}

// Stop shuts down the server and removes the socket file.
func (s *ABCIServer) Stop() error {
	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			return fmt.Errorf("failed to stop ABCI server: %w", err)
		}
	}
	if path, ok := unixPath(s.socket); ok {
		if _, err := os.Stat(path); err == nil {
			os.Remove(path)
		}
	}
	return nil
}

// IsRunning reports whether the server is listening.
func (s *ABCIServer) IsRunning() bool {
	return s.server.IsRunning()
}

// SocketPath returns the socket address the server listens on.
func (s *ABCIServer) SocketPath() string {
	return s.socket
}

func unixPath(addr string) (string, bool) {
	if strings.HasPrefix(addr, "unix://") {
		return strings.TrimPrefix(addr, "unix://"), true
	}
	return "", false
}
