package tendermint

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// TendermintHome returns the default Tendermint home directory.
func TendermintHome() string {
	if home := os.Getenv("TMHOME"); home != "" {
		return home
	}
	return filepath.Join(os.Getenv("HOME"), ".tendermint")
}

// InitTendermint runs `tendermint init` once for tmHome. An existing
// config.toml means the home is already initialized.
func InitTendermint(ctx context.Context, binary, tmHome string) error {
	if tmHome == "" {
		tmHome = TendermintHome()
	}
	if _, err := os.Stat(filepath.Join(tmHome, "config", "config.toml")); err == nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, binaryOrDefault(binary), "init", "--home", tmHome)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to initialize Tendermint: %w", err)
	}
	return nil
}

// NodeCommand returns the command starting a Tendermint node that connects
// to the ABCI socket. persistentPeers are "id@host:port" addresses.
func NodeCommand(ctx context.Context, binary, tmHome, socketAddr string, persistentPeers ...string) *exec.Cmd {
	if tmHome == "" {
		tmHome = TendermintHome()
	}
	if socketAddr == "" {
		socketAddr = DefaultSocket
	}

	args := []string{"node", "--home", tmHome, "--proxy_app", socketAddr}
	if len(persistentPeers) > 0 {
		args = append(args, "--p2p.persistent_peers", strings.Join(persistentPeers, ","))
	}
	cmd := exec.CommandContext(ctx, binaryOrDefault(binary), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// NodeID returns the id of the node key in tmHome.
func NodeID(ctx context.Context, binary, tmHome string) (string, error) {
	if tmHome == "" {
		tmHome = TendermintHome()
	}
	out, err := exec.CommandContext(ctx, binaryOrDefault(binary), "show-node-id", "--home", tmHome).Output()
	if err != nil {
		return "", fmt.Errorf("read tendermint node id: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func binaryOrDefault(binary string) string {
	if binary == "" {
		return "tendermint"
	}
	return binary
}

// Process supervises a Tendermint node started by this program.
type Process struct {
	Binary string
	Home   string
	Socket string
	// Peers are passed as persistent peers when the node starts.
	Peers []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan error
}

// Start initializes the home if needed and launches the node. The node is
// killed when ctx is cancelled or Stop is called.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return fmt.Errorf("tendermint already running")
	}

	if err := InitTendermint(ctx, p.Binary, p.Home); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := NodeCommand(runCtx, p.Binary, p.Home, p.Socket, p.Peers...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start tendermint: %w", err)
	}

	p.cmd = cmd
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err != nil && runCtx.Err() == nil {
			log.Printf("ERROR: tendermint exited: %v", err)
		}
		p.done <- err
	}()
	log.Printf("INFO: Started tendermint (pid %d, home %s)", cmd.Process.Pid, p.Home)
	return nil
}

// Stop terminates the node and waits for it to exit.
func (p *Process) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cmd, p.cancel, p.done = nil, nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
