// Package config centralizes runtime configuration for lkn. It loads a
// JSON configuration file and exposes a process-wide configuration with
// sensible defaults. Development builds run on the defaults when the file
// is absent; operators point CONFIG_FILE at their own file.
package config

import (
	"encoding/json"
	"os"

	"likoin.network/lkn/internal/state"
	"likoin.network/lkn/internal/types"
)

// Config holds configurable options for the lkn node.
type Config struct {
	KeyFile  string `json:"key_file"`
	DataFile string `json:"data_file"`
	Port     int    `json:"port"`
	DocsDir  string `json:"docs_dir"`
	LogFile  string `json:"log_file"`
	// LogBuffer is the number of events kept in memory for the API.
	LogBuffer int `json:"log_buffer"`
	// KeepSnapshots bounds the committed snapshots kept in the database.
	KeepSnapshots int `json:"keep_snapshots"`
	MaxBackups    int `json:"max_backups"`

	SocketAddress    string `json:"socket_address"`
	TendermintHome   string `json:"tendermint_home"`
	TendermintRPC    string `json:"tendermint_rpc"`
	TendermintBinary string `json:"tendermint_binary"`
	ManageTendermint bool   `json:"manage_tendermint"`
	// Discovery announces the node over mDNS and seeds a managed
	// Tendermint with the nodes found on the LAN.
	Discovery bool `json:"discovery"`
	P2PPort   int  `json:"p2p_port"`

	Genesis state.Genesis `json:"genesis"`
}

var cfg *Config

// Defaults returns the built-in configuration. The genesis has no
// authorities; a node started on it uses its own key as the authority.
func Defaults() *Config {
	return &Config{
		KeyFile:          "lkn_key.pem",
		DataFile:         "lkn.db",
		Port:             8080,
		DocsDir:          "docs",
		LogFile:          "lkn.log",
		LogBuffer:        200,
		KeepSnapshots:    100,
		MaxBackups:       20,
		SocketAddress:    "unix://lkn.sock",
		TendermintRPC:    "http://localhost:26657",
		TendermintBinary: "tendermint",
		P2PPort:          26656,
		Genesis: state.Genesis{
			ConversionRate: 100,
			CrowdsaleRate:  1000,
			MinimumQuorum:  1,
			DebatingPeriod: 0,
			Utility:        state.AssetMeta{Name: "Like1", Symbol: "LK1"},
			Settlement:     state.AssetMeta{Name: "Buck1", Symbol: "BK1"},
		},
	}
}

// LoadConfig reads a JSON file at path. If the file does not exist or
// cannot be parsed, LoadConfig returns defaults (and no error) so that the
// application can run in development with minimal friction.
func LoadConfig(path string) (*Config, error) {
	def := Defaults()

	if path == "" {
		cfg = def
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		// file missing or unreadable -> use defaults
		cfg = def
		return cfg, nil
	}

	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		// parse error -> use defaults
		cfg = def
		return cfg, nil
	}

	c.merge(def)
	cfg = &c
	return cfg, nil
}

// merge fills zero-value fields from def.
func (c *Config) merge(def *Config) {
	if c.KeyFile == "" {
		c.KeyFile = def.KeyFile
	}
	if c.DataFile == "" {
		c.DataFile = def.DataFile
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.DocsDir == "" {
		c.DocsDir = def.DocsDir
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.LogBuffer == 0 {
		c.LogBuffer = def.LogBuffer
	}
	if c.KeepSnapshots == 0 {
		c.KeepSnapshots = def.KeepSnapshots
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = def.MaxBackups
	}
	if c.SocketAddress == "" {
		c.SocketAddress = def.SocketAddress
	}
	if c.TendermintRPC == "" {
		c.TendermintRPC = def.TendermintRPC
	}
	if c.TendermintBinary == "" {
		c.TendermintBinary = def.TendermintBinary
	}
	if c.P2PPort == 0 {
		c.P2PPort = def.P2PPort
	}

	g, dg := &c.Genesis, def.Genesis
	if g.ConversionRate == 0 {
		g.ConversionRate = dg.ConversionRate
	}
	if g.CrowdsaleRate == 0 {
		g.CrowdsaleRate = dg.CrowdsaleRate
	}
	if g.MinimumQuorum == 0 {
		g.MinimumQuorum = dg.MinimumQuorum
	}
	if g.Utility.Name == "" {
		g.Utility = dg.Utility
	}
	if g.Settlement.Name == "" {
		g.Settlement = dg.Settlement
	}
}

// GenesisFor returns the configured genesis, falling back to fallback as
// the single authority when none is configured.
func (c *Config) GenesisFor(fallback types.Address) state.Genesis {
	g := c.Genesis
	if len(g.Authorities) == 0 && fallback != "" {
		g.Authorities = []types.Address{fallback}
	}
	return g
}

// Get returns the loaded configuration. If LoadConfig hasn't been called
// yet, it returns defaults.
func Get() *Config {
	if cfg == nil {
		LoadConfig("")
	}
	return cfg
}
