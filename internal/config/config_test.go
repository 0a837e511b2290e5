package config

import (
	"os"
	"path/filepath"
	"testing"

	"likoin.network/lkn/internal/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Port != 8080 || c.Genesis.ConversionRate != 100 || c.Genesis.CrowdsaleRate != 1000 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if Get() != c {
		t.Fatalf("Get should return the loaded config")
	}

	missing, _ := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if missing.KeyFile != "lkn_key.pem" {
		t.Fatalf("expected defaults for a missing file, got %+v", missing)
	}
}

func TestLoadConfigMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"port": 9000, "genesis": {"authorities": ["abc"], "minimum_quorum": 3, "utility": {"name": "Like2", "symbol": "LK2"}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Port != 9000 || c.DataFile != "lkn.db" || c.P2PPort != 26656 || c.Discovery {
		t.Fatalf("unexpected merge: %+v", c)
	}
	g := c.Genesis
	if g.MinimumQuorum != 3 || g.ConversionRate != 100 || g.Utility.Symbol != "LK2" || g.Settlement.Symbol != "BK1" {
		t.Fatalf("unexpected genesis: %+v", g)
	}
	if got := c.GenesisFor("self").Authorities; len(got) != 1 || got[0] != "abc" {
		t.Fatalf("configured authorities should win, got %v", got)
	}
}

func TestGenesisForFallsBackToNodeKey(t *testing.T) {
	g := Defaults().GenesisFor(types.Address("self"))
	if len(g.Authorities) != 1 || g.Authorities[0] != "self" {
		t.Fatalf("expected fallback authority, got %v", g.Authorities)
	}
}

func TestLoadConfigBadJSONUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Port != 8080 {
		t.Fatalf("expected default port, got %d", c.Port)
	}
}
