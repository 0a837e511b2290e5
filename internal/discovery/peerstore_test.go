package discovery

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/grandcat/zeroconf"
)

func entry(instance, ip string, port int, txt ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{}
	e.Instance = instance
	e.Port = port
	e.AddrIPv4 = []net.IP{net.ParseIP(ip)}
	e.Text = txt
	return e
}

func TestPeerStoreAddAndList(t *testing.T) {
	ps := NewPeerStore()

	ps.AddFromServiceEntry(entry("node-1", "192.0.2.10", 8080, "addr=deadbeef", "p2p=26656", "nodeid=abc123"))

	peers := ps.List()
	if len(peers) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(peers))
	}
	p := peers[0]
	if p.Instance != "node-1" || p.APIPort != 8080 || p.P2PPort != 26656 {
		t.Errorf("unexpected peer: %+v", p)
	}
	if p.Address != "deadbeef" {
		t.Errorf("address missing or wrong: %+v", p)
	}
	if got := p.TendermintAddress(); got != "abc123@192.0.2.10:26656" {
		t.Errorf("unexpected tendermint address %q", got)
	}
}

func TestPeerStoreIgnoresForeignServices(t *testing.T) {
	ps := NewPeerStore()
	if p := ps.AddFromServiceEntry(entry("printer", "192.0.2.20", 631, "ty=laser")); p != nil {
		t.Fatalf("expected entry without addr to be ignored, got %+v", p)
	}
	if len(ps.List()) != 0 {
		t.Fatal("store should be empty")
	}
}

func TestTendermintAddressesSkipsIncompletePeers(t *testing.T) {
	ps := NewPeerStore()
	ps.AddFromServiceEntry(entry("b", "192.0.2.2", 8080, "addr=bb", "p2p=26656", "nodeid=idb"))
	ps.AddFromServiceEntry(entry("a", "192.0.2.1", 8080, "addr=aa", "p2p=26656"))
	ps.AddFromServiceEntry(entry("c", "192.0.2.3", 8080, "addr=cc", "p2p=26656", "nodeid=idc"))

	got := strings.Join(ps.TendermintAddresses(), ",")
	if got != "idb@192.0.2.2:26656,idc@192.0.2.3:26656" {
		t.Errorf("unexpected persistent peers %q", got)
	}
}

func TestPeerStoreConcurrency(t *testing.T) {
	ps := NewPeerStore()
	var wg sync.WaitGroup
	add := func(id string, ip string, port int) {
		defer wg.Done()
		ps.AddFromServiceEntry(entry(id, ip, port, "addr=deadbeef"))
	}
	remove := func(id string) {
		defer wg.Done()
		ps.Remove(id)
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go add(fmt.Sprintf("node-%d", i), "192.0.2.1", 8000+i)
	}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go remove(fmt.Sprintf("node-%d", i))
	}
	wg.Wait()

	// removes may run before or after the matching adds
	peers := ps.List()
	if len(peers) < 25 || len(peers) > 50 {
		t.Fatalf("expected between 25 and 50 peers remaining, got %d", len(peers))
	}
}
