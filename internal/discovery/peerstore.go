package discovery

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// Peer is one discovered lkn node.
type Peer struct {
	Instance string   `json:"instance"`
	Hostname string   `json:"hostname"`
	Address  string   `json:"address"`
	APIPort  int      `json:"api_port"`
	P2PPort  int      `json:"p2p_port"`
	NodeID   string   `json:"node_id,omitempty"`
	Addrs    []net.IP `json:"addrs"`
}

// TendermintAddress returns "id@ip:port", or "" when the peer did not
// announce a node id or has no IPv4 address yet.
func (p Peer) TendermintAddress() string {
	if p.NodeID == "" || len(p.Addrs) == 0 || p.P2PPort == 0 {
		return ""
	}
	return p.NodeID + "@" + net.JoinHostPort(p.Addrs[0].String(), strconv.Itoa(p.P2PPort))
}

// PeerStore is a thread-safe store of discovered peers.
type PeerStore struct {
	mtx   sync.RWMutex
	peers map[string]Peer // keyed by instance
}

// NewPeerStore creates an empty PeerStore.
func NewPeerStore() *PeerStore {
	return &PeerStore{peers: make(map[string]Peer)}
}

// AddFromServiceEntry adds or updates a peer from a zeroconf entry. Entries
// without an lkn address are ignored and nil is returned.
func (ps *PeerStore) AddFromServiceEntry(e *zeroconf.ServiceEntry) *Peer {
	if e == nil {
		return nil
	}
	txt := make(map[string]string)
	for _, t := range e.Text {
		if k, v, ok := strings.Cut(t, "="); ok {
			txt[k] = v
		}
	}
	if txt["addr"] == "" {
		return nil
	}
	p2p, _ := strconv.Atoi(txt["p2p"])

	peer := Peer{
		Instance: e.Instance,
		Hostname: e.HostName,
		Address:  txt["addr"],
		APIPort:  e.Port,
		P2PPort:  p2p,
		NodeID:   txt["nodeid"],
		Addrs:    append([]net.IP(nil), e.AddrIPv4...),
	}

	ps.mtx.Lock()
	ps.peers[e.Instance] = peer
	ps.mtx.Unlock()
	return &peer
}

// Remove removes a peer by instance name.
func (ps *PeerStore) Remove(instance string) {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	delete(ps.peers, instance)
}

// List returns the known peers ordered by instance name.
func (ps *PeerStore) List() []Peer {
	ps.mtx.RLock()
	out := make([]Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		out = append(out, p)
	}
	ps.mtx.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

// TendermintAddresses lists the "id@ip:port" of every peer that has one.
func (ps *PeerStore) TendermintAddresses() []string {
	var out []string
	for _, p := range ps.List() {
		if a := p.TendermintAddress(); a != "" {
			out = append(out, a)
		}
	}
	return out
}
