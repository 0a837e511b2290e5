// Package discovery finds other lkn nodes on the local network using mDNS
// (zeroconf). Each node announces the _lkn._tcp service with its address,
// API port and Tendermint P2P port; discovered nodes are kept in a PeerStore
// and can be used to seed Tendermint's persistent peers.
package discovery

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"
)

// ServiceName is the mDNS service type announced by lkn nodes.
const ServiceName = "_lkn._tcp"

// Announcement is what a node publishes about itself.
type Announcement struct {
	// Address is the node's lkn address (hex public key).
	Address string
	// APIPort is the port of the HTTP API; it is the announced service port.
	APIPort int
	// P2PPort is Tendermint's P2P port.
	P2PPort int
	// NodeID is the Tendermint node id, when known.
	NodeID string
}

func (a Announcement) txt() []string {
	txt := []string{"addr=" + a.Address, "p2p=" + strconv.Itoa(a.P2PPort)}
	if a.NodeID != "" {
		txt = append(txt, "nodeid="+a.NodeID)
	}
	return txt
}

// DiscoveryService handles the mDNS registration and browsing.
type DiscoveryService struct {
	serviceName string
	resolver    *zeroconf.Resolver
	server      *zeroconf.Server
	peerStore   *PeerStore
	self        string
	cancel      context.CancelFunc
}

// NewDiscoveryService creates a new mDNS discovery service.
func NewDiscoveryService() (*DiscoveryService, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	return &DiscoveryService{
		serviceName: ServiceName,
		resolver:    resolver,
		peerStore:   NewPeerStore(),
	}, nil
}

// Start announces the local node and begins browsing for others.
func (s *DiscoveryService) Start(ctx context.Context, a Announcement) error {
	hostname, _ := os.Hostname()

	server, err := zeroconf.Register(hostname, s.serviceName, "local.", a.APIPort, a.txt(), nil)
	if err != nil {
		return err
	}
	s.server = server
	s.self = a.Address
	log.Printf("INFO: mDNS: Announced %s on the network from host %s", s.serviceName, hostname)

	ctx, s.cancel = context.WithCancel(ctx)
	go s.browseForPeers(ctx)

	return nil
}

func (s *DiscoveryService) browseForPeers(ctx context.Context) {
	entries := make(chan *zeroconf.ServiceEntry)
	go func(results <-chan *zeroconf.ServiceEntry) {
		for entry := range results {
			if entry.TTL == 0 {
				log.Printf("INFO: mDNS: Peer removed: %s", entry.Instance)
				s.peerStore.Remove(entry.Instance)
				continue
			}
			peer := s.peerStore.AddFromServiceEntry(entry)
			if peer == nil || peer.Address == s.self {
				s.peerStore.Remove(entry.Instance)
				continue
			}
			log.Printf("INFO: mDNS: Peer discovered: %s (%s)", entry.Instance, peer.Address)
		}
	}(entries)

	log.Println("INFO: mDNS: Browsing for other nodes...")
	if err := s.resolver.Browse(ctx, s.serviceName, "local.", entries); err != nil {
		log.Printf("ERROR: Failed to browse for mDNS services: %v", err)
	}
	<-ctx.Done()
	log.Println("INFO: mDNS: Peer browsing stopped.")
}

// Peers returns a snapshot of discovered nodes.
func (s *DiscoveryService) Peers() []Peer {
	return s.peerStore.List()
}

// PersistentPeers returns Tendermint peer addresses of the discovered
// nodes that announced a node id.
func (s *DiscoveryService) PersistentPeers() []string {
	return s.peerStore.TendermintAddresses()
}

// Stop gracefully shuts down the mDNS service.
func (s *DiscoveryService) Stop() {
	log.Println("INFO: mDNS: Stopping service discovery...")
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
}
