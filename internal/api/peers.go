package api

import (
	"net/http"

	"likoin.network/lkn/internal/discovery"
)

// @Title: List Peers
// @Route: GET /api/peers
// @Description: lkn nodes discovered on the local network over mDNS
// @Response: Array of Peer objects
func (s *Service) HandlePeers(w http.ResponseWriter, r *http.Request) {
	peers := []discovery.Peer{}
	if s.opts.Peers != nil {
		peers = append(peers, s.opts.Peers.Peers()...)
	}
	s.writeJSON(w, http.StatusOK, peers)
}
