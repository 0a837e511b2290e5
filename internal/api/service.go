// Package api serves the HTTP interface of an lkn node: read access to the
// committed state, the transaction history kept in the store, the event log
// and a relay that forwards signed transactions to Tendermint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"likoin.network/lkn/internal/discovery"
	"likoin.network/lkn/internal/docs"
	"likoin.network/lkn/internal/logger"
	"likoin.network/lkn/internal/state"
	"likoin.network/lkn/internal/store"
	"likoin.network/lkn/internal/tendermint"
	"likoin.network/lkn/internal/types"
)

// Chain gives read access to the application state.
type Chain interface {
	View(fn func(s *state.State) error) error
	LastCommit() (int64, []byte)
}

// Broadcaster relays signed transactions to consensus.
type Broadcaster interface {
	BroadcastSigned(ctx context.Context, signedTx *types.SignedTransaction, commit bool) (*tendermint.BroadcastResult, error)
}

// PeerLister reports nodes found on the local network.
type PeerLister interface {
	Peers() []discovery.Peer
}

// Options tune a Service.
type Options struct {
	// NodeID is reported by /api/version, usually the node's public key.
	NodeID string
	// MaxBackups bounds the number of backups kept by /api/backup.
	MaxBackups int
	// Peers serves /api/peers; nil when discovery is off.
	Peers PeerLister
}

// Service handles API requests
type Service struct {
	chain  Chain
	store  *store.Store
	relay  Broadcaster
	docs   *docs.Service
	logger *logger.Logger
	opts   Options
}

// NewService creates a new API service. relay and docs may be nil, in
// which case the routes that need them answer 503.
func NewService(chain Chain, st *store.Store, relay Broadcaster, docSvc *docs.Service, lg *logger.Logger, opts Options) *Service {
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	return &Service{
		chain:  chain,
		store:  st,
		relay:  relay,
		docs:   docSvc,
		logger: lg,
		opts:   opts,
	}
}

// Register adds every API route to mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.HandleHealth)
	mux.HandleFunc("/api/version", s.HandleVersion)
	mux.HandleFunc("/api/assets", s.HandleAssets)
	mux.HandleFunc("/api/balance", s.HandleBalance)
	mux.HandleFunc("/api/holders", s.HandleHolders)
	mux.HandleFunc("/api/proposals/get", s.HandleProposal)
	mux.HandleFunc("/api/proposals/by-resource", s.HandleProposalByResource)
	mux.HandleFunc("/api/resources/get", s.HandleResource)
	mux.HandleFunc("/api/resources/owner", s.HandleResourceOwner)
	mux.HandleFunc("/api/accounts/nonce", s.HandleNonce)
	mux.HandleFunc("/api/crowdsale", s.HandleCrowdsale)
	mux.HandleFunc("/api/txs", s.HandleTxs)
	mux.HandleFunc("/api/txs/get", s.HandleTx)
	mux.HandleFunc("/api/tx", s.HandleSubmitTx)
	mux.HandleFunc("/api/events", s.HandleEvents)
	mux.HandleFunc("/api/events/stream", s.HandleEventStream)
	mux.HandleFunc("/api/peers", s.HandlePeers)
	mux.HandleFunc("/api/backup", s.HandleBackup)
	mux.HandleFunc("/api/docs", s.HandleDocs)
	mux.HandleFunc("/api/docs/view", s.HandleDocView)
}

// Handler returns a mux serving every API route.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeStateError maps a domain failure onto an HTTP status.
func (s *Service) writeStateError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, types.ErrProposalNotFound), errors.Is(err, types.ErrResourceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrUnauthorized):
		status = http.StatusForbidden
	}
	s.writeError(w, status, err.Error())
}

func (s *Service) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// uintParam reads a required unsigned query parameter.
func uintParam(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New(name + " is required")
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func addressParam(r *http.Request) (types.Address, error) {
	a := r.URL.Query().Get("address")
	if a == "" {
		return "", errors.New("address is required")
	}
	return types.Address(a), nil
}
