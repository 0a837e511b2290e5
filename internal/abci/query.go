package abci

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	abci "github.com/tendermint/tendermint/abci/types"

	"likoin.network/lkn/internal/state"
	"likoin.network/lkn/internal/types"
)

// Query paths served by the application.
const (
	PathBalance   = "ledger/balance"
	PathHolders   = "ledger/holders"
	PathSupply    = "ledger/supply"
	PathProposal  = "voting/proposal"
	PathResource  = "registry/resource"
	PathOwner     = "registry/owner"
	PathNonce     = "account/nonce"
	PathCrowdsale = "crowdsale/status"
)

var errUnknownPath = errors.New("unknown query path")

// QueryRequest is the JSON body of a query. Each path reads the fields it
// needs.
type QueryRequest struct {
	Address    types.Address   `json:"address,omitempty"`
	Asset      types.AssetKind `json:"asset,omitempty"`
	ProposalID uint64          `json:"proposal_id,omitempty"`
	ResourceID uint64          `json:"resource_id,omitempty"`
}

// Query answers read requests against the last applied state.
func (app *ABCIApplication) Query(req abci.RequestQuery) abci.ResponseQuery {
	var q QueryRequest
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &q); err != nil {
			return abci.ResponseQuery{Code: types.CodeTypeEncodingError, Log: "failed to decode query"}
		}
	}

	app.mu.RLock()
	defer app.mu.RUnlock()

	value, err := query(app.state, strings.Trim(req.Path, "/"), q)
	if err != nil {
		return abci.ResponseQuery{Code: codeFor(err), Log: err.Error(), Height: app.lastHeight}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return abci.ResponseQuery{Code: types.CodeTypeEncodingError, Log: err.Error()}
	}
	return abci.ResponseQuery{Code: types.CodeTypeOK, Key: req.Data, Value: b, Height: app.lastHeight}
}

func query(s *state.State, path string, q QueryRequest) (interface{}, error) {
	switch path {
	case PathBalance:
		return s.Balance(q.Address), nil
	case PathNonce:
		return map[string]uint64{"nonce": s.NextNonce(q.Address)}, nil
	case PathHolders:
		return s.HolderList(q.Asset)
	case PathSupply:
		if q.Asset == "" {
			return s.Assets()
		}
		return s.Ledger.Supply(q.Asset)
	case PathProposal:
		return s.ProposalDetail(q.ProposalID)
	case PathResource:
		return s.ResourceDetail(q.ResourceID)
	case PathOwner:
		return s.Ownership(q.ResourceID, q.Address)
	case PathCrowdsale:
		return s.Sale(), nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownPath, path)
}
