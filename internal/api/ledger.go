package api

import (
	"net/http"

	"likoin.network/lkn/internal/state"
	"likoin.network/lkn/internal/types"
)

// @Title: List Assets
// @Route: GET /api/assets
// @Description: Metadata, supply and minters of the utility and settlement assets
// @Response: Array of AssetView objects
func (s *Service) HandleAssets(w http.ResponseWriter, r *http.Request) {
	var assets []state.AssetView
	err := s.chain.View(func(st *state.State) error {
		var err error
		assets, err = st.Assets()
		return err
	})
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assets)
}

// @Title: Get Balance
// @Route: GET /api/balance?address=...
// @Description: Utility and settlement balances plus the next nonce of an address
// @Response: {"address": "...", "utility": 0, "settlement": 0, "nonce": 0}
func (s *Service) HandleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var view state.BalanceView
	s.chain.View(func(st *state.State) error {
		view = st.Balance(addr)
		return nil
	})
	s.writeJSON(w, http.StatusOK, view)
}

// @Title: List Holders
// @Route: GET /api/holders?asset=utility|settlement
// @Description: Addresses with a nonzero balance, in holder index order (index 1 first)
// @Response: {"asset": "utility", "count": 2, "holders": ["..."]}
func (s *Service) HandleHolders(w http.ResponseWriter, r *http.Request) {
	kind := types.AssetKind(r.URL.Query().Get("asset"))
	if kind == "" {
		kind = types.Utility
	}
	var view state.HoldersView
	err := s.chain.View(func(st *state.State) error {
		var err error
		view, err = st.HolderList(kind)
		return err
	})
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// @Title: Get Nonce
// @Route: GET /api/accounts/nonce?address=...
// @Description: The nonce the next transaction of an address must carry
// @Response: {"address": "...", "nonce": 3}
func (s *Service) HandleNonce(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var nonce uint64
	s.chain.View(func(st *state.State) error {
		nonce = st.NextNonce(addr)
		return nil
	})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"address": addr, "nonce": nonce})
}

// @Title: Get Crowdsale
// @Route: GET /api/crowdsale
// @Description: Crowdsale rate, totals and granted cashiers
// @Response: {"rate": 1000, "raised": 0, "purchases": 0, "cashiers": []}
func (s *Service) HandleCrowdsale(w http.ResponseWriter, r *http.Request) {
	var view state.CrowdsaleView
	s.chain.View(func(st *state.State) error {
		view = st.Sale()
		return nil
	})
	s.writeJSON(w, http.StatusOK, view)
}
