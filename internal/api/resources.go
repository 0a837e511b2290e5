package api

import (
	"net/http"

	"likoin.network/lkn/internal/state"
)

// @Title: Get Resource
// @Route: GET /api/resources/get?id=...
// @Description: A registered resource with its approval flag, price and owners
// @Response: {"id": 1, "description": "...", "proposal_id": 0, "approved": true, "price": 7000, "owners": ["..."]}
func (s *Service) HandleResource(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var view state.ResourceView
	err = s.chain.View(func(st *state.State) error {
		var err error
		view, err = st.ResourceDetail(id)
		return err
	})
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// @Title: Check Ownership
// @Route: GET /api/resources/owner?id=...&address=...
// @Description: Whether an address has purchased a resource
// @Response: {"resource_id": 1, "address": "...", "owner": true}
func (s *Service) HandleResourceOwner(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := addressParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var view state.OwnerView
	err = s.chain.View(func(st *state.State) error {
		var err error
		view, err = st.Ownership(id, addr)
		return err
	})
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}
