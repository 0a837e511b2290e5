package api

import (
	"net/http"

	"likoin.network/lkn/internal/state"
)

// @Title: Get Proposal
// @Route: GET /api/proposals/get?id=...
// @Description: A pricing proposal with its suggestions, voters and the current live-weight tally
// @Response: ProposalView object
func (s *Service) HandleProposal(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeProposal(w, func(st *state.State) (uint64, error) { return id, nil })
}

// @Title: Get Proposal By Resource
// @Route: GET /api/proposals/by-resource?resource_id=...
// @Description: The pricing proposal opened for a resource
// @Response: ProposalView object
func (s *Service) HandleProposalByResource(w http.ResponseWriter, r *http.Request) {
	rid, err := uintParam(r, "resource_id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeProposal(w, func(st *state.State) (uint64, error) {
		return st.Voting.ProposalIDByResource(rid)
	})
}

func (s *Service) writeProposal(w http.ResponseWriter, resolve func(st *state.State) (uint64, error)) {
	var view state.ProposalView
	err := s.chain.View(func(st *state.State) error {
		id, err := resolve(st)
		if err != nil {
			return err
		}
		view, err = st.ProposalDetail(id)
		return err
	})
	if err != nil {
		s.writeStateError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}
