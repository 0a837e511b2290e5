package state

import (
	"likoin.network/lkn/internal/types"
	"likoin.network/lkn/internal/voting"
)

// Read models shared by ABCI queries and the HTTP API.

type BalanceView struct {
	Address    types.Address `json:"address"`
	Utility    uint64        `json:"utility"`
	Settlement uint64        `json:"settlement"`
	Nonce      uint64        `json:"nonce"`
}

type HoldersView struct {
	Asset   types.AssetKind `json:"asset"`
	Count   int             `json:"count"`
	Holders []types.Address `json:"holders"`
}

type AssetView struct {
	types.AssetInfo
	Supply  types.Supply    `json:"supply"`
	Minters []types.Address `json:"minters"`
}

type ProposalView struct {
	voting.Proposal
	Tally voting.Tally `json:"tally"`
}

type ResourceView struct {
	ID          uint64          `json:"id"`
	Description string          `json:"description"`
	ProposalID  uint64          `json:"proposal_id"`
	Approved    bool            `json:"approved"`
	Price       uint64          `json:"price"`
	Owners      []types.Address `json:"owners"`
}

type OwnerView struct {
	ResourceID uint64        `json:"resource_id"`
	Address    types.Address `json:"address"`
	Owner      bool          `json:"owner"`
}

type CrowdsaleView struct {
	Rate      uint64          `json:"rate"`
	Raised    uint64          `json:"raised"`
	Purchases uint64          `json:"purchases"`
	Cashiers  []types.Address `json:"cashiers"`
}

func (s *State) Balance(who types.Address) BalanceView {
	return BalanceView{
		Address:    who,
		Utility:    s.Ledger.BalanceOf(types.Utility, who),
		Settlement: s.Ledger.BalanceOf(types.Settlement, who),
		Nonce:      s.NextNonce(who),
	}
}

func (s *State) HolderList(kind types.AssetKind) (HoldersView, error) {
	if !kind.Valid() {
		return HoldersView{}, types.ErrUnknownAsset
	}
	return HoldersView{Asset: kind, Count: s.Ledger.HolderCount(kind), Holders: s.Ledger.Holders(kind)}, nil
}

func (s *State) Assets() ([]AssetView, error) {
	out := make([]AssetView, 0, len(types.AssetKinds))
	for _, kind := range types.AssetKinds {
		info, err := s.Ledger.Info(kind)
		if err != nil {
			return nil, err
		}
		sup, err := s.Ledger.Supply(kind)
		if err != nil {
			return nil, err
		}
		out = append(out, AssetView{AssetInfo: info, Supply: sup, Minters: s.Ledger.Minters(kind)})
	}
	return out, nil
}

func (s *State) ProposalDetail(id uint64) (ProposalView, error) {
	p, err := s.Voting.Proposal(id)
	if err != nil {
		return ProposalView{}, err
	}
	t, err := s.Voting.Tally(id)
	if err != nil {
		return ProposalView{}, err
	}
	return ProposalView{Proposal: p, Tally: t}, nil
}

func (s *State) ResourceDetail(id uint64) (ResourceView, error) {
	r, err := s.Registry.Resource(id)
	if err != nil {
		return ResourceView{}, err
	}
	return ResourceView{
		ID:          r.ID,
		Description: r.Description,
		ProposalID:  r.ProposalID,
		Approved:    r.Approved,
		Price:       r.Price,
		Owners:      r.OwnerList(),
	}, nil
}

func (s *State) Ownership(id uint64, who types.Address) (OwnerView, error) {
	if _, err := s.Registry.Resource(id); err != nil {
		return OwnerView{}, err
	}
	return OwnerView{ResourceID: id, Address: who, Owner: s.Registry.IsOwner(who, id)}, nil
}

func (s *State) Sale() CrowdsaleView {
	return CrowdsaleView{
		Rate:      s.Crowdsale.Rate(),
		Raised:    s.Crowdsale.Raised(),
		Purchases: s.Crowdsale.Purchases(),
		Cashiers:  s.Crowdsale.Cashiers(),
	}
}
