package voting

import (
	"github.com/pkg/errors"

	"likoin.network/lkn/internal/ledger"
	"likoin.network/lkn/internal/types"
)

// Snapshot is the serializable form of an Engine.
type Snapshot struct {
	WeightAsset    types.AssetKind `json:"weight_asset"`
	MinimumQuorum  int             `json:"minimum_quorum"`
	DebatingPeriod int64           `json:"debating_period"`
	Authorities    []types.Address `json:"authorities"`
	Registrars     []types.Address `json:"registrars"`
	Executors      []types.Address `json:"executors"`
	Proposals      []Proposal      `json:"proposals"`
}

// Snapshot captures every proposal and role.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		WeightAsset:    e.weightAsset,
		MinimumQuorum:  e.quorum,
		DebatingPeriod: e.period,
		Authorities:    sorted(e.authorities),
		Registrars:     sorted(e.registrars),
		Executors:      sorted(e.executors),
		Proposals:      make([]Proposal, 0, len(e.proposals)),
	}
	for _, p := range e.proposals {
		snap.Proposals = append(snap.Proposals, p.clone())
	}
	return snap
}

// Restore rebuilds an Engine. Observers are not part of the snapshot and
// must be subscribed again.
func Restore(balances ledger.BalanceReader, height func() int64, snap Snapshot) (*Engine, error) {
	e := New(balances, height, Config{
		Authorities:    snap.Authorities,
		Registrars:     snap.Registrars,
		Executors:      snap.Executors,
		WeightAsset:    snap.WeightAsset,
		MinimumQuorum:  snap.MinimumQuorum,
		DebatingPeriod: snap.DebatingPeriod,
	})
	for i, p := range snap.Proposals {
		if p.ID != uint64(i) {
			return nil, errors.Errorf("proposal at position %d has id %d", i, p.ID)
		}
		if len(p.Suggestions) == 0 {
			return nil, errors.Errorf("proposal %d has no suggestions", p.ID)
		}
		if _, dup := e.byResource[p.ResourceID]; dup {
			return nil, errors.Wrapf(types.ErrDuplicateResource, "restore resource %d", p.ResourceID)
		}
		for voter, idx := range p.Votes {
			if idx < 0 || idx >= len(p.Suggestions) {
				return nil, errors.Wrapf(types.ErrInvalidSuggestionIndex, "restore vote of %s on proposal %d", voter, p.ID)
			}
		}
		if p.Executed {
			if p.Winner < 0 || p.Winner >= len(p.Suggestions) {
				return nil, errors.Wrapf(types.ErrInvalidSuggestionIndex, "restore winner %d of proposal %d", p.Winner, p.ID)
			}
			if p.FinalPrice != p.Suggestions[p.Winner] {
				return nil, errors.Errorf("proposal %d final price %d is not suggestion %d", p.ID, p.FinalPrice, p.Winner)
			}
		}
		cp := p.clone()
		e.proposals = append(e.proposals, &cp)
		e.byResource[p.ResourceID] = p.ID
	}
	return e, nil
}
