package registry

import (
	"sort"

	"github.com/pkg/errors"

	"likoin.network/lkn/internal/ledger"
	"likoin.network/lkn/internal/types"
	"likoin.network/lkn/internal/voting"
)

// Snapshot is the serializable form of a Registry.
type Snapshot struct {
	Address     types.Address      `json:"address"`
	Treasury    types.Address      `json:"treasury"`
	Authorities []types.Address    `json:"authorities"`
	Resources   []ResourceSnapshot `json:"resources"`
}

// ResourceSnapshot flattens the owner set of a Resource.
type ResourceSnapshot struct {
	ID          uint64          `json:"id"`
	Description string          `json:"description"`
	ProposalID  uint64          `json:"proposal_id"`
	Approved    bool            `json:"approved"`
	Price       uint64          `json:"price"`
	Owners      []types.Address `json:"owners"`
}

// Snapshot captures every resource.
func (r *Registry) Snapshot() Snapshot {
	snap := Snapshot{
		Address:   r.address,
		Treasury:  r.treasury,
		Resources: make([]ResourceSnapshot, 0, len(r.resources)),
	}
	for a := range r.authorities {
		snap.Authorities = append(snap.Authorities, a)
	}
	sort.Slice(snap.Authorities, func(i, j int) bool { return snap.Authorities[i] < snap.Authorities[j] })

	for _, id := range r.IDs() {
		res := r.resources[id]
		snap.Resources = append(snap.Resources, ResourceSnapshot{
			ID:          res.ID,
			Description: res.Description,
			ProposalID:  res.ProposalID,
			Approved:    res.Approved,
			Price:       res.Price,
			Owners:      res.OwnerList(),
		})
	}
	return snap
}

// Restore rebuilds a Registry bound to an already restored engine and
// ledger. Every resource must point at the proposal the engine holds for it.
func Restore(engine *voting.Engine, l *ledger.Ledger, snap Snapshot) (*Registry, error) {
	r := New(engine, l, Config{
		Address:     snap.Address,
		Authorities: snap.Authorities,
		Treasury:    snap.Treasury,
	})
	for _, rs := range snap.Resources {
		pid, err := engine.ProposalIDByResource(rs.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "restore resource %d", rs.ID)
		}
		if pid != rs.ProposalID {
			return nil, errors.Errorf("resource %d points at proposal %d, engine has %d", rs.ID, rs.ProposalID, pid)
		}
		res := &Resource{
			ID:          rs.ID,
			Description: rs.Description,
			ProposalID:  rs.ProposalID,
			Approved:    rs.Approved,
			Price:       rs.Price,
			Owners:      make(map[types.Address]struct{}, len(rs.Owners)),
		}
		for _, who := range rs.Owners {
			res.Owners[who] = struct{}{}
		}
		r.resources[rs.ID] = res
	}
	return r, nil
}
