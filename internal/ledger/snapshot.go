package ledger

import (
	"github.com/pkg/errors"

	"likoin.network/lkn/internal/types"
)

// Snapshot is the serializable form of a Ledger. Encoding it with
// encoding/json is deterministic: sets are sorted and maps are emitted in
// key order.
type Snapshot struct {
	Address        types.Address   `json:"address"`
	ConversionRate uint64          `json:"conversion_rate"`
	Assets         []AssetSnapshot `json:"assets"`
}

// AssetSnapshot is one asset inside a Snapshot. Holders keeps index order
// so that HolderAt answers the same after a restore.
type AssetSnapshot struct {
	Info        types.AssetInfo          `json:"info"`
	Authorities []types.Address          `json:"authorities"`
	Minters     []types.Address          `json:"minters"`
	Balances    map[types.Address]uint64 `json:"balances"`
	Holders     []types.Address          `json:"holders"`
	Minted      uint64                   `json:"minted"`
	Burned      uint64                   `json:"burned"`
}

// Snapshot captures the full ledger state.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{Address: l.address, ConversionRate: l.rate}
	for _, kind := range types.AssetKinds {
		a := l.assets[kind]
		balances := make(map[types.Address]uint64, len(a.balances))
		for who, bal := range a.balances {
			balances[who] = bal
		}
		snap.Assets = append(snap.Assets, AssetSnapshot{
			Info:        a.info,
			Authorities: sortedSet(a.authorities),
			Minters:     sortedSet(a.minters),
			Balances:    balances,
			Holders:     a.holders.list(),
			Minted:      a.minted,
			Burned:      a.burned,
		})
	}
	return snap
}

// Restore rebuilds a Ledger from a snapshot and verifies its invariants.
func Restore(snap Snapshot) (*Ledger, error) {
	if snap.ConversionRate == 0 {
		return nil, errors.Wrap(types.ErrInvalidAmount, "snapshot conversion rate must be positive")
	}
	l := &Ledger{
		address: snap.Address,
		rate:    snap.ConversionRate,
		assets:  make(map[types.AssetKind]*asset),
	}
	for _, as := range snap.Assets {
		kind := as.Info.Kind
		if !kind.Valid() {
			return nil, errors.Wrapf(types.ErrUnknownAsset, "snapshot asset %q", kind)
		}
		a := newAsset(kind, AssetConfig{Name: as.Info.Name, Symbol: as.Info.Symbol})
		for _, who := range as.Authorities {
			a.authorities[who] = struct{}{}
		}
		for _, who := range as.Minters {
			a.minters[who] = struct{}{}
		}
		for who, bal := range as.Balances {
			if bal > 0 {
				a.balances[who] = bal
			}
		}
		for _, who := range as.Holders {
			a.holders.add(who)
		}
		a.minted = as.Minted
		a.burned = as.Burned
		l.assets[kind] = a
	}
	for _, kind := range types.AssetKinds {
		if _, ok := l.assets[kind]; !ok {
			return nil, errors.Errorf("snapshot is missing asset %s", kind)
		}
	}
	if err := l.CheckInvariants(); err != nil {
		return nil, errors.Wrap(err, "restore ledger")
	}
	return l, nil
}
