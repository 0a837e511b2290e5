package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"likoin.network/lkn/internal/crowdsale"
	"likoin.network/lkn/internal/ledger"
	"likoin.network/lkn/internal/registry"
	"likoin.network/lkn/internal/types"
	"likoin.network/lkn/internal/voting"
)

// Snapshot is the serializable form of the whole state.
type Snapshot struct {
	Height    int64                    `json:"height"`
	Nonces    map[types.Address]uint64 `json:"nonces"`
	Ledger    ledger.Snapshot          `json:"ledger"`
	Voting    voting.Snapshot          `json:"voting"`
	Registry  registry.Snapshot        `json:"registry"`
	Crowdsale crowdsale.Snapshot       `json:"crowdsale"`
}

// Snapshot captures the state.
func (s *State) Snapshot() Snapshot {
	nonces := make(map[types.Address]uint64, len(s.nonces))
	for who, n := range s.nonces {
		nonces[who] = n
	}
	return Snapshot{
		Height:    s.height,
		Nonces:    nonces,
		Ledger:    s.Ledger.Snapshot(),
		Voting:    s.Voting.Snapshot(),
		Registry:  s.Registry.Snapshot(),
		Crowdsale: s.Crowdsale.Snapshot(),
	}
}

// Marshal encodes the state. The encoding is deterministic, so equal
// states produce equal bytes on every node.
func (s *State) Marshal() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// AppHash is the sha256 of the encoded state.
func (s *State) AppHash() ([]byte, error) {
	b, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}

// Unmarshal rebuilds a State from bytes produced by Marshal.
func Unmarshal(data []byte) (*State, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return Restore(snap)
}

// Restore rebuilds a State from a snapshot. Components are restored bottom
// up so the registry resubscribes to the restored engine.
func Restore(snap Snapshot) (*State, error) {
	l, err := ledger.Restore(snap.Ledger)
	if err != nil {
		return nil, fmt.Errorf("restore ledger: %w", err)
	}
	s := &State{Ledger: l, height: snap.Height, nonces: make(map[types.Address]uint64, len(snap.Nonces))}
	for who, n := range snap.Nonces {
		s.nonces[who] = n
	}
	if s.Voting, err = voting.Restore(l, s.Height, snap.Voting); err != nil {
		return nil, fmt.Errorf("restore voting: %w", err)
	}
	if s.Registry, err = registry.Restore(s.Voting, l, snap.Registry); err != nil {
		return nil, fmt.Errorf("restore registry: %w", err)
	}
	if s.Crowdsale, err = crowdsale.Restore(l, snap.Crowdsale); err != nil {
		return nil, fmt.Errorf("restore crowdsale: %w", err)
	}
	return s, nil
}
