// Package state composes the ledger, the voting engine, the resource
// registry and the crowdsale into the replicated application state. It
// owns what only the host knows about: per-signer nonces and the current
// block height. Every transaction is applied through Apply, which either
// succeeds completely or changes nothing but the signer's nonce.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"likoin.network/lkn/internal/crowdsale"
	"likoin.network/lkn/internal/ledger"
	"likoin.network/lkn/internal/registry"
	"likoin.network/lkn/internal/types"
	"likoin.network/lkn/internal/voting"
)

// AssetMeta names an asset at genesis.
type AssetMeta struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Genesis is the initial configuration of the network.
type Genesis struct {
	// Authorities own both assets, the voting roles and resource
	// registration. At least one is required.
	Authorities    []types.Address `json:"authorities"`
	Treasury       types.Address   `json:"treasury"`
	ConversionRate uint64          `json:"conversion_rate"`
	CrowdsaleRate  uint64          `json:"crowdsale_rate"`
	MinimumQuorum  int             `json:"minimum_quorum"`
	DebatingPeriod int64           `json:"debating_period"`
	Utility        AssetMeta       `json:"utility"`
	Settlement     AssetMeta       `json:"settlement"`
}

// State is the full application state.
type State struct {
	Ledger    *ledger.Ledger
	Voting    *voting.Engine
	Registry  *registry.Registry
	Crowdsale *crowdsale.Crowdsale

	height int64
	nonces map[types.Address]uint64
}

// New builds the genesis state. The first authority wires the module
// accounts: the ledger may mint settlement units for conversion and the
// crowdsale may mint utility units.
func New(g Genesis) (*State, error) {
	if len(g.Authorities) == 0 {
		return nil, errors.New("genesis needs at least one authority")
	}
	if g.Treasury == "" {
		g.Treasury = g.Authorities[0]
	}

	l, err := ledger.New(ledger.Config{
		Address:        types.LedgerModule,
		ConversionRate: g.ConversionRate,
		Utility:        ledger.AssetConfig{Name: g.Utility.Name, Symbol: g.Utility.Symbol, Authorities: g.Authorities},
		Settlement:     ledger.AssetConfig{Name: g.Settlement.Name, Symbol: g.Settlement.Symbol, Authorities: g.Authorities},
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	root := g.Authorities[0]
	if err := l.AddMinter(root, types.Settlement, types.LedgerModule); err != nil {
		return nil, fmt.Errorf("grant conversion minter: %w", err)
	}
	if err := l.AddMinter(root, types.Utility, types.CrowdsaleModule); err != nil {
		return nil, fmt.Errorf("grant crowdsale minter: %w", err)
	}

	s := &State{Ledger: l, nonces: make(map[types.Address]uint64)}
	s.Voting = voting.New(l, s.Height, voting.Config{
		Authorities:    g.Authorities,
		Registrars:     []types.Address{types.RegistryModule},
		MinimumQuorum:  g.MinimumQuorum,
		DebatingPeriod: g.DebatingPeriod,
	})
	s.Registry = registry.New(s.Voting, l, registry.Config{
		Address:     types.RegistryModule,
		Authorities: g.Authorities,
		Treasury:    g.Treasury,
	})
	s.Crowdsale, err = crowdsale.New(l, crowdsale.Config{
		Address:     types.CrowdsaleModule,
		Rate:        g.CrowdsaleRate,
		Authorities: g.Authorities,
	})
	if err != nil {
		return nil, fmt.Errorf("create crowdsale: %w", err)
	}
	return s, nil
}

// Height returns the height of the block being applied.
func (s *State) Height() int64 { return s.height }

// SetHeight is called at the start of every block.
func (s *State) SetHeight(h int64) { s.height = h }

// NextNonce returns the nonce the next transaction of who must carry.
func (s *State) NextNonce(who types.Address) uint64 { return s.nonces[who] }

// CheckNonce fails with ErrBadNonce unless n is the next nonce of who.
func (s *State) CheckNonce(who types.Address, n uint64) error {
	if want := s.nonces[who]; n != want {
		return fmt.Errorf("%w: got %d, want %d", types.ErrBadNonce, n, want)
	}
	return nil
}

// Receipt describes an applied transaction.
type Receipt struct {
	Type   types.TransactionType `json:"type"`
	Signer types.Address         `json:"signer"`
	// Value is the operation's numeric result: a minted amount, a
	// proposal id, a suggestion index or a final price.
	Value   uint64 `json:"value"`
	Message string `json:"message"`
}

// Data encodes the receipt for the transaction result.
func (r Receipt) Data() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Apply runs tx as signer. Once the nonce matches and the payload
// decodes, the nonce is spent whether or not the operation succeeds, so a
// rejected transaction cannot be replayed later.
func (s *State) Apply(signer types.Address, tx *types.Transaction) (Receipt, error) {
	if err := s.CheckNonce(signer, tx.Nonce); err != nil {
		return Receipt{}, err
	}
	r, err := s.dispatch(signer, tx)
	if err != nil {
		if !errors.Is(err, ErrBadPayload) && !errors.Is(err, ErrUnknownTxType) {
			s.nonces[signer]++
		}
		return Receipt{}, err
	}
	r.Type = tx.Type
	r.Signer = signer
	s.nonces[signer]++
	return r, nil
}

func (s *State) dispatch(signer types.Address, tx *types.Transaction) (Receipt, error) {
	switch tx.Type {
	case types.TxAddMinter:
		var p types.AddMinterPayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Ledger.AddMinter(signer, p.Asset, p.Minter); err != nil {
			return Receipt{}, err
		}
		return Receipt{Message: fmt.Sprintf("%s may mint %s", p.Minter, p.Asset)}, nil

	case types.TxMint:
		var p types.MintPayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Ledger.Mint(signer, p.Asset, p.To, p.Amount); err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: p.Amount, Message: fmt.Sprintf("minted %d %s to %s", p.Amount, p.Asset, p.To)}, nil

	case types.TxTransfer:
		var p types.TransferPayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Ledger.Transfer(signer, p.Asset, signer, p.To, p.Amount); err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: p.Amount, Message: fmt.Sprintf("transferred %d %s to %s", p.Amount, p.Asset, p.To)}, nil

	case types.TxConvert:
		var p types.ConvertPayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		out, err := s.Ledger.Convert(signer, p.Amount)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: out, Message: fmt.Sprintf("converted %d utility into %d settlement", p.Amount, out)}, nil

	case types.TxBuy:
		var p types.BuyPayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		minted, err := s.Crowdsale.Buy(signer, p.Beneficiary, p.Payment)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: minted, Message: fmt.Sprintf("sold %d utility to %s", minted, p.Beneficiary)}, nil

	case types.TxAddCashier:
		var p types.RolePayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Crowdsale.AddCashier(signer, p.Address); err != nil {
			return Receipt{}, err
		}
		return Receipt{Message: fmt.Sprintf("%s may record crowdsale payments", p.Address)}, nil

	case types.TxAddRegistrar:
		var p types.RolePayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Voting.AddRegistrar(signer, p.Address); err != nil {
			return Receipt{}, err
		}
		return Receipt{Message: fmt.Sprintf("%s may open proposals", p.Address)}, nil

	case types.TxAddExecutor:
		var p types.RolePayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Voting.AddExecutor(signer, p.Address); err != nil {
			return Receipt{}, err
		}
		return Receipt{Message: fmt.Sprintf("%s may execute proposals", p.Address)}, nil

	case types.TxRegisterResource:
		var p types.RegisterResourcePayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		pid, err := s.Registry.RegisterResource(signer, p.ResourceID, p.Description, p.InitialPrice)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: pid, Message: fmt.Sprintf("registered resource %d with proposal %d", p.ResourceID, pid)}, nil

	case types.TxSuggest:
		var p types.SuggestPayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		idx, err := s.Voting.Suggest(signer, p.ProposalID, p.Price)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: uint64(idx), Message: fmt.Sprintf("suggested %d on proposal %d", p.Price, p.ProposalID)}, nil

	case types.TxVote, types.TxChangeVote:
		var p types.VotePayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Voting.CastVote(signer, p.ProposalID, p.Suggestion); err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: uint64(p.Suggestion), Message: fmt.Sprintf("voted for suggestion %d on proposal %d", p.Suggestion, p.ProposalID)}, nil

	case types.TxExecute:
		var p types.ExecutePayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		price, err := s.Voting.Execute(signer, p.ProposalID)
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Value: price, Message: fmt.Sprintf("proposal %d executed at price %d", p.ProposalID, price)}, nil

	case types.TxPurchase:
		var p types.PurchasePayload
		if err := decode(tx, &p); err != nil {
			return Receipt{}, err
		}
		if err := s.Registry.Purchase(signer, p.ResourceID, p.Buyer); err != nil {
			return Receipt{}, err
		}
		price, _ := s.Registry.PriceOf(p.ResourceID)
		return Receipt{Value: price, Message: fmt.Sprintf("%s bought resource %d for %d", p.Buyer, p.ResourceID, price)}, nil
	}
	return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownTxType, tx.Type)
}

// ErrUnknownTxType is returned for transaction types the state does not
// handle.
var ErrUnknownTxType = errors.New("unknown transaction type")

// ErrBadPayload marks a payload that could not be decoded.
var ErrBadPayload = errors.New("bad payload")

func decode(tx *types.Transaction, v interface{}) error {
	if err := tx.DecodePayload(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, tx.Type, err)
	}
	return nil
}
