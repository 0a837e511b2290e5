// Package ledger owns every asset balance of the network: the utility and
// settlement assets, their minter and authority sets, the enumerable index
// of nonzero holders and the fixed conversion ratio between the two assets.
//
// Other components never touch balances directly. They read through
// BalanceOf and move value through Transfer, Convert and Mint, each of which
// validates all preconditions before mutating anything.
package ledger

import (
	"math/bits"
	"sort"

	"github.com/pkg/errors"

	"likoin.network/lkn/internal/types"
)

// BalanceReader is the read-only view other components depend on.
type BalanceReader interface {
	BalanceOf(kind types.AssetKind, who types.Address) uint64
}

// AssetConfig describes one asset at creation. Authorities own the asset:
// they may add minters, and they start out as minters themselves.
type AssetConfig struct {
	Name        string
	Symbol      string
	Authorities []types.Address
}

// Config is the creation-time configuration of a Ledger.
type Config struct {
	// Address is the ledger's own identity. Conversion mints settlement
	// units as this address, so it must be a settlement minter.
	Address        types.Address
	ConversionRate uint64
	Utility        AssetConfig
	Settlement     AssetConfig
}

type asset struct {
	info        types.AssetInfo
	authorities map[types.Address]struct{}
	minters     map[types.Address]struct{}
	balances    map[types.Address]uint64
	holders     *holderIndex
	minted      uint64
	burned      uint64
}

func newAsset(kind types.AssetKind, cfg AssetConfig) *asset {
	a := &asset{
		info:        types.AssetInfo{Kind: kind, Name: cfg.Name, Symbol: cfg.Symbol},
		authorities: make(map[types.Address]struct{}),
		minters:     make(map[types.Address]struct{}),
		balances:    make(map[types.Address]uint64),
		holders:     newHolderIndex(),
	}
	for _, who := range cfg.Authorities {
		a.authorities[who] = struct{}{}
		a.minters[who] = struct{}{}
	}
	return a
}

// credit and debit keep the holder index in step with balances. Callers
// have already validated amounts and overflow.
func (a *asset) credit(who types.Address, amount uint64) {
	if amount == 0 {
		return
	}
	if a.balances[who] == 0 {
		a.holders.add(who)
	}
	a.balances[who] += amount
}

func (a *asset) debit(who types.Address, amount uint64) {
	if amount == 0 {
		return
	}
	rest := a.balances[who] - amount
	if rest == 0 {
		delete(a.balances, who)
		a.holders.remove(who)
		return
	}
	a.balances[who] = rest
}

func (a *asset) outstanding() uint64 {
	return a.minted - a.burned
}

// canIssue reports whether amount more units fit under the cumulative mint
// counter. Every balance is bounded by it, so this also rules out balance
// overflow.
func (a *asset) canIssue(amount uint64) bool {
	_, carry := bits.Add64(a.minted, amount, 0)
	return carry == 0
}

// Ledger is the dual-asset account book.
type Ledger struct {
	address types.Address
	rate    uint64
	assets  map[types.AssetKind]*asset
}

// New creates a Ledger. The conversion rate must be positive.
func New(cfg Config) (*Ledger, error) {
	if cfg.ConversionRate == 0 {
		return nil, errors.Wrap(types.ErrInvalidAmount, "conversion rate must be positive")
	}
	if cfg.Address == "" {
		cfg.Address = types.LedgerModule
	}
	return &Ledger{
		address: cfg.Address,
		rate:    cfg.ConversionRate,
		assets: map[types.AssetKind]*asset{
			types.Utility:    newAsset(types.Utility, cfg.Utility),
			types.Settlement: newAsset(types.Settlement, cfg.Settlement),
		},
	}, nil
}

// Address returns the ledger's own identity.
func (l *Ledger) Address() types.Address { return l.address }

// ConversionRate returns the fixed utility to settlement ratio.
func (l *Ledger) ConversionRate() uint64 { return l.rate }

func (l *Ledger) asset(kind types.AssetKind) (*asset, error) {
	a, ok := l.assets[kind]
	if !ok {
		return nil, errors.Wrapf(types.ErrUnknownAsset, "%q", kind)
	}
	return a, nil
}

// AddMinter authorizes who to mint kind. Only an authority of kind may do
// this. Adding an existing minter is a no-op.
func (l *Ledger) AddMinter(caller types.Address, kind types.AssetKind, who types.Address) error {
	a, err := l.asset(kind)
	if err != nil {
		return err
	}
	if _, ok := a.authorities[caller]; !ok {
		return errors.Wrapf(types.ErrUnauthorized, "%s is not an authority of %s", caller, kind)
	}
	a.minters[who] = struct{}{}
	return nil
}

// IsMinter reports whether who may mint kind.
func (l *Ledger) IsMinter(kind types.AssetKind, who types.Address) bool {
	a, ok := l.assets[kind]
	if !ok {
		return false
	}
	_, ok = a.minters[who]
	return ok
}

// IsAuthority reports whether who owns kind.
func (l *Ledger) IsAuthority(kind types.AssetKind, who types.Address) bool {
	a, ok := l.assets[kind]
	if !ok {
		return false
	}
	_, ok = a.authorities[who]
	return ok
}

// Mint creates amount new units of kind for to.
func (l *Ledger) Mint(caller types.Address, kind types.AssetKind, to types.Address, amount uint64) error {
	a, err := l.asset(kind)
	if err != nil {
		return err
	}
	if _, ok := a.minters[caller]; !ok {
		return errors.Wrapf(types.ErrUnauthorized, "%s is not a %s minter", caller, kind)
	}
	if amount == 0 {
		return errors.Wrap(types.ErrInvalidAmount, "mint amount must be positive")
	}
	if !a.canIssue(amount) {
		return errors.Wrapf(types.ErrInvalidAmount, "minting %d %s overflows supply", amount, kind)
	}

	a.credit(to, amount)
	a.minted += amount
	return nil
}

// Transfer moves amount of kind from from to to. The caller must be from.
// A zero amount succeeds without touching the holder index.
func (l *Ledger) Transfer(caller types.Address, kind types.AssetKind, from, to types.Address, amount uint64) error {
	a, err := l.asset(kind)
	if err != nil {
		return err
	}
	if caller != from {
		return errors.Wrapf(types.ErrUnauthorized, "%s cannot spend for %s", caller, from)
	}
	if bal := a.balances[from]; bal < amount {
		return errors.Wrapf(types.ErrInsufficientBalance, "%s holds %d %s, needs %d", from, bal, kind, amount)
	}

	a.debit(from, amount)
	a.credit(to, amount)
	return nil
}

// Convert burns amount utility units of caller and mints amount times the
// conversion rate settlement units to caller. It returns the settlement
// amount minted.
func (l *Ledger) Convert(caller types.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, errors.Wrap(types.ErrInvalidAmount, "convert amount must be positive")
	}
	u := l.assets[types.Utility]
	s := l.assets[types.Settlement]

	if bal := u.balances[caller]; bal < amount {
		return 0, errors.Wrapf(types.ErrInsufficientBalance, "%s holds %d utility, needs %d", caller, bal, amount)
	}
	if _, ok := s.minters[l.address]; !ok {
		return 0, errors.Wrapf(types.ErrUnauthorized, "ledger %s is not a settlement minter", l.address)
	}
	hi, out := bits.Mul64(amount, l.rate)
	if hi != 0 || !s.canIssue(out) {
		return 0, errors.Wrapf(types.ErrInvalidAmount, "converting %d overflows settlement supply", amount)
	}

	u.debit(caller, amount)
	u.burned += amount
	s.credit(caller, out)
	s.minted += out
	return out, nil
}

// BalanceOf returns the balance of who in kind. Unknown kinds read as zero.
func (l *Ledger) BalanceOf(kind types.AssetKind, who types.Address) uint64 {
	a, ok := l.assets[kind]
	if !ok {
		return 0
	}
	return a.balances[who]
}

// HolderCount returns the number of addresses with a nonzero balance.
func (l *Ledger) HolderCount(kind types.AssetKind) int {
	a, ok := l.assets[kind]
	if !ok {
		return 0
	}
	return a.holders.len()
}

// HolderAt returns the n-th holder of kind, 1-based. The order is not
// stable across removals.
func (l *Ledger) HolderAt(kind types.AssetKind, n int) (types.Address, error) {
	a, err := l.asset(kind)
	if err != nil {
		return "", err
	}
	who, ok := a.holders.at(n)
	if !ok {
		return "", errors.Wrapf(types.ErrOutOfRange, "holder %d of %d", n, a.holders.len())
	}
	return who, nil
}

// Holders returns a copy of the holder index of kind in index order.
func (l *Ledger) Holders(kind types.AssetKind) []types.Address {
	a, ok := l.assets[kind]
	if !ok {
		return nil
	}
	return a.holders.list()
}

// Minters returns the sorted minter set of kind.
func (l *Ledger) Minters(kind types.AssetKind) []types.Address {
	a, ok := l.assets[kind]
	if !ok {
		return nil
	}
	return sortedSet(a.minters)
}

// Info returns the metadata of kind.
func (l *Ledger) Info(kind types.AssetKind) (types.AssetInfo, error) {
	a, err := l.asset(kind)
	if err != nil {
		return types.AssetInfo{}, err
	}
	return a.info, nil
}

// Supply returns the bookkeeping totals of kind.
func (l *Ledger) Supply(kind types.AssetKind) (types.Supply, error) {
	a, err := l.asset(kind)
	if err != nil {
		return types.Supply{}, err
	}
	return types.Supply{
		Kind:        kind,
		Minted:      a.minted,
		Burned:      a.burned,
		Outstanding: a.outstanding(),
		Holders:     a.holders.len(),
	}, nil
}

// CheckInvariants verifies conservation and holder index exactness for
// every asset. It returns nil when the book is consistent.
func (l *Ledger) CheckInvariants() error {
	for _, kind := range types.AssetKinds {
		a := l.assets[kind]
		var sum uint64
		for who, bal := range a.balances {
			if bal == 0 {
				return errors.Errorf("%s: zero balance stored for %s", kind, who)
			}
			if !a.holders.contains(who) {
				return errors.Errorf("%s: holder %s missing from index", kind, who)
			}
			sum += bal
		}
		if a.holders.len() != len(a.balances) {
			return errors.Errorf("%s: index has %d holders, %d balances", kind, a.holders.len(), len(a.balances))
		}
		if a.burned > a.minted || sum != a.outstanding() {
			return errors.Errorf("%s: balances sum to %d, minted %d burned %d", kind, sum, a.minted, a.burned)
		}
	}
	return nil
}

func sortedSet(set map[types.Address]struct{}) []types.Address {
	out := make([]types.Address, 0, len(set))
	for who := range set {
		out = append(out, who)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
