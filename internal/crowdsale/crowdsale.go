// Package crowdsale is the fund-raising entry point. A buyer pays in and
// the beneficiary receives payment times rate freshly minted utility units.
//
// Payments are received off ledger. A cashier attests to each one by
// signing the buy; nobody else can make the sale mint.
package crowdsale

import (
	"math/bits"
	"sort"

	"github.com/pkg/errors"

	"likoin.network/lkn/internal/ledger"
	"likoin.network/lkn/internal/types"
)

// Config holds the sale parameters.
type Config struct {
	// Address is the identity the sale mints as. It must be a utility
	// minter on the ledger.
	Address types.Address
	Rate    uint64
	// Authorities grant the cashier role and are cashiers themselves.
	Authorities []types.Address
	Cashiers    []types.Address
}

// Crowdsale mints utility units against payments.
type Crowdsale struct {
	address types.Address
	rate    uint64
	ledger  *ledger.Ledger

	authorities map[types.Address]struct{}
	cashiers    map[types.Address]struct{}

	raised    uint64
	purchases uint64
}

// New creates a Crowdsale minting into l. The rate must be positive.
func New(l *ledger.Ledger, cfg Config) (*Crowdsale, error) {
	if cfg.Rate == 0 {
		return nil, errors.Wrap(types.ErrInvalidAmount, "crowdsale rate must be positive")
	}
	if cfg.Address == "" {
		cfg.Address = types.CrowdsaleModule
	}
	return &Crowdsale{
		address:     cfg.Address,
		rate:        cfg.Rate,
		ledger:      l,
		authorities: toSet(cfg.Authorities),
		cashiers:    toSet(cfg.Cashiers),
	}, nil
}

// AddCashier lets who attest to payments.
func (c *Crowdsale) AddCashier(caller, who types.Address) error {
	if !has(c.authorities, caller) {
		return errors.Wrapf(types.ErrUnauthorized, "%s cannot grant cashier", caller)
	}
	if who == "" {
		return errors.Wrap(types.ErrInvalidAmount, "missing cashier address")
	}
	c.cashiers[who] = struct{}{}
	return nil
}

// IsCashier reports whether who may record purchases.
func (c *Crowdsale) IsCashier(who types.Address) bool {
	return has(c.cashiers, who) || has(c.authorities, who)
}

// Cashiers lists the granted cashiers, authorities excluded.
func (c *Crowdsale) Cashiers() []types.Address { return sorted(c.cashiers) }

// Address returns the sale's minting identity.
func (c *Crowdsale) Address() types.Address { return c.address }

// Rate returns the utility units minted per unit of payment.
func (c *Crowdsale) Rate() uint64 { return c.rate }

// Raised returns the total payment accepted so far.
func (c *Crowdsale) Raised() uint64 { return c.raised }

// Purchases returns the number of successful buys.
func (c *Crowdsale) Purchases() uint64 { return c.purchases }

// Buy records a payment received by caller and mints payment times rate
// utility units to beneficiary. It returns the minted amount. caller must
// be a cashier.
func (c *Crowdsale) Buy(caller, beneficiary types.Address, payment uint64) (uint64, error) {
	if !c.IsCashier(caller) {
		return 0, errors.Wrapf(types.ErrUnauthorized, "%s is not a cashier", caller)
	}
	if payment == 0 {
		return 0, errors.Wrap(types.ErrInvalidAmount, "payment must be positive")
	}
	if beneficiary == "" {
		return 0, errors.Wrap(types.ErrInvalidAmount, "missing beneficiary")
	}
	hi, tokens := bits.Mul64(payment, c.rate)
	if hi != 0 {
		return 0, errors.Wrapf(types.ErrInvalidAmount, "payment %d overflows at rate %d", payment, c.rate)
	}
	if _, carry := bits.Add64(c.raised, payment, 0); carry != 0 {
		return 0, errors.Wrapf(types.ErrInvalidAmount, "payment %d overflows raised total", payment)
	}
	if err := c.ledger.Mint(c.address, types.Utility, beneficiary, tokens); err != nil {
		return 0, errors.Wrapf(err, "buy for %s", caller)
	}
	c.raised += payment
	c.purchases++
	return tokens, nil
}

// Snapshot is the serializable form of a Crowdsale.
type Snapshot struct {
	Address     types.Address   `json:"address"`
	Rate        uint64          `json:"rate"`
	Authorities []types.Address `json:"authorities"`
	Cashiers    []types.Address `json:"cashiers"`
	Raised      uint64          `json:"raised"`
	Purchases   uint64          `json:"purchases"`
}

// Snapshot captures the sale totals and roles.
func (c *Crowdsale) Snapshot() Snapshot {
	return Snapshot{
		Address:     c.address,
		Rate:        c.rate,
		Authorities: sorted(c.authorities),
		Cashiers:    sorted(c.cashiers),
		Raised:      c.raised,
		Purchases:   c.purchases,
	}
}

// Restore rebuilds a Crowdsale minting into l.
func Restore(l *ledger.Ledger, snap Snapshot) (*Crowdsale, error) {
	c, err := New(l, Config{
		Address:     snap.Address,
		Rate:        snap.Rate,
		Authorities: snap.Authorities,
		Cashiers:    snap.Cashiers,
	})
	if err != nil {
		return nil, err
	}
	c.raised = snap.Raised
	c.purchases = snap.Purchases
	return c, nil
}

func toSet(addrs []types.Address) map[types.Address]struct{} {
	set := make(map[types.Address]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return set
}

func has(set map[types.Address]struct{}, who types.Address) bool {
	_, ok := set[who]
	return ok
}

func sorted(set map[types.Address]struct{}) []types.Address {
	out := make([]types.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
