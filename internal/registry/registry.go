// Package registry keeps the purchasable resources of the network. Each
// resource is priced by its own proposal in the voting engine; once that
// proposal executes the resource is approved at the winning price and
// members can buy it with settlement units paid to the treasury.
package registry

import (
	"sort"

	"github.com/pkg/errors"

	"likoin.network/lkn/internal/ledger"
	"likoin.network/lkn/internal/types"
	"likoin.network/lkn/internal/voting"
)

// Resource is a registered item.
type Resource struct {
	ID          uint64                     `json:"id"`
	Description string                     `json:"description"`
	ProposalID  uint64                     `json:"proposal_id"`
	Approved    bool                       `json:"approved"`
	Price       uint64                     `json:"price"`
	Owners      map[types.Address]struct{} `json:"-"`
}

// OwnerList returns the owners in sorted order.
func (r Resource) OwnerList() []types.Address {
	out := make([]types.Address, 0, len(r.Owners))
	for who := range r.Owners {
		out = append(out, who)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Resource) clone() Resource {
	c := *r
	c.Owners = make(map[types.Address]struct{}, len(r.Owners))
	for who := range r.Owners {
		c.Owners[who] = struct{}{}
	}
	return c
}

// Config holds the registry's identity and payment routing.
type Config struct {
	// Address is the registry's identity towards the voting engine. It
	// must be a registrar there.
	Address types.Address
	// Authorities may register resources.
	Authorities []types.Address
	// Treasury receives every purchase payment.
	Treasury types.Address
}

// Registry owns the resource records.
type Registry struct {
	address     types.Address
	treasury    types.Address
	authorities map[types.Address]struct{}

	engine *voting.Engine
	ledger *ledger.Ledger

	resources map[uint64]*Resource
}

// New creates a Registry on top of engine and ledger and subscribes to
// proposal execution so approval is recorded as soon as a price is final.
func New(engine *voting.Engine, l *ledger.Ledger, cfg Config) *Registry {
	if cfg.Address == "" {
		cfg.Address = types.RegistryModule
	}
	r := &Registry{
		address:     cfg.Address,
		treasury:    cfg.Treasury,
		authorities: make(map[types.Address]struct{}),
		engine:      engine,
		ledger:      l,
		resources:   make(map[uint64]*Resource),
	}
	for _, a := range cfg.Authorities {
		r.authorities[a] = struct{}{}
	}
	engine.Subscribe(r.onExecuted)
	return r
}

// Address returns the registry's identity.
func (r *Registry) Address() types.Address { return r.address }

// Treasury returns the payment recipient.
func (r *Registry) Treasury() types.Address { return r.treasury }

func (r *Registry) onExecuted(p voting.Proposal) {
	res, ok := r.resources[p.ResourceID]
	if !ok || res.ProposalID != p.ID || res.Approved {
		return
	}
	res.Approved = true
	res.Price = p.FinalPrice
}

// RegisterResource records a new resource and opens its pricing proposal.
func (r *Registry) RegisterResource(caller types.Address, id uint64, description string, initialPrice uint64) (uint64, error) {
	if _, ok := r.authorities[caller]; !ok {
		return 0, errors.Wrapf(types.ErrUnauthorized, "%s cannot register resources", caller)
	}
	if _, ok := r.resources[id]; ok {
		return 0, errors.Wrapf(types.ErrDuplicateResource, "resource %d", id)
	}

	// the engine call is the only step that can fail after the local
	// checks, and it mutates nothing when it does
	pid, err := r.engine.OpenProposal(r.address, id, initialPrice)
	if err != nil {
		return 0, err
	}
	r.resources[id] = &Resource{
		ID:          id,
		Description: description,
		ProposalID:  pid,
		Owners:      make(map[types.Address]struct{}),
	}
	return pid, nil
}

func (r *Registry) get(id uint64) (*Resource, error) {
	res, ok := r.resources[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrResourceNotFound, "resource %d", id)
	}
	return res, nil
}

// Resource returns a copy of resource id.
func (r *Registry) Resource(id uint64) (Resource, error) {
	res, err := r.get(id)
	if err != nil {
		return Resource{}, err
	}
	return res.clone(), nil
}

// IsApproved reports whether resource id has a final price.
func (r *Registry) IsApproved(id uint64) bool {
	res, err := r.get(id)
	return err == nil && res.Approved
}

// PriceOf returns the approved price of resource id.
func (r *Registry) PriceOf(id uint64) (uint64, error) {
	res, err := r.get(id)
	if err != nil {
		return 0, err
	}
	if !res.Approved {
		return 0, errors.Wrapf(types.ErrResourceNotApproved, "resource %d", id)
	}
	return res.Price, nil
}

// IsOwner reports whether who bought resource id.
func (r *Registry) IsOwner(who types.Address, id uint64) bool {
	res, err := r.get(id)
	if err != nil {
		return false
	}
	_, ok := res.Owners[who]
	return ok
}

// Purchase grants buyer ownership of resource id against its approved
// price in settlement units, paid to the treasury. Each buyer may purchase
// a resource once.
func (r *Registry) Purchase(caller types.Address, id uint64, buyer types.Address) error {
	if caller != buyer {
		return errors.Wrapf(types.ErrUnauthorized, "%s cannot purchase for %s", caller, buyer)
	}
	res, err := r.get(id)
	if err != nil {
		return err
	}
	if !res.Approved {
		return errors.Wrapf(types.ErrResourceNotApproved, "resource %d", id)
	}
	if _, owned := res.Owners[buyer]; owned {
		return errors.Wrapf(types.ErrAlreadyOwned, "%s already owns resource %d", buyer, id)
	}
	if bal := r.ledger.BalanceOf(types.Settlement, buyer); bal < res.Price {
		return errors.Wrapf(types.ErrInsufficientBalance, "%s holds %d settlement, price is %d", buyer, bal, res.Price)
	}

	res.Owners[buyer] = struct{}{}
	if err := r.ledger.Transfer(buyer, types.Settlement, buyer, r.treasury, res.Price); err != nil {
		delete(res.Owners, buyer)
		return err
	}
	return nil
}

// IDs returns every registered resource id in ascending order.
func (r *Registry) IDs() []uint64 {
	ids := make([]uint64, 0, len(r.resources))
	for id := range r.resources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
