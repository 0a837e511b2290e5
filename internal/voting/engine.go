// Package voting implements the price proposal engine. Each registered
// resource gets exactly one proposal holding an ordered list of suggested
// prices. Holders vote for one suggestion at a time; an executor finalizes
// the proposal once, choosing the suggestion backed by the most utility
// weight.
//
// Vote weight is read live from the ledger at execution time, not recorded
// when the vote is cast. A holder can therefore move weight between voting
// and execution; execution is the only point at which balances matter.
package voting

import (
	"sort"

	"github.com/pkg/errors"

	"likoin.network/lkn/internal/ledger"
	"likoin.network/lkn/internal/types"
)

// Config holds the engine's roles and execution rules.
type Config struct {
	// Authorities grant the registrar and executor roles and may execute
	// proposals themselves.
	Authorities []types.Address
	Registrars  []types.Address
	Executors   []types.Address
	// WeightAsset is the asset whose balance weighs a vote. Defaults to
	// the utility asset.
	WeightAsset types.AssetKind
	// MinimumQuorum is the number of voters with nonzero weight required
	// for execution.
	MinimumQuorum int
	// DebatingPeriod is the number of blocks a proposal stays open before
	// it may be executed.
	DebatingPeriod int64
}

// Proposal is one price selection process.
type Proposal struct {
	ID          uint64                `json:"id"`
	ResourceID  uint64                `json:"resource_id"`
	Suggestions []uint64              `json:"suggestions"`
	Votes       map[types.Address]int `json:"votes"`
	Executed    bool                  `json:"executed"`
	FinalPrice  uint64                `json:"final_price"`
	Winner      int                   `json:"winner"`
	OpenedAt    int64                 `json:"opened_at"`
	ExecutedAt  int64                 `json:"executed_at"`
}

func (p *Proposal) clone() Proposal {
	c := *p
	c.Suggestions = append([]uint64(nil), p.Suggestions...)
	c.Votes = make(map[types.Address]int, len(p.Votes))
	for v, i := range p.Votes {
		c.Votes[v] = i
	}
	return c
}

// Tally is the weight behind each suggestion at one point in time.
type Tally struct {
	Weights []uint64 `json:"weights"`
	Voters  int      `json:"voters"`
	Winner  int      `json:"winner"`
}

// Observer is called synchronously after a proposal is executed.
type Observer func(p Proposal)

// Engine owns all proposals.
type Engine struct {
	balances    ledger.BalanceReader
	height      func() int64
	weightAsset types.AssetKind
	quorum      int
	period      int64

	authorities map[types.Address]struct{}
	registrars  map[types.Address]struct{}
	executors   map[types.Address]struct{}

	proposals  []*Proposal
	byResource map[uint64]uint64
	observers  []Observer
}

// New creates an Engine reading vote weight from balances. height reports
// the current block height and is used for the debating period; nil means
// height 0.
func New(balances ledger.BalanceReader, height func() int64, cfg Config) *Engine {
	if height == nil {
		height = func() int64 { return 0 }
	}
	if cfg.WeightAsset == "" {
		cfg.WeightAsset = types.Utility
	}
	e := &Engine{
		balances:    balances,
		height:      height,
		weightAsset: cfg.WeightAsset,
		quorum:      cfg.MinimumQuorum,
		period:      cfg.DebatingPeriod,
		authorities: toSet(cfg.Authorities),
		registrars:  toSet(cfg.Registrars),
		executors:   toSet(cfg.Executors),
		byResource:  make(map[uint64]uint64),
	}
	return e
}

// Subscribe registers fn to run after every successful execution.
func (e *Engine) Subscribe(fn Observer) {
	e.observers = append(e.observers, fn)
}

// AddRegistrar lets who open proposals.
func (e *Engine) AddRegistrar(caller, who types.Address) error {
	if !has(e.authorities, caller) {
		return errors.Wrapf(types.ErrUnauthorized, "%s cannot grant registrar", caller)
	}
	e.registrars[who] = struct{}{}
	return nil
}

// AddExecutor lets who execute proposals.
func (e *Engine) AddExecutor(caller, who types.Address) error {
	if !has(e.authorities, caller) {
		return errors.Wrapf(types.ErrUnauthorized, "%s cannot grant executor", caller)
	}
	e.executors[who] = struct{}{}
	return nil
}

// IsRegistrar reports whether who may open proposals.
func (e *Engine) IsRegistrar(who types.Address) bool { return has(e.registrars, who) }

// IsExecutor reports whether who may execute proposals.
func (e *Engine) IsExecutor(who types.Address) bool {
	return has(e.executors, who) || has(e.authorities, who)
}

// OpenProposal creates the proposal for resourceID seeded with
// initialPrice as suggestion 0.
func (e *Engine) OpenProposal(caller types.Address, resourceID, initialPrice uint64) (uint64, error) {
	if !has(e.registrars, caller) {
		return 0, errors.Wrapf(types.ErrUnauthorized, "%s is not a registrar", caller)
	}
	if pid, ok := e.byResource[resourceID]; ok {
		return 0, errors.Wrapf(types.ErrDuplicateResource, "resource %d already has proposal %d", resourceID, pid)
	}

	id := uint64(len(e.proposals))
	e.proposals = append(e.proposals, &Proposal{
		ID:          id,
		ResourceID:  resourceID,
		Suggestions: []uint64{initialPrice},
		Votes:       make(map[types.Address]int),
		OpenedAt:    e.height(),
	})
	e.byResource[resourceID] = id
	return id, nil
}

func (e *Engine) get(id uint64) (*Proposal, error) {
	if id >= uint64(len(e.proposals)) {
		return nil, errors.Wrapf(types.ErrProposalNotFound, "proposal %d", id)
	}
	return e.proposals[id], nil
}

func (e *Engine) open(id uint64) (*Proposal, error) {
	p, err := e.get(id)
	if err != nil {
		return nil, err
	}
	if p.Executed {
		return nil, errors.Wrapf(types.ErrProposalExecuted, "proposal %d", id)
	}
	return p, nil
}

// Suggest appends an alternative price and returns its index.
func (e *Engine) Suggest(caller types.Address, id, price uint64) (int, error) {
	p, err := e.open(id)
	if err != nil {
		return 0, err
	}
	p.Suggestions = append(p.Suggestions, price)
	return len(p.Suggestions) - 1, nil
}

// CastVote points voter's single vote at suggestion index, replacing any
// earlier choice.
func (e *Engine) CastVote(voter types.Address, id uint64, index int) error {
	p, err := e.open(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.Suggestions) {
		return errors.Wrapf(types.ErrInvalidSuggestionIndex, "suggestion %d of %d", index, len(p.Suggestions))
	}
	p.Votes[voter] = index
	return nil
}

// ChangeVote is CastVote under the name callers use for a second vote.
func (e *Engine) ChangeVote(voter types.Address, id uint64, index int) error {
	return e.CastVote(voter, id, index)
}

// HasVotedFor reports whether voter's active vote is index.
func (e *Engine) HasVotedFor(voter types.Address, id uint64, index int) bool {
	p, err := e.get(id)
	if err != nil {
		return false
	}
	cur, ok := p.Votes[voter]
	return ok && cur == index
}

func (e *Engine) tally(p *Proposal) Tally {
	t := Tally{Weights: make([]uint64, len(p.Suggestions))}
	for voter, idx := range p.Votes {
		w := e.balances.BalanceOf(e.weightAsset, voter)
		if w == 0 {
			continue
		}
		t.Weights[idx] += w
		t.Voters++
	}
	for i, w := range t.Weights {
		if w > t.Weights[t.Winner] {
			t.Winner = i
		}
	}
	return t
}

// Tally computes the current live weights of an open or executed proposal.
func (e *Engine) Tally(id uint64) (Tally, error) {
	p, err := e.get(id)
	if err != nil {
		return Tally{}, err
	}
	return e.tally(p), nil
}

// Execute finalizes proposal id and returns the winning price. Ties go to
// the lowest suggestion index.
func (e *Engine) Execute(caller types.Address, id uint64) (uint64, error) {
	if !e.IsExecutor(caller) {
		return 0, errors.Wrapf(types.ErrUnauthorized, "%s is not an executor", caller)
	}
	p, err := e.get(id)
	if err != nil {
		return 0, err
	}
	if p.Executed {
		return 0, errors.Wrapf(types.ErrAlreadyExecuted, "proposal %d", id)
	}
	now := e.height()
	if now < p.OpenedAt+e.period {
		return 0, errors.Wrapf(types.ErrDebateOpen, "proposal %d opens for execution at height %d", id, p.OpenedAt+e.period)
	}
	t := e.tally(p)
	if t.Voters < e.quorum {
		return 0, errors.Wrapf(types.ErrQuorumNotReached, "proposal %d has %d weighted voters, needs %d", id, t.Voters, e.quorum)
	}

	p.Executed = true
	p.Winner = t.Winner
	p.FinalPrice = p.Suggestions[t.Winner]
	p.ExecutedAt = now

	snap := p.clone()
	for _, fn := range e.observers {
		fn(snap)
	}
	return p.FinalPrice, nil
}

// IsExecuted reports whether proposal id is final.
func (e *Engine) IsExecuted(id uint64) bool {
	p, err := e.get(id)
	return err == nil && p.Executed
}

// FinalResult returns the executed price of proposal id, or zero while it
// is still open.
func (e *Engine) FinalResult(id uint64) (uint64, error) {
	p, err := e.get(id)
	if err != nil {
		return 0, err
	}
	return p.FinalPrice, nil
}

// ProposalIDByResource maps a resource to its proposal.
func (e *Engine) ProposalIDByResource(resourceID uint64) (uint64, error) {
	id, ok := e.byResource[resourceID]
	if !ok {
		return 0, errors.Wrapf(types.ErrProposalNotFound, "no proposal for resource %d", resourceID)
	}
	return id, nil
}

// SuggestionCount returns the number of suggestions of proposal id.
func (e *Engine) SuggestionCount(id uint64) (int, error) {
	p, err := e.get(id)
	if err != nil {
		return 0, err
	}
	return len(p.Suggestions), nil
}

// SuggestionAt returns the price of suggestion index.
func (e *Engine) SuggestionAt(id uint64, index int) (uint64, error) {
	p, err := e.get(id)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(p.Suggestions) {
		return 0, errors.Wrapf(types.ErrInvalidSuggestionIndex, "suggestion %d of %d", index, len(p.Suggestions))
	}
	return p.Suggestions[index], nil
}

// Proposal returns a copy of proposal id.
func (e *Engine) Proposal(id uint64) (Proposal, error) {
	p, err := e.get(id)
	if err != nil {
		return Proposal{}, err
	}
	return p.clone(), nil
}

// Count returns the number of proposals.
func (e *Engine) Count() int { return len(e.proposals) }

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
