package voting

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"likoin.network/lkn/internal/types"
)

const (
	owner    types.Address = "owner"
	registry types.Address = "registry"
	alice    types.Address = "alice"
	bob      types.Address = "bob"
	carlo    types.Address = "carlo"
)

type fakeBalances map[types.Address]uint64

func (f fakeBalances) BalanceOf(kind types.AssetKind, who types.Address) uint64 {
	if kind != types.Utility {
		return 0
	}
	return f[who]
}

func newTestEngine(t *testing.T, bal fakeBalances, cfg Config) *Engine {
	t.Helper()
	if cfg.Authorities == nil {
		cfg.Authorities = []types.Address{owner}
	}
	e := New(bal, nil, cfg)
	require.NoError(t, e.AddRegistrar(owner, registry))
	return e
}

func TestOpenProposalAndSuggest(t *testing.T) {
	e := newTestEngine(t, fakeBalances{}, Config{})

	pid, err := e.OpenProposal(registry, 1, 5000)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pid)

	got, err := e.ProposalIDByResource(1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)

	idx, err := e.Suggest(bob, 0, 7000)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	n, err := e.SuggestionCount(0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	price, err := e.SuggestionAt(0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 7000, price)

	_, err = e.OpenProposal(registry, 1, 1)
	assert.True(t, errors.Is(err, types.ErrDuplicateResource))

	_, err = e.OpenProposal(bob, 2, 1)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))

	_, err = e.Suggest(bob, 9, 1)
	assert.True(t, errors.Is(err, types.ErrProposalNotFound))

	_, err = e.ProposalIDByResource(2)
	assert.True(t, errors.Is(err, types.ErrProposalNotFound))

	_, err = e.SuggestionAt(0, 2)
	assert.True(t, errors.Is(err, types.ErrInvalidSuggestionIndex))
}

func TestVoteIsExclusive(t *testing.T) {
	e := newTestEngine(t, fakeBalances{bob: 300000}, Config{MinimumQuorum: 1})
	_, err := e.OpenProposal(registry, 1, 5000)
	require.NoError(t, err)
	_, err = e.Suggest(bob, 0, 7000)
	require.NoError(t, err)

	require.NoError(t, e.CastVote(bob, 0, 1))
	assert.True(t, e.HasVotedFor(bob, 0, 1))
	assert.False(t, e.HasVotedFor(bob, 0, 0))

	require.NoError(t, e.ChangeVote(bob, 0, 0))
	assert.True(t, e.HasVotedFor(bob, 0, 0))
	assert.False(t, e.HasVotedFor(bob, 0, 1))
	assert.False(t, e.HasVotedFor(alice, 0, 0))

	err = e.CastVote(bob, 0, 2)
	assert.True(t, errors.Is(err, types.ErrInvalidSuggestionIndex))
	err = e.CastVote(bob, 0, -1)
	assert.True(t, errors.Is(err, types.ErrInvalidSuggestionIndex))
	assert.True(t, e.HasVotedFor(bob, 0, 0), "failed vote must not change the active vote")

	price, err := e.Execute(owner, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, price)
	assert.True(t, e.IsExecuted(0))

	final, err := e.FinalResult(0)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, final)
}

func TestExecuteIsIdempotent(t *testing.T) {
	bal := fakeBalances{alice: 10, bob: 20}
	e := newTestEngine(t, bal, Config{})
	_, err := e.OpenProposal(registry, 7, 100)
	require.NoError(t, err)
	_, err = e.Suggest(alice, 0, 200)
	require.NoError(t, err)
	require.NoError(t, e.CastVote(bob, 0, 1))

	price, err := e.Execute(owner, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 200, price)

	// moving weight after execution changes nothing
	bal[alice] = 1000
	require.True(t, errors.Is(e.CastVote(alice, 0, 0), types.ErrProposalExecuted))
	_, err = e.Suggest(alice, 0, 1)
	assert.True(t, errors.Is(err, types.ErrProposalExecuted))

	_, err = e.Execute(owner, 0)
	assert.True(t, errors.Is(err, types.ErrAlreadyExecuted))
	final, _ := e.FinalResult(0)
	assert.EqualValues(t, 200, final)
}

func TestTallyUsesLiveWeightAndBreaksTiesByIndex(t *testing.T) {
	bal := fakeBalances{alice: 50, bob: 50, carlo: 0}
	e := newTestEngine(t, bal, Config{})
	_, err := e.OpenProposal(registry, 1, 100)
	require.NoError(t, err)
	_, err = e.Suggest(alice, 0, 200)
	require.NoError(t, err)
	_, err = e.Suggest(alice, 0, 300)
	require.NoError(t, err)

	require.NoError(t, e.CastVote(alice, 0, 2))
	require.NoError(t, e.CastVote(bob, 0, 1))
	require.NoError(t, e.CastVote(carlo, 0, 0))

	tally, err := e.Tally(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 50, 50}, tally.Weights)
	assert.Equal(t, 2, tally.Voters)
	assert.Equal(t, 1, tally.Winner, "tie goes to the lower index")

	// weight is read at execution, so a late top-up flips the outcome
	bal[alice] = 51
	price, err := e.Execute(owner, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 300, price)

	p, err := e.Proposal(0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Winner)
}

func TestExecuteRules(t *testing.T) {
	height := int64(10)
	bal := fakeBalances{bob: 1}
	e := New(bal, func() int64 { return height }, Config{
		Authorities:    []types.Address{owner},
		Registrars:     []types.Address{registry},
		MinimumQuorum:  1,
		DebatingPeriod: 5,
	})
	_, err := e.OpenProposal(registry, 1, 100)
	require.NoError(t, err)

	_, err = e.Execute(bob, 0)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))

	_, err = e.Execute(owner, 3)
	assert.True(t, errors.Is(err, types.ErrProposalNotFound))

	_, err = e.Execute(owner, 0)
	assert.True(t, errors.Is(err, types.ErrDebateOpen))

	height = 15
	_, err = e.Execute(owner, 0)
	assert.True(t, errors.Is(err, types.ErrQuorumNotReached))
	assert.False(t, e.IsExecuted(0))

	require.NoError(t, e.AddExecutor(owner, bob))
	require.NoError(t, e.CastVote(bob, 0, 0))
	_, err = e.Execute(bob, 0)
	require.NoError(t, err)

	p, _ := e.Proposal(0)
	assert.EqualValues(t, 15, p.ExecutedAt)

	assert.True(t, errors.Is(e.AddExecutor(bob, alice), types.ErrUnauthorized))
	assert.True(t, errors.Is(e.AddRegistrar(bob, alice), types.ErrUnauthorized))
}

func TestObserversSeeExecution(t *testing.T) {
	e := newTestEngine(t, fakeBalances{}, Config{})
	var seen []Proposal
	e.Subscribe(func(p Proposal) { seen = append(seen, p) })

	_, err := e.OpenProposal(registry, 42, 900)
	require.NoError(t, err)
	_, err = e.Execute(owner, 0)
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.EqualValues(t, 42, seen[0].ResourceID)
	assert.EqualValues(t, 900, seen[0].FinalPrice)
	assert.True(t, seen[0].Executed)
}

func TestSnapshotRestore(t *testing.T) {
	bal := fakeBalances{bob: 5}
	e := newTestEngine(t, bal, Config{MinimumQuorum: 1})
	_, err := e.OpenProposal(registry, 1, 5000)
	require.NoError(t, err)
	_, err = e.Suggest(bob, 0, 7000)
	require.NoError(t, err)
	require.NoError(t, e.CastVote(bob, 0, 1))

	restored, err := Restore(bal, nil, e.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, e.Snapshot(), restored.Snapshot())
	assert.True(t, restored.HasVotedFor(bob, 0, 1))
	assert.True(t, restored.IsRegistrar(registry))

	_, err = restored.OpenProposal(registry, 1, 1)
	assert.True(t, errors.Is(err, types.ErrDuplicateResource))

	pid, err := restored.OpenProposal(registry, 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pid)
}

func TestRestoreRejectsInconsistentExecution(t *testing.T) {
	bal := fakeBalances{bob: 5}
	e := newTestEngine(t, bal, Config{MinimumQuorum: 1})
	_, err := e.OpenProposal(registry, 1, 5000)
	require.NoError(t, err)
	_, err = e.Suggest(bob, 0, 7000)
	require.NoError(t, err)
	require.NoError(t, e.CastVote(bob, 0, 1))
	_, err = e.Execute(owner, 0)
	require.NoError(t, err)

	snap := e.Snapshot()
	_, err = Restore(bal, nil, snap)
	require.NoError(t, err)

	snap = e.Snapshot()
	snap.Proposals[0].Winner = 2
	_, err = Restore(bal, nil, snap)
	assert.True(t, errors.Is(err, types.ErrInvalidSuggestionIndex))

	snap = e.Snapshot()
	snap.Proposals[0].Winner = -1
	_, err = Restore(bal, nil, snap)
	assert.True(t, errors.Is(err, types.ErrInvalidSuggestionIndex))

	snap = e.Snapshot()
	snap.Proposals[0].FinalPrice = 5000
	_, err = Restore(bal, nil, snap)
	assert.Error(t, err)
}
