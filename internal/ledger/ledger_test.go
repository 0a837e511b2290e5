package ledger

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"likoin.network/lkn/internal/types"
)

const (
	owner    types.Address = "owner"
	assignee types.Address = "assignee"
	alice    types.Address = "alice"
	bob      types.Address = "bob"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(Config{
		ConversionRate: 100,
		Utility:        AssetConfig{Name: "Like1", Symbol: "LK1", Authorities: []types.Address{owner, assignee}},
		Settlement:     AssetConfig{Name: "Buck1", Symbol: "BK1", Authorities: []types.Address{owner, assignee}},
	})
	require.NoError(t, err)
	return l
}

func TestNewRejectsZeroRate(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errors.Is(err, types.ErrInvalidAmount))
}

func TestMintAndTransferMaintainHolderIndex(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Mint(owner, types.Utility, bob, 300))
	assert.EqualValues(t, 300, l.BalanceOf(types.Utility, bob))

	require.NoError(t, l.Mint(assignee, types.Utility, alice, 300))
	require.Equal(t, 2, l.HolderCount(types.Utility))

	require.NoError(t, l.Transfer(bob, types.Utility, bob, alice, 300))
	assert.EqualValues(t, 0, l.BalanceOf(types.Utility, bob))
	assert.EqualValues(t, 600, l.BalanceOf(types.Utility, alice))

	n := l.HolderCount(types.Utility)
	require.Equal(t, 1, n)
	last, err := l.HolderAt(types.Utility, n)
	require.NoError(t, err)
	assert.Equal(t, alice, last)

	_, err = l.HolderAt(types.Utility, 0)
	assert.True(t, errors.Is(err, types.ErrOutOfRange))
	_, err = l.HolderAt(types.Utility, 2)
	assert.True(t, errors.Is(err, types.ErrOutOfRange))

	require.NoError(t, l.CheckInvariants())
}

func TestMintRequiresMinter(t *testing.T) {
	l := newTestLedger(t)

	err := l.Mint(bob, types.Utility, bob, 300)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
	assert.EqualValues(t, 0, l.BalanceOf(types.Utility, bob))
	assert.Equal(t, 0, l.HolderCount(types.Utility))

	err = l.Mint(owner, types.Utility, bob, 0)
	assert.True(t, errors.Is(err, types.ErrInvalidAmount))

	err = l.Mint(owner, "gold", bob, 1)
	assert.True(t, errors.Is(err, types.ErrUnknownAsset))
}

func TestAddMinterRequiresAuthority(t *testing.T) {
	l := newTestLedger(t)

	err := l.AddMinter(bob, types.Utility, bob)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
	assert.False(t, l.IsMinter(types.Utility, bob))

	require.NoError(t, l.AddMinter(owner, types.Utility, types.CrowdsaleModule))
	require.NoError(t, l.AddMinter(owner, types.Utility, types.CrowdsaleModule))
	assert.True(t, l.IsMinter(types.Utility, types.CrowdsaleModule))
	assert.Contains(t, l.Minters(types.Utility), types.CrowdsaleModule)
}

func TestTransferFailures(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint(owner, types.Utility, bob, 10))

	err := l.Transfer(alice, types.Utility, bob, alice, 5)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))

	err = l.Transfer(bob, types.Utility, bob, alice, 11)
	assert.True(t, errors.Is(err, types.ErrInsufficientBalance))
	assert.EqualValues(t, 10, l.BalanceOf(types.Utility, bob))
	assert.EqualValues(t, 0, l.BalanceOf(types.Utility, alice))

	// zero transfers succeed and never create a holder entry
	require.NoError(t, l.Transfer(alice, types.Utility, alice, bob, 0))
	assert.Equal(t, 1, l.HolderCount(types.Utility))

	// self transfer keeps the balance
	require.NoError(t, l.Transfer(bob, types.Utility, bob, bob, 10))
	assert.EqualValues(t, 10, l.BalanceOf(types.Utility, bob))
	require.NoError(t, l.CheckInvariants())
}

func TestConvert(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Mint(owner, types.Utility, bob, 300))

	_, err := l.Convert(bob, 100)
	assert.True(t, errors.Is(err, types.ErrUnauthorized), "ledger is not yet a settlement minter")
	assert.EqualValues(t, 300, l.BalanceOf(types.Utility, bob))

	require.NoError(t, l.AddMinter(owner, types.Settlement, l.Address()))

	out, err := l.Convert(bob, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, out)
	assert.EqualValues(t, 10000, l.BalanceOf(types.Settlement, bob))
	assert.EqualValues(t, 200, l.BalanceOf(types.Utility, bob))

	_, err = l.Convert(bob, 201)
	assert.True(t, errors.Is(err, types.ErrInsufficientBalance))
	_, err = l.Convert(bob, 0)
	assert.True(t, errors.Is(err, types.ErrInvalidAmount))

	us, err := l.Supply(types.Utility)
	require.NoError(t, err)
	assert.EqualValues(t, 300, us.Minted)
	assert.EqualValues(t, 100, us.Burned)
	assert.EqualValues(t, 200, us.Outstanding)

	require.NoError(t, l.CheckInvariants())
}

func TestConvertOverflowLeavesStateUnchanged(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddMinter(owner, types.Settlement, l.Address()))
	require.NoError(t, l.Mint(owner, types.Utility, bob, math.MaxUint64/10))

	_, err := l.Convert(bob, math.MaxUint64/10)
	assert.True(t, errors.Is(err, types.ErrInvalidAmount))
	assert.EqualValues(t, math.MaxUint64/10, l.BalanceOf(types.Utility, bob))
	assert.EqualValues(t, 0, l.BalanceOf(types.Settlement, bob))

	err = l.Mint(owner, types.Utility, alice, math.MaxUint64)
	assert.True(t, errors.Is(err, types.ErrInvalidAmount))
	assert.EqualValues(t, 0, l.BalanceOf(types.Utility, alice))
	require.NoError(t, l.CheckInvariants())
}

func TestConservationUnderRandomOperations(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddMinter(owner, types.Settlement, l.Address()))

	rng := rand.New(rand.NewSource(42))
	people := []types.Address{alice, bob, "carlo", "dana", "eve"}
	pick := func() types.Address { return people[rng.Intn(len(people))] }

	for i := 0; i < 2000; i++ {
		kind := types.AssetKinds[rng.Intn(2)]
		amount := uint64(rng.Intn(50))
		var err error
		switch rng.Intn(3) {
		case 0:
			err = l.Mint(owner, kind, pick(), amount+1)
		case 1:
			from := pick()
			err = l.Transfer(from, kind, from, pick(), amount)
		case 2:
			_, err = l.Convert(pick(), amount+1)
		}
		if err != nil {
			require.True(t,
				errors.Is(err, types.ErrInsufficientBalance),
				"step %d: unexpected error %v", i, err)
		}
		require.NoError(t, l.CheckInvariants(), "step %d", i)
	}

	for _, kind := range types.AssetKinds {
		for _, who := range people {
			inIndex := false
			for _, h := range l.Holders(kind) {
				if h == who {
					inIndex = true
				}
			}
			assert.Equal(t, l.BalanceOf(kind, who) > 0, inIndex, fmt.Sprintf("%s/%s", kind, who))
		}
	}
}

func TestSnapshotRestore(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddMinter(owner, types.Settlement, l.Address()))
	require.NoError(t, l.Mint(owner, types.Utility, bob, 300))
	require.NoError(t, l.Mint(owner, types.Utility, alice, 300))
	_, err := l.Convert(bob, 100)
	require.NoError(t, err)

	restored, err := Restore(l.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, l.Snapshot(), restored.Snapshot())
	assert.True(t, restored.IsMinter(types.Settlement, restored.Address()))

	first, err := restored.HolderAt(types.Utility, 1)
	require.NoError(t, err)
	want, _ := l.HolderAt(types.Utility, 1)
	assert.Equal(t, want, first)

	broken := l.Snapshot()
	broken.Assets[0].Minted++
	_, err = Restore(broken)
	assert.Error(t, err)
}
