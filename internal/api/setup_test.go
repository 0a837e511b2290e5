package api

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	tmabci "github.com/tendermint/tendermint/abci/types"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"

	"likoin.network/lkn/internal/abci"
	"likoin.network/lkn/internal/docs"
	"likoin.network/lkn/internal/identity"
	"likoin.network/lkn/internal/logger"
	"likoin.network/lkn/internal/state"
	"likoin.network/lkn/internal/store"
	"likoin.network/lkn/internal/tendermint"
	"likoin.network/lkn/internal/types"
)

// MockRelay implements Broadcaster for testing
type MockRelay struct {
	Result *tendermint.BroadcastResult
	Err    error

	Calls  int
	Commit bool
	Last   *types.SignedTransaction
}

func (m *MockRelay) BroadcastSigned(ctx context.Context, signedTx *types.SignedTransaction, commit bool) (*tendermint.BroadcastResult, error) {
	m.Calls++
	m.Commit = commit
	m.Last = signedTx
	return m.Result, m.Err
}

type testEnv struct {
	t      *testing.T
	app    *abci.ABCIApplication
	store  *store.Store
	relay  *MockRelay
	logger *logger.Logger
	owner  *identity.Identity
	height int64
	nonces map[string]uint64
}

// setupTest creates a node backed by a temporary store and the service
// serving it.
func setupTest(t *testing.T) (*Service, *testEnv) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewStore(filepath.Join(dir, "lkn.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	owner, err := identity.Generate()
	if err != nil {
		t.Fatalf("Failed to create identity: %v", err)
	}

	l := logger.New(100)
	app, err := abci.NewABCIApplication(state.Genesis{
		Authorities:    []types.Address{types.Address(owner.PublicKeyHex())},
		Treasury:       "treasury",
		ConversionRate: 100,
		CrowdsaleRate:  1000,
		MinimumQuorum:  1,
		Utility:        state.AssetMeta{Name: "Like1", Symbol: "LK1"},
		Settlement:     state.AssetMeta{Name: "Buck1", Symbol: "BK1"},
	}, st, l, abci.Options{})
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	relay := &MockRelay{}
	svc := NewService(app, st, relay, docs.NewService(filepath.Join(dir, "docs")), l, Options{NodeID: owner.PublicKeyHex()})

	env := &testEnv{
		t:      t,
		app:    app,
		store:  st,
		relay:  relay,
		logger: l,
		owner:  owner,
		nonces: make(map[string]uint64),
	}
	return svc, env
}

func (e *testEnv) sign(id *identity.Identity, typ types.TransactionType, payload interface{}) *types.SignedTransaction {
	e.t.Helper()
	tx, err := types.NewTransaction(typ, e.nonces[id.PublicKeyHex()], payload)
	if err != nil {
		e.t.Fatalf("build tx: %v", err)
	}
	stx, err := tx.Sign(id)
	if err != nil {
		e.t.Fatalf("sign tx: %v", err)
	}
	return stx
}

// apply commits one block holding a single transaction and returns the
// transaction id.
func (e *testEnv) apply(id *identity.Identity, typ types.TransactionType, payload interface{}) string {
	e.t.Helper()
	stx := e.sign(id, typ, payload)
	raw, _ := json.Marshal(stx)
	tx, _ := stx.GetTransaction()

	e.height++
	e.app.BeginBlock(tmabci.RequestBeginBlock{Header: tmproto.Header{Height: e.height}})
	resp := e.app.DeliverTx(tmabci.RequestDeliverTx{Tx: raw})
	e.app.Commit()
	if resp.Code != types.CodeTypeOK {
		e.t.Logf("%s rejected: %s", typ, resp.Log)
	}
	e.app.View(func(s *state.State) error {
		e.nonces[id.PublicKeyHex()] = s.NextNonce(types.Address(id.PublicKeyHex()))
		return nil
	})
	return tx.ID
}
