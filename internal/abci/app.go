// Package abci contains the ABCI application that connects the pricing
// network to the Tendermint consensus engine. Signatures and nonces are
// validated here, transactions are applied to the composed state here, and
// every committed block is persisted here so a restarted node resumes from
// its last height.
package abci

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	abci "github.com/tendermint/tendermint/abci/types"

	"likoin.network/lkn/internal/logger"
	"likoin.network/lkn/internal/state"
	"likoin.network/lkn/internal/store"
	"likoin.network/lkn/internal/types"
)

// Persister is the part of the store the application writes to.
type Persister interface {
	SaveSnapshot(height int64, appHash, state []byte) error
	LatestSnapshot() (*store.Snapshot, error)
	PruneSnapshots(keep int) (int64, error)
	RecordTx(rec store.TxRecord) error
}

// Options tune an ABCIApplication.
type Options struct {
	// KeepSnapshots bounds the number of snapshots kept in the store. Zero
	// keeps all of them.
	KeepSnapshots int
}

// ABCIApplication implements the ABCI interface.
type ABCIApplication struct {
	abci.BaseApplication

	mu      sync.RWMutex
	genesis state.Genesis
	state   *state.State
	store   Persister
	logger  *logger.Logger
	opts    Options

	lastHeight int64
	lastHash   []byte
	// pending tracks the next nonce per signer across the mempool so a
	// signer can queue several transactions inside one block.
	pending map[types.Address]uint64
}

// NewABCIApplication creates the application. When st holds a snapshot
// the state resumes from it; otherwise it is built from genesis. st and lg
// may be nil.
func NewABCIApplication(genesis state.Genesis, st Persister, lg *logger.Logger, opts Options) (*ABCIApplication, error) {
	app := &ABCIApplication{
		genesis: genesis,
		store:   st,
		logger:  lg,
		opts:    opts,
		pending: make(map[types.Address]uint64),
	}

	if st != nil {
		snap, err := st.LatestSnapshot()
		switch {
		case err == nil:
			s, err := state.Unmarshal(snap.State)
			if err != nil {
				return nil, fmt.Errorf("load snapshot at height %d: %w", snap.Height, err)
			}
			app.state = s
			app.lastHeight = snap.Height
			app.lastHash = snap.AppHash
			log.Printf("INFO: Resumed state at height %d", snap.Height)
			return app, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("read latest snapshot: %w", err)
		}
	}

	s, err := state.New(genesis)
	if err != nil {
		return nil, fmt.Errorf("build genesis state: %w", err)
	}
	app.state = s
	return app, nil
}

// View runs fn against the current state under a read lock. fn must not
// retain s.
func (app *ABCIApplication) View(fn func(s *state.State) error) error {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return fn(app.state)
}

// LastCommit returns the height and app hash of the last committed block.
func (app *ABCIApplication) LastCommit() (int64, []byte) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.lastHeight, append([]byte(nil), app.lastHash...)
}

func (app *ABCIApplication) event(level, text string, fields map[string]string) {
	if app.logger != nil {
		app.logger.LogFields(level, text, fields)
	}
}

func (app *ABCIApplication) Info(req abci.RequestInfo) abci.ResponseInfo {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return abci.ResponseInfo{
		Data:             "lkn",
		Version:          types.Version,
		LastBlockHeight:  app.lastHeight,
		LastBlockAppHash: app.lastHash,
	}
}

// InitChain lets the chain's genesis app_state override the configured
// genesis. Only the fields present in app_state are replaced.
func (app *ABCIApplication) InitChain(req abci.RequestInitChain) abci.ResponseInitChain {
	raw := bytes.TrimSpace(req.AppStateBytes)
	if len(raw) == 0 || bytes.Equal(raw, []byte(`""`)) || bytes.Equal(raw, []byte("null")) {
		return abci.ResponseInitChain{}
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	g := app.genesis
	if err := json.Unmarshal(raw, &g); err != nil {
		// Tendermint treats a panic here as fatal, which is what a broken
		// genesis deserves
		panic(fmt.Sprintf("decode app_state: %v", err))
	}
	s, err := state.New(g)
	if err != nil {
		panic(fmt.Sprintf("build state from app_state: %v", err))
	}
	app.genesis = g
	app.state = s
	log.Printf("INFO: Initialized chain %s with %d authorities", req.ChainId, len(g.Authorities))
	return abci.ResponseInitChain{}
}

// decode unwraps and authenticates a raw transaction.
func decode(raw []byte) (*types.SignedTransaction, *types.Transaction, uint32, string) {
	var signedTx types.SignedTransaction
	if err := json.Unmarshal(raw, &signedTx); err != nil {
		return nil, nil, types.CodeTypeEncodingError, "failed to decode signed tx"
	}
	if !signedTx.Verify() {
		return nil, nil, types.CodeTypeAuthError, "invalid signature"
	}
	tx, err := signedTx.GetTransaction()
	if err != nil {
		return nil, nil, types.CodeTypeEncodingError, "failed to decode inner tx"
	}
	return &signedTx, tx, types.CodeTypeOK, ""
}

func codeFor(err error) uint32 {
	if errors.Is(err, state.ErrBadPayload) {
		return types.CodeTypeEncodingError
	}
	if errors.Is(err, state.ErrUnknownTxType) {
		return types.CodeTypeInvalidTx
	}
	return types.CodeOf(err)
}

func (app *ABCIApplication) CheckTx(req abci.RequestCheckTx) abci.ResponseCheckTx {
	signedTx, tx, code, msg := decode(req.Tx)
	if code != types.CodeTypeOK {
		return abci.ResponseCheckTx{Code: code, Log: msg}
	}
	signer := signedTx.Signer()

	app.mu.Lock()
	defer app.mu.Unlock()

	want, ok := app.pending[signer]
	if !ok {
		want = app.state.NextNonce(signer)
	}
	if tx.Nonce != want {
		return abci.ResponseCheckTx{
			Code: types.CodeBadNonce,
			Log:  fmt.Sprintf("bad nonce: got %d, want %d", tx.Nonce, want),
		}
	}
	app.pending[signer] = want + 1
	return abci.ResponseCheckTx{Code: types.CodeTypeOK}
}

func (app *ABCIApplication) BeginBlock(req abci.RequestBeginBlock) abci.ResponseBeginBlock {
	app.mu.Lock()
	app.state.SetHeight(req.Header.Height)
	app.mu.Unlock()
	return abci.ResponseBeginBlock{}
}

func (app *ABCIApplication) DeliverTx(req abci.RequestDeliverTx) abci.ResponseDeliverTx {
	signedTx, tx, code, msg := decode(req.Tx)
	if code != types.CodeTypeOK {
		return abci.ResponseDeliverTx{Code: code, Log: msg}
	}
	signer := signedTx.Signer()

	app.mu.Lock()
	height := app.state.Height()
	receipt, err := app.state.Apply(signer, tx)
	app.mu.Unlock()

	rec := store.TxRecord{
		ID:     tx.ID,
		Height: height,
		Signer: string(signer),
		Type:   string(tx.Type),
	}
	fields := map[string]string{
		"tx":     tx.ID,
		"type":   string(tx.Type),
		"signer": string(signer),
		"height": strconv.FormatInt(height, 10),
	}

	if err != nil {
		rec.Code = codeFor(err)
		rec.Log = err.Error()
		app.record(rec)
		fields["code"] = strconv.FormatUint(uint64(rec.Code), 10)
		app.event("warning", fmt.Sprintf("%s rejected: %v", tx.Type, err), fields)
		log.Printf("INFO: Rejected %s from %s: %v", tx.Type, signer, err)
		return abci.ResponseDeliverTx{Code: rec.Code, Log: rec.Log}
	}

	rec.Log = receipt.Message
	app.record(rec)
	app.event("info", receipt.Message, fields)
	log.Printf("INFO: Applied %s from %s: %s", tx.Type, signer, receipt.Message)

	return abci.ResponseDeliverTx{
		Code: types.CodeTypeOK,
		Data: receipt.Data(),
		Log:  receipt.Message,
		Events: []abci.Event{{
			Type: string(tx.Type),
			Attributes: []abci.EventAttribute{
				{Key: []byte("signer"), Value: []byte(signer), Index: true},
				{Key: []byte("value"), Value: []byte(strconv.FormatUint(receipt.Value, 10)), Index: false},
			},
		}},
	}
}

func (app *ABCIApplication) record(rec store.TxRecord) {
	if app.store == nil || rec.ID == "" {
		return
	}
	if err := app.store.RecordTx(rec); err != nil {
		log.Printf("WARN: Failed to record tx %s: %v", rec.ID, err)
	}
}

func (app *ABCIApplication) Commit() abci.ResponseCommit {
	app.mu.Lock()
	defer app.mu.Unlock()

	data, err := app.state.Marshal()
	if err != nil {
		panic(fmt.Sprintf("encode state: %v", err))
	}
	hash, err := app.state.AppHash()
	if err != nil {
		panic(fmt.Sprintf("hash state: %v", err))
	}
	height := app.state.Height()

	if app.store != nil {
		if err := app.store.SaveSnapshot(height, hash, data); err != nil {
			// without the snapshot a restart would diverge from the chain
			panic(fmt.Sprintf("persist height %d: %v", height, err))
		}
		if app.opts.KeepSnapshots > 0 {
			if _, err := app.store.PruneSnapshots(app.opts.KeepSnapshots); err != nil {
				log.Printf("WARN: Failed to prune snapshots: %v", err)
			}
		}
	}

	app.lastHeight = height
	app.lastHash = hash
	app.pending = make(map[types.Address]uint64)
	app.event("info", fmt.Sprintf("committed block %d", height), map[string]string{
		"height":   strconv.FormatInt(height, 10),
		"app_hash": fmt.Sprintf("%X", hash),
	})
	return abci.ResponseCommit{Data: hash}
}
