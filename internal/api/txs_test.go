package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"likoin.network/lkn/internal/store"
	"likoin.network/lkn/internal/tendermint"
	"likoin.network/lkn/internal/types"
)

func TestHandleTxs(t *testing.T) {
	svc, env := setupTest(t)
	first := env.apply(env.owner, types.TxMint, types.MintPayload{Asset: types.Utility, To: "bob", Amount: 1})
	rejected := env.apply(env.owner, types.TxConvert, types.ConvertPayload{Amount: 1000})

	var recs []store.TxRecord
	if code := get(t, svc.HandleTxs, "/api/txs?signer="+env.owner.PublicKeyHex(), &recs); code != http.StatusOK {
		t.Fatalf("Expected status OK, got %d", code)
	}
	if len(recs) != 2 || recs[0].ID != rejected || recs[1].ID != first {
		t.Fatalf("Unexpected records: %+v", recs)
	}
	if recs[0].Code != types.CodeInsufficientBalance {
		t.Errorf("Expected code %d, got %d", types.CodeInsufficientBalance, recs[0].Code)
	}

	var rec store.TxRecord
	if code := get(t, svc.HandleTx, "/api/txs/get?id="+first, &rec); code != http.StatusOK {
		t.Fatalf("Expected status OK, got %d", code)
	}
	if rec.Height != 1 || rec.Type != string(types.TxMint) {
		t.Errorf("Unexpected record: %+v", rec)
	}

	if code := get(t, svc.HandleTx, "/api/txs/get?id=missing", nil); code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
	if code := get(t, svc.HandleTxs, "/api/txs?limit=0", nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", code)
	}
}

func post(h http.HandlerFunc, target string, body []byte) *http.Response {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)
	return w.Result()
}

func TestHandleSubmitTx(t *testing.T) {
	svc, env := setupTest(t)
	env.relay.Result = &tendermint.BroadcastResult{Hash: "ABCD", Height: 4, Data: []byte(`{"value":1}`)}

	stx := env.sign(env.owner, types.TxMint, types.MintPayload{Asset: types.Utility, To: "bob", Amount: 1})
	body, _ := json.Marshal(stx)

	resp := post(svc.HandleSubmitTx, "/api/tx?commit=true", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Status)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected a request id header")
	}
	var out struct {
		Hash   string          `json:"hash"`
		Height int64           `json:"height"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if out.Hash != "ABCD" || out.Height != 4 || string(out.Data) != `{"value":1}` {
		t.Errorf("Unexpected response: %+v", out)
	}
	if env.relay.Calls != 1 || !env.relay.Commit {
		t.Errorf("Expected one commit broadcast, got calls=%d commit=%v", env.relay.Calls, env.relay.Commit)
	}
}

func TestHandleSubmitTxRejections(t *testing.T) {
	svc, env := setupTest(t)

	stx := env.sign(env.owner, types.TxMint, types.MintPayload{Asset: types.Utility, To: "bob", Amount: 1})
	stx.Signature[0] ^= 0xff
	body, _ := json.Marshal(stx)
	if resp := post(svc.HandleSubmitTx, "/api/tx", body); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad signature, got %v", resp.Status)
	}
	if resp := post(svc.HandleSubmitTx, "/api/tx", []byte("{")); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad body, got %v", resp.Status)
	}
	if env.relay.Calls != 0 {
		t.Fatalf("Invalid transactions must not be relayed")
	}

	env.relay.Err = &tendermint.TxError{Code: types.CodeBadNonce, Log: "bad nonce"}
	good, _ := json.Marshal(env.sign(env.owner, types.TxMint, types.MintPayload{Asset: types.Utility, To: "bob", Amount: 1}))
	resp := post(svc.HandleSubmitTx, "/api/tx", good)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %v", resp.Status)
	}
	var out struct {
		Code uint32 `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Code != types.CodeBadNonce {
		t.Errorf("Expected code %d, got %d", types.CodeBadNonce, out.Code)
	}

	env.relay.Err = errors.New("connection refused")
	if resp := post(svc.HandleSubmitTx, "/api/tx", good); resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %v", resp.Status)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tx", nil)
	w := httptest.NewRecorder()
	svc.HandleSubmitTx(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestHandleBackup(t *testing.T) {
	svc, env := setupTest(t)
	env.apply(env.owner, types.TxMint, types.MintPayload{Asset: types.Utility, To: "bob", Amount: 1})

	resp := post(svc.HandleBackup, "/api/backup", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", resp.Status)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, err := os.Stat(out["path"]); err != nil {
		t.Errorf("Backup file missing: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/backup", nil)
	w := httptest.NewRecorder()
	svc.HandleBackup(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}
