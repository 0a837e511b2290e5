package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"likoin.network/lkn/internal/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildPayloads(t *testing.T) {
	self := types.Address("me")
	byUse := make(map[string]txDef)
	for _, s := range txDefs {
		byUse[strings.Fields(s.use)[0]] = s
	}

	cases := []struct {
		cmd  string
		args []string
		want interface{}
	}{
		{"mint", []string{"utility", "bob", "5"}, types.MintPayload{Asset: types.Utility, To: "bob", Amount: 5}},
		{"transfer", []string{"Settlement", "bob", "0"}, types.TransferPayload{Asset: types.Settlement, To: "bob", Amount: 0}},
		{"buy", []string{"3"}, types.BuyPayload{Beneficiary: self, Payment: 3}},
		{"buy", []string{"3", "carol"}, types.BuyPayload{Beneficiary: "carol", Payment: 3}},
		{"add-cashier", []string{"till"}, types.RolePayload{Address: "till"}},
		{"register-resource", []string{"1", "5000", "Test", "room"}, types.RegisterResourcePayload{ResourceID: 1, InitialPrice: 5000, Description: "Test room"}},
		{"change-vote", []string{"0", "2"}, types.VotePayload{ProposalID: 0, Suggestion: 2}},
		{"purchase", []string{"1"}, types.PurchasePayload{ResourceID: 1, Buyer: self}},
	}
	for _, c := range cases {
		got, err := byUse[c.cmd].build(self, c.args)
		if err != nil {
			t.Errorf("%s %v: %v", c.cmd, c.args, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s %v: got %+v, want %+v", c.cmd, c.args, got, c.want)
		}
	}

	if _, err := byUse["mint"].build(self, []string{"gold", "bob", "1"}); err == nil {
		t.Error("expected unknown asset to fail")
	}
	if _, err := byUse["vote"].build(self, []string{"0", "-1"}); err == nil {
		t.Error("expected negative suggestion index to fail")
	}
	if len(txDefs) != 14 {
		t.Errorf("expected a subcommand per transaction type, got %d", len(txDefs))
	}
}

func TestKeygenAndAddress(t *testing.T) {
	key := filepath.Join(t.TempDir(), "key.pem")

	addr, err := run(t, "keygen", "--key", key)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	again, err := run(t, "address", "--key", key)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if addr != again || len(strings.TrimSpace(addr)) != 64 {
		t.Fatalf("address mismatch: %q vs %q", addr, again)
	}
	if _, err := run(t, "keygen", "--key", key); err == nil {
		t.Fatal("keygen must not overwrite an existing key")
	}
}

func TestTxReadsNonceAndBroadcasts(t *testing.T) {
	key := filepath.Join(t.TempDir(), "key.pem")
	if _, err := run(t, "keygen", "--key", key); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	var sent types.Transaction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string            `json:"method"`
			Params map[string]string `json:"params"`
		}
		json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "abci_query":
			value := base64.StdEncoding.EncodeToString([]byte(`{"nonce":4}`))
			io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"response":{"code":0,"value":"`+value+`"}}}`)
		case "broadcast_tx_commit":
			raw, _ := base64.StdEncoding.DecodeString(req.Params["tx"])
			var stx types.SignedTransaction
			json.Unmarshal(raw, &stx)
			if tx, err := stx.GetTransaction(); err == nil {
				sent = *tx
			}
			io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"hash":"AA","height":"9","check_tx":{"code":0},"deliver_tx":{"code":0,"log":"ok"}}}`)
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}))
	defer srv.Close()

	out, err := run(t, "tx", "convert", "10", "--key", key, "--rpc", srv.URL, "--nonce", "-1", "--commit")
	if err != nil {
		t.Fatalf("tx convert: %v", err)
	}
	if sent.Type != types.TxConvert || sent.Nonce != 4 {
		t.Fatalf("unexpected transaction sent: %+v", sent)
	}
	var res struct {
		Hash   string `json:"hash"`
		Height int64  `json:"height"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.Hash != "AA" || res.Height != 9 {
		t.Fatalf("unexpected output %q: %v", out, err)
	}
}
