package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"likoin.network/lkn/internal/discovery"
	"likoin.network/lkn/internal/types"
)

func TestHandleHealth(t *testing.T) {
	svc, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	svc.HandleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Status)
	}
}

func TestHandleVersion(t *testing.T) {
	svc, env := setupTest(t)
	env.apply(env.owner, types.TxMint, types.MintPayload{Asset: types.Utility, To: "bob", Amount: 1})

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	w := httptest.NewRecorder()

	svc.HandleVersion(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["version"] != types.Version {
		t.Errorf("Expected version %s, got %s", types.Version, body["version"])
	}
	if body["height"] != "1" {
		t.Errorf("Expected height 1, got %s", body["height"])
	}
	if body["app_hash"] == "" {
		t.Error("Expected an app hash after the first commit")
	}
	if body["id"] != env.owner.PublicKeyHex() {
		t.Errorf("Expected node id %s, got %s", env.owner.PublicKeyHex(), body["id"])
	}
}

func TestRegisterRoutes(t *testing.T) {
	svc, _ := setupTest(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Status)
	}
}

type stubPeers []discovery.Peer

func (p stubPeers) Peers() []discovery.Peer { return p }

func TestHandlePeers(t *testing.T) {
	svc, _ := setupTest(t)

	var peers []discovery.Peer
	if code := get(t, svc.HandlePeers, "/api/peers", &peers); code != http.StatusOK || len(peers) != 0 {
		t.Fatalf("Expected an empty list without discovery, got %d %v", code, peers)
	}

	svc.opts.Peers = stubPeers{{Instance: "node-2", Address: "beef", P2PPort: 26656}}
	get(t, svc.HandlePeers, "/api/peers", &peers)
	if len(peers) != 1 || peers[0].Address != "beef" {
		t.Errorf("Unexpected peers: %+v", peers)
	}
}
