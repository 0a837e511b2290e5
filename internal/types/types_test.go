// Package types tests exercise the transaction envelope and the error code
// mapping defined in the `internal/types` package.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"likoin.network/lkn/internal/identity"
)

func TestTransactionSigning(t *testing.T) {
	id, err := identity.LoadOrCreateIdentity(filepath.Join(t.TempDir(), "test_key.pem"))
	if err != nil {
		t.Fatalf("Failed to create test identity: %v", err)
	}

	tx, err := NewTransaction(TxTransfer, 7, TransferPayload{Asset: Utility, To: "bob", Amount: 300})
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	signedTx, err := tx.Sign(id)
	if err != nil {
		t.Fatalf("Failed to sign transaction: %v", err)
	}

	if !signedTx.Verify() {
		t.Error("Failed to verify transaction signature")
	}
	if got := signedTx.Signer(); string(got) != id.PublicKeyHex() {
		t.Errorf("Signer mismatch. Got %s, want %s", got, id.PublicKeyHex())
	}

	extractedTx, err := signedTx.GetTransaction()
	if err != nil {
		t.Fatalf("Failed to extract transaction: %v", err)
	}
	if extractedTx.Type != tx.Type || extractedTx.Nonce != 7 || extractedTx.ID != tx.ID {
		t.Errorf("Transaction mismatch. Got %+v, want %+v", extractedTx, tx)
	}

	var p TransferPayload
	if err := extractedTx.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.Amount != 300 || p.To != "bob" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestTamperedTransactionFailsVerification(t *testing.T) {
	id, err := identity.LoadOrCreateIdentity(filepath.Join(t.TempDir(), "key.pem"))
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	tx, _ := NewTransaction(TxConvert, 0, ConvertPayload{Amount: 100})
	stx, err := tx.Sign(id)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	stx.Tx[len(stx.Tx)-2] ^= 0x01
	if stx.Verify() {
		t.Fatal("tampered transaction verified")
	}

	stx.PublicKey = []byte("short")
	if stx.Verify() {
		t.Fatal("malformed public key verified")
	}
	if hex.EncodeToString(stx.PublicKey) != string(stx.Signer()) {
		t.Fatal("signer should be hex of the public key")
	}
}

func TestCodeOfRoundTrip(t *testing.T) {
	for _, c := range codes {
		wrapped := fmt.Errorf("context: %w", c.err)
		code := CodeOf(wrapped)
		if code != c.code {
			t.Errorf("CodeOf(%v) = %d, want %d", c.err, code, c.code)
		}
		if back := ErrorOf(code); !errors.Is(back, c.err) {
			t.Errorf("ErrorOf(%d) = %v, want %v", code, back, c.err)
		}
	}
	if CodeOf(nil) != CodeTypeOK {
		t.Error("nil error must map to OK")
	}
	if CodeOf(errors.New("boom")) != CodeTypeInvalidTx {
		t.Error("unknown error must map to InvalidTx")
	}
}
