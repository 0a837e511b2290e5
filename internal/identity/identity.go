// Package identity manages the ed25519 keypairs that identify callers of the
// Likoin network. A caller's address is the hex encoding of its public key;
// the ABCI application derives it from the signer of each transaction, so
// the state machines never handle keys themselves.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Identity is a loaded signing key.
type Identity struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    string
}

// NewIdentity wraps a private key.
func NewIdentity(privKey ed25519.PrivateKey) *Identity {
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey: privKey,
		publicKey:  pubKey,
		address:    hex.EncodeToString(pubKey),
	}
}

// Generate creates an identity that is not persisted anywhere. Useful for
// tests and throwaway accounts.
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewIdentity(priv), nil
}

// LoadOrCreateIdentity loads the PEM (PKCS8) key at keyPath, generating and
// saving a new one with 0600 permissions when the file is missing or empty.
func LoadOrCreateIdentity(keyPath string) (*Identity, error) {
	info, err := os.Stat(keyPath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		id, err := Generate()
		if err != nil {
			return nil, err
		}
		if err := id.Save(keyPath); err != nil {
			return nil, err
		}
		return id, nil
	}
	if err != nil {
		return nil, err
	}
	return Load(keyPath)
}

// Load reads an existing key file.
func Load(keyPath string) (*Identity, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to decode PEM block from key file")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an ed25519 private key")
	}
	return NewIdentity(priv), nil
}

// Save writes the private key to keyPath in PEM format.
func (i *Identity) Save(keyPath string) error {
	der, err := x509.MarshalPKCS8PrivateKey(i.privateKey)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Sign signs message with the private key.
func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.privateKey, message)
}

// Verify checks signature against this identity's public key.
func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.publicKey, message, signature)
}

// PublicKey returns the raw public key
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// PublicKeyHex returns the caller address, the hex-encoded public key.
func (i *Identity) PublicKeyHex() string {
	return i.address
}

// VerifyAddress verifies a signature made by the holder of address.
func VerifyAddress(address string, message, signature []byte) bool {
	pub, err := hex.DecodeString(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, signature)
}
