package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"likoin.network/lkn/internal/identity"
)

// TransactionType names the state transition a transaction requests.
type TransactionType string

const (
	TxAddMinter        TransactionType = "add_minter"
	TxMint             TransactionType = "mint"
	TxTransfer         TransactionType = "transfer"
	TxConvert          TransactionType = "convert"
	TxBuy              TransactionType = "buy"
	TxAddCashier       TransactionType = "add_cashier"
	TxAddRegistrar     TransactionType = "add_registrar"
	TxAddExecutor      TransactionType = "add_executor"
	TxRegisterResource TransactionType = "register_resource"
	TxSuggest          TransactionType = "suggest"
	TxVote             TransactionType = "vote"
	TxChangeVote       TransactionType = "change_vote"
	TxExecute          TransactionType = "execute"
	TxPurchase         TransactionType = "purchase"
)

// Transaction is the unsigned body of a state transition. Nonce must equal
// the signer's next expected nonce; it prevents replay of committed txs.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Nonce     uint64          `json:"nonce"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// SignedTransaction carries the encoded Transaction, the signer's public key
// and an ed25519 signature over Tx.
type SignedTransaction struct {
	Tx        []byte `json:"tx"`
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// NewTransaction builds a transaction with a fresh id for the given payload.
func NewTransaction(txType TransactionType, nonce uint64, payload interface{}) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		ID:        uuid.New().String(),
		Type:      txType,
		Nonce:     nonce,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Sign encodes the transaction and signs it with id.
func (t *Transaction) Sign(id *identity.Identity) (*SignedTransaction, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	body, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Tx:        body,
		PublicKey: []byte(id.PublicKey()),
		Signature: id.Sign(body),
	}, nil
}

// Verify checks the signature against the embedded public key.
func (s *SignedTransaction) Verify() bool {
	if len(s.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(s.PublicKey), s.Tx, s.Signature)
}

// Signer returns the caller address of the transaction.
func (s *SignedTransaction) Signer() Address {
	return Address(hex.EncodeToString(s.PublicKey))
}

// GetTransaction decodes the inner transaction.
func (s *SignedTransaction) GetTransaction() (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(s.Tx, &tx); err != nil {
		return nil, err
	}
	if tx.Type == "" {
		return nil, errors.New("transaction type missing")
	}
	return &tx, nil
}

// DecodePayload unmarshals the payload into v.
func (t *Transaction) DecodePayload(v interface{}) error {
	if len(t.Payload) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(t.Payload, v)
}

// Payloads, one per transaction type.

type AddMinterPayload struct {
	Asset  AssetKind `json:"asset"`
	Minter Address   `json:"minter"`
}

type MintPayload struct {
	Asset  AssetKind `json:"asset"`
	To     Address   `json:"to"`
	Amount uint64    `json:"amount"`
}

type TransferPayload struct {
	Asset  AssetKind `json:"asset"`
	To     Address   `json:"to"`
	Amount uint64    `json:"amount"`
}

type ConvertPayload struct {
	Amount uint64 `json:"amount"`
}

// BuyPayload is the crowdsale purchase. Payment is the amount the signing
// cashier received off ledger.
type BuyPayload struct {
	Beneficiary Address `json:"beneficiary"`
	Payment     uint64  `json:"payment"`
}

// RolePayload grants a role: registrar, executor or cashier.
type RolePayload struct {
	Address Address `json:"address"`
}

type RegisterResourcePayload struct {
	ResourceID   uint64 `json:"resource_id"`
	Description  string `json:"description"`
	InitialPrice uint64 `json:"initial_price"`
}

type SuggestPayload struct {
	ProposalID uint64 `json:"proposal_id"`
	Price      uint64 `json:"price"`
}

type VotePayload struct {
	ProposalID uint64 `json:"proposal_id"`
	Suggestion int    `json:"suggestion"`
}

type ExecutePayload struct {
	ProposalID uint64 `json:"proposal_id"`
}

type PurchasePayload struct {
	ResourceID uint64  `json:"resource_id"`
	Buyer      Address `json:"buyer"`
}
