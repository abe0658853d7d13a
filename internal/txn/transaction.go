// Package txn defines the Transaction type that flows from the
// transaction-producer process, through the per-node transaction pool, and
// into a committed block.
package txn

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/stakepbft/stakepbft/internal/cryptoutil"
)

// ErrInvalidSignature is returned by Verify when the detached signature
// does not match the transaction's blanked-signature serialization.
var ErrInvalidSignature = errors.New("txn: invalid signature")

// Transaction is the immutable, field-wise-equal unit of value transfer.
// Fee is always 1% of Amount by convention — producers set it, nodes never
// recompute it.
type Transaction struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Timestamp int64   `json:"timestamp"`
	Amount    float64 `json:"amount"`
	Fee       float64 `json:"fee"`
	Signature string  `json:"signature"`
}

// Equal reports field-wise equality.
func (t Transaction) Equal(o Transaction) bool {
	return t.ID == o.ID &&
		t.From == o.From &&
		t.To == o.To &&
		t.Timestamp == o.Timestamp &&
		t.Amount == o.Amount &&
		t.Fee == o.Fee &&
		t.Signature == o.Signature
}

// blankedJSON serializes t with Signature cleared, the exact payload the
// producer signs and the pool/consensus code re-verifies against.
func (t Transaction) blankedJSON() ([]byte, error) {
	t.Signature = ""
	return json.Marshal(t)
}

// SigningPayload returns the bytes a sender's Ed25519 key signs to produce
// Signature.
func (t Transaction) SigningPayload() ([]byte, error) {
	return t.blankedJSON()
}

// Verify checks that Signature is a valid Ed25519 signature, by the sender
// identified by From (hex-encoded public key), over SigningPayload(). A
// malformed From, Signature, or hex encoding is treated as verification
// failure rather than an error — callers skip the transaction either way;
// bad signatures are silently skipped during pooling.
func (t Transaction) Verify() bool {
	pubKeyBytes, err := hex.DecodeString(t.From)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(t.Signature)
	if err != nil {
		return false
	}
	payload, err := t.SigningPayload()
	if err != nil {
		return false
	}
	return cryptoutil.VerifyEd25519(ed25519.PublicKey(pubKeyBytes), payload, sigBytes)
}

// Sign computes the transaction's id and signature from its sender key.
// Used by the transaction-producer when minting sample transactions.
func Sign(t Transaction, priv ed25519.PrivateKey) (Transaction, error) {
	t.Signature = ""
	t.ID = ""
	unsigned, err := json.Marshal(t)
	if err != nil {
		return Transaction{}, err
	}
	idHash := cryptoutil.Sum256(unsigned)
	t.ID = hex.EncodeToString(idHash[:])

	payload, err := t.blankedJSON()
	if err != nil {
		return Transaction{}, err
	}
	sig := ed25519.Sign(priv, payload)
	t.Signature = hex.EncodeToString(sig)
	return t, nil
}

// Total returns Amount+Fee, the balance debit a valid acceptance causes.
func (t Transaction) Total() float64 {
	return t.Amount + t.Fee
}
