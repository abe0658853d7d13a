package txn_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stakepbft/stakepbft/internal/txn"
)

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}

	tx := txn.Transaction{
		From:      hex.EncodeToString(pub),
		To:        "recipient",
		Timestamp: 1700000000,
		Amount:    100,
		Fee:       1,
	}

	signed, err := txn.Sign(tx, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.ID == "" {
		t.Error("Sign did not populate ID")
	}
	if signed.Signature == "" {
		t.Error("Sign did not populate Signature")
	}
	if !signed.Verify() {
		t.Error("Verify() = false for a correctly signed transaction")
	}
}

func TestVerify_RejectsTamperedFields(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	tx := txn.Transaction{
		From:   hex.EncodeToString(pub),
		To:     "recipient",
		Amount: 100,
		Fee:    1,
	}
	signed, err := txn.Sign(tx, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(txn.Transaction) txn.Transaction
	}{
		{"amount changed", func(tx txn.Transaction) txn.Transaction { tx.Amount = 999; return tx }},
		{"recipient changed", func(tx txn.Transaction) txn.Transaction { tx.To = "someone-else"; return tx }},
		{"signature corrupted", func(tx txn.Transaction) txn.Transaction { tx.Signature = "00" + tx.Signature[2:]; return tx }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mutated := tc.mutate(signed)
			if mutated.Verify() {
				t.Error("Verify() = true for a tampered transaction")
			}
		})
	}
}

func TestVerify_MalformedEncodingFailsCleanly(t *testing.T) {
	tx := txn.Transaction{From: "not-hex", Signature: "also-not-hex"}
	if tx.Verify() {
		t.Error("Verify() = true for malformed hex fields")
	}
}

func TestTransaction_Equal(t *testing.T) {
	a := txn.Transaction{ID: "1", From: "a", To: "b", Amount: 1, Fee: 0.01, Signature: "sig"}
	b := a
	if !a.Equal(b) {
		t.Error("identical transactions should be Equal")
	}
	b.Amount = 2
	if a.Equal(b) {
		t.Error("transactions differing in Amount should not be Equal")
	}
}

func TestTransaction_Total(t *testing.T) {
	tx := txn.Transaction{Amount: 100, Fee: 1}
	if got := tx.Total(); got != 101 {
		t.Errorf("Total() = %v, want 101", got)
	}
}
