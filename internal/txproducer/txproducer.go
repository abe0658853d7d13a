// Package txproducer implements the user-simulation/transaction-generation
// process that feeds the consensus network: it mints a pool of users with
// starting balances, publishes them on Users, then mints and publishes
// signed sample transactions in fixed-size batches on Transactions.
// Grounded on transaction_pod/src/main.rs and simulate.rs.
package txproducer

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/txn"
)

// startingBalance is the fixed balance every minted user receives
// (transaction_pod/src/simulate.rs: `balance: 42000.0`).
const startingBalance = 42000.0

// batchSize is the fixed per-message transaction batch size for the
// Transactions topic.
const batchSize = 64

// User is a minted sender identity: its hex-encoded Ed25519 public key
// (the id a Transaction's `from` field references) and its signing key.
type User struct {
	ID      string
	Balance float64
	priv    ed25519.PrivateKey
}

// userMessage is the wire shape published on Users.
type userMessage struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

// MintUsers generates n users with fresh Ed25519 key pairs and the fixed
// starting balance.
func MintUsers(n int) ([]User, error) {
	users := make([]User, 0, n)
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("txproducer: generating user key pair: %w", err)
		}
		users = append(users, User{ID: hex.EncodeToString(pub), Balance: startingBalance, priv: priv})
	}
	return users, nil
}

// PublishUsers sends one Users message per user, keyed "User data", pacing
// sends the way transaction_pod/src/main.rs does (a fixed per-message delay
// so a slow-starting consumer group doesn't drop the burst).
func PublishUsers(ctx context.Context, producer busclient.Producer, users []User, pace time.Duration) error {
	for _, u := range users {
		payload, err := json.Marshal(userMessage{UserID: u.ID, Balance: u.Balance})
		if err != nil {
			return err
		}
		if err := producer.Send(ctx, "Users", "User data", payload); err != nil {
			return err
		}
		if pace > 0 {
			time.Sleep(pace)
		}
	}
	return producer.Flush(ctx)
}

// simulateTransaction mints one signed transaction from sender to a
// uniformly-chosen distinct recipient among users, with a uniform [0,120)
// amount and the 1%-of-amount fee convention.
func simulateTransaction(sender User, users []User, senderIdx int, rng *rand.Rand) (txn.Transaction, error) {
	toIdx := senderIdx
	for toIdx == senderIdx {
		toIdx = rng.Intn(len(users))
	}
	amount := rng.Float64() * 120
	fee := 0.01 * amount

	tx := txn.Transaction{
		From:      sender.ID,
		To:        users[toIdx].ID,
		Timestamp: time.Now().Unix(),
		Amount:    amount,
		Fee:       fee,
	}
	return txn.Sign(tx, sender.priv)
}

// GenerateBatches mints count transactions, senders drawn uniformly from
// users, and groups them into fixed batchSize batches (a trailing partial
// batch is dropped, matching transaction_pod/src/main.rs's `% 64` grouping,
// which only pushes completed batches).
func GenerateBatches(users []User, count int, rng *rand.Rand) ([][]txn.Transaction, error) {
	var batches [][]txn.Transaction
	var current []txn.Transaction

	for i := 0; i < count; i++ {
		senderIdx := rng.Intn(len(users))
		tx, err := simulateTransaction(users[senderIdx], users, senderIdx, rng)
		if err != nil {
			return nil, err
		}
		current = append(current, tx)
		if len(current) == batchSize {
			batches = append(batches, current)
			current = nil
		}
	}
	return batches, nil
}

// PublishTransactions sends each batch as a JSON array on Transactions,
// keyed "transaction data", pacing sends and reporting the
// overall publish throughput at the end (transaction_pod/src/main.rs's
// final `println!("Throughput: {}", ...)` line).
func PublishTransactions(ctx context.Context, producer busclient.Producer, batches [][]txn.Transaction, pace time.Duration) (throughputTxPerSec float64, err error) {
	start := time.Now()
	total := 0
	for _, batch := range batches {
		payload, err := json.Marshal(batch)
		if err != nil {
			return 0, err
		}
		if err := producer.Send(ctx, "Transactions", "transaction data", payload); err != nil {
			return 0, err
		}
		total += len(batch)
		if pace > 0 {
			time.Sleep(pace)
		}
	}
	if err := producer.Flush(ctx); err != nil {
		return 0, err
	}
	elapsedMs := float64(time.Since(start).Milliseconds())
	if elapsedMs == 0 {
		elapsedMs = 1
	}
	return 1000 * float64(total) / elapsedMs, nil
}
