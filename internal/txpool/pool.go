// Package txpool implements the per-round transaction admission pipeline:
// drain batches off the Transactions topic into a residual buffer,
// validate balance and signature, and fill a block-sized pool.
package txpool

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/txn"
)

// Metrics reports the outcome of one RunRound call.
type Metrics struct {
	TPS            float64 // 1000 * inspected / elapsed-ms
	ProcessTimeMs  float64 // wall-clock spent scanning residual once it exceeded the block size
	BadTx          float64 // inspected - block size: transactions scanned but not admitted
	TimeToFillMs   float64 // elapsed since polling began for the batch that completed the pool
}

// Pool holds the per-node state that persists across rounds: the residual
// buffer and the local view of every user's balance.
type Pool struct {
	UserBase map[string]float64
	residual []txn.Transaction
}

// New returns a Pool seeded with the starting balances published on the
// Users topic at producer startup (see internal/txproducer).
func New(userBase map[string]float64) *Pool {
	if userBase == nil {
		userBase = make(map[string]float64)
	}
	return &Pool{UserBase: userBase}
}

// RunRound consumes batches of transactions from consumer until blockSize
// valid transactions have been accumulated. It blocks until the pool fills
// or ctx is cancelled.
func (p *Pool) RunRound(ctx context.Context, consumer busclient.Consumer, blockSize int, txTime, pollTimeout time.Duration) ([]txn.Transaction, Metrics, error) {
	pool := make([]txn.Transaction, 0, blockSize)
	start := time.Now()

	for {
		ttfStart := time.Now()

		msg, err := consumer.Poll(ctx, pollTimeout)
		if err != nil {
			return nil, Metrics{}, err
		}
		if msg == nil {
			// Idle timeout: not end-of-stream, keep polling.
			continue
		}

		var batch []txn.Transaction
		if err := json.Unmarshal(msg.Payload, &batch); err != nil {
			log.Printf("TXPOOL: failed to decode transaction batch, skipping: %v", err)
			continue
		}

		if txTime > 0 {
			time.Sleep(txTime)
		}

		if err := consumer.CommitMessage(ctx, msg); err != nil {
			log.Printf("TXPOOL: failed to commit message: %v", err)
		}

		p.residual = append(p.residual, batch...)

		if len(p.residual) <= blockSize {
			continue
		}

		scanStart := time.Now()
		var inspected float64
		filled := false

		var i int
		for i = 0; i < len(p.residual); i++ {
			inspected++
			tx := p.residual[i]

			balance := p.UserBase[tx.From]
			if balance < tx.Total() {
				continue
			}
			if !tx.Verify() {
				continue
			}

			p.UserBase[tx.From] = balance - tx.Total()
			pool = append(pool, tx)

			if len(pool) == blockSize {
				filled = true
				i++
				break
			}
		}

		if filled {
			p.residual = append([]txn.Transaction{}, p.residual[i:]...)
			elapsed := time.Since(start).Milliseconds()
			metrics := Metrics{
				TPS:           1000 * inspected / float64(maxInt64(elapsed, 1)),
				ProcessTimeMs: float64(time.Since(scanStart).Milliseconds()),
				BadTx:         inspected - float64(blockSize),
				TimeToFillMs:  float64(time.Since(ttfStart).Milliseconds()),
			}
			return pool, metrics, nil
		}

		// Scanned the whole residual buffer without filling: everything
		// was either consumed into pool or permanently skipped for bad
		// balance/signature, so residual resets empty and we keep polling.
		p.residual = p.residual[:0]
	}
}

func maxInt64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
