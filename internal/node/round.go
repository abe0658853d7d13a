package node

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stakepbft/stakepbft/internal/consensus"
	"github.com/stakepbft/stakepbft/internal/cryptoutil"
	"github.com/stakepbft/stakepbft/internal/metrics"
	"github.com/stakepbft/stakepbft/internal/stake"
	"github.com/stakepbft/stakepbft/internal/txn"
)

// RunRound executes exactly one pass of this node's per-round data flow:
// propose a stake while discovering the round's validator set
// and primary, pool a block's worth of transactions, then run the
// three-phase PBFT round to extend the chain. It mirrors
// node_pod/src/main.rs's top-level `loop` body, returning the CSV record
// that loop accumulates into `data.csv`.
func (n *Node) RunRound(ctx context.Context, rng *rand.Rand, blockSize int, txTime, pollTimeout time.Duration) (metrics.Record, error) {
	roundStart := time.Now()

	stakingStart := time.Now()
	var validators []stake.Validator
	var primary []stake.Validator

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.proposeStake(gctx, rng) })
	g.Go(func() error {
		vs, err := listenValidators(gctx, n.ValidatorConsumer, pollTimeout)
		validators = vs
		return err
	})
	g.Go(func() error {
		p, err := listenValidators(gctx, n.PrimaryConsumer, pollTimeout)
		primary = p
		return err
	})
	if err := g.Wait(); err != nil {
		return metrics.Record{}, err
	}
	stakingTime := time.Since(stakingStart)

	n.State.Validators = validators
	n.State.Primary = primary

	pkeyStore := make(map[string]*cryptoutil.BLSPublicKey, len(validators))
	for _, v := range validators {
		raw, err := hex.DecodeString(v.PublicKey)
		if err != nil {
			return metrics.Record{}, fmt.Errorf("node: decoding validator %s public key: %w", v.NodeID, err)
		}
		pub, err := cryptoutil.ParseBLSPublicKey(raw)
		if err != nil {
			return metrics.Record{}, fmt.Errorf("node: parsing validator %s public key: %w", v.NodeID, err)
		}
		pkeyStore[v.NodeID] = pub
	}

	pool, poolMetrics, err := n.Pool.RunRound(ctx, n.TxConsumer, blockSize, txTime, pollTimeout)
	if err != nil {
		return metrics.Record{}, err
	}

	consensusStart := time.Now()
	consensusMetrics, err := n.runConsensusRound(ctx, pkeyStore, pool, pollTimeout)
	if err != nil {
		return metrics.Record{}, err
	}
	consensusElapsed := time.Since(consensusStart)

	totalElapsed := time.Since(roundStart)
	blockTPS := 1000 * float64(blockSize) / float64(maxMs(stakingTime+consensusElapsed, time.Millisecond))

	return metrics.Record{
		PoolTPS:           poolMetrics.TPS,
		PoolProcessTimeMs: poolMetrics.ProcessTimeMs,
		FailedTx:          poolMetrics.BadTx,
		TTFMs:             msOf(consensusElapsed) + poolMetrics.TimeToFillMs,
		StakingTimeMs:     msOf(stakingTime),
		PreprepareTimeMs:  msOf(consensusMetrics.preprepareTime),
		PreprepareWaitMs:  msOf(consensusMetrics.preprepareWait),
		PrepareTimeMs:     msOf(consensusMetrics.prepareTime),
		PrepareWaitMs:     msOf(consensusMetrics.prepareWait),
		CommitTimeMs:      msOf(consensusMetrics.commitTime),
		CommitWaitMs:      msOf(consensusMetrics.commitWait),
		BlockTPS:          blockTPS,
		ConsensusTimeMs:   msOf(stakingTime + consensusElapsed),
		TotalTimeMs:       msOf(totalElapsed),
	}, nil
}

type consensusMetrics struct {
	preprepareTime, preprepareWait time.Duration
	prepareTime, prepareWait       time.Duration
	commitTime, commitWait         time.Duration
}

// runConsensusRound drives the PrePrepare -> Prepare -> Commit phase
// machine. Each phase pairs a concurrent listener (collecting that phase's
// broadcast messages) with the readiness barrier + synchronous emission
// work, joined with errgroup — two concurrent consumers interleaved with
// the synchronous phase-emission work, grounded on node_pod/src/node.rs's
// `tokio::spawn(consume_kafka)` + `ready_state` + phase-call + `.await`
// pattern.
func (n *Node) runConsensusRound(ctx context.Context, pkeyStore map[string]*cryptoutil.BLSPublicKey, pool []txn.Transaction, pollTimeout time.Duration) (consensusMetrics, error) {
	var m consensusMetrics

	// --- PrePrepare ---
	prepreStart := time.Now()
	var preprepareMsgs []consensus.NodeMessage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := consensus.CollectMessages(gctx, n.PrePrepareConsumer, n.PrePrepareProducer, n.State.ID, "Preprepare", pollTimeout)
		preprepareMsgs = msgs
		return err
	})
	g.Go(func() error {
		wait, err := consensus.AwaitReady(gctx, n.PrePrepareStatusConsumer, len(n.State.Validators), "Preprepare", pollTimeout)
		m.preprepareWait = wait
		if err != nil {
			return err
		}
		_, err = consensus.PrePreparePhase(gctx, n.State, pool, n.PrePrepareProducer)
		return err
	})
	if err := g.Wait(); err != nil {
		return m, err
	}
	m.preprepareTime = time.Since(prepreStart)

	// --- Prepare ---
	preStart := time.Now()
	var prepareMsgs []consensus.NodeMessage

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := consensus.CollectMessages(gctx, n.PrepareConsumer, n.PrepareProducer, n.State.ID, "Prepare", pollTimeout)
		prepareMsgs = msgs
		return err
	})
	g.Go(func() error {
		wait, err := consensus.AwaitReady(gctx, n.PrepareStatusConsumer, len(n.State.Validators), "Prepare", pollTimeout)
		m.prepareWait = wait
		if err != nil {
			return err
		}
		return consensus.PreparePhase(gctx, n.State, pkeyStore, preprepareMsgs, n.PrepareProducer)
	})
	if err := g.Wait(); err != nil {
		return m, err
	}
	m.prepareTime = time.Since(preStart)

	if len(prepareMsgs) == 0 {
		return m, fmt.Errorf("node: %w", consensus.ErrEmptyPrepareMessages)
	}

	// --- Commit ---
	commitStart := time.Now()
	wait, err := consensus.AwaitReady(ctx, n.CommitStatusConsumer, len(n.State.Validators), "Commit", pollTimeout)
	m.commitWait = wait
	if err != nil {
		return m, err
	}
	if _, err := consensus.CommitPhase(ctx, n.State, pkeyStore, prepareMsgs, n.CommitProducer); err != nil {
		return m, err
	}
	m.commitTime = time.Since(commitStart)

	return m, nil
}

func msOf(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func maxMs(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}
