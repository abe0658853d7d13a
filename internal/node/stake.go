package node

import (
	"context"
	"math/rand"
	"time"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/stake"
)

// stakeMin and stakeMax are the Uniform[10,500) bounds for a node's
// per-round self-bid.
const (
	stakeMin = 10.0
	stakeMax = 500.0
)

// validatorListenRetryBudget bounds how long a node waits for the selector
// to publish anything at all before giving up on this round's validator set
// (the same bulk-collection retry budget used elsewhere, reused here).
const validatorListenRetryBudget = 15

// proposeStake draws a fresh stake amount, overwrites n's recorded stake,
// and fire-and-forget publishes (id, stake) on Stakes.
func (n *Node) proposeStake(ctx context.Context, rng *rand.Rand) error {
	amount := stakeMin + rng.Float64()*(stakeMax-stakeMin)

	n.mu.Lock()
	n.stake = amount
	n.mu.Unlock()

	bid := stake.Stake{NodeID: n.State.ID, Stake: amount}
	payload, err := bid.Serialize()
	if err != nil {
		return err
	}
	if err := n.StakeProducer.Send(ctx, "Stakes", "Node Stake", payload); err != nil {
		return err
	}
	return n.StakeProducer.Flush(ctx)
}

// listenValidators drains consumer until idle for more than
// validatorListenRetryBudget consecutive polls, the same reopen-on-idle
// idiom consensus.CollectMessages and selector.CollectStakes use.
func listenValidators(ctx context.Context, consumer busclient.Consumer, pollTimeout time.Duration) ([]stake.Validator, error) {
	var out []stake.Validator
	idleRetries := 0
	for {
		msg, err := consumer.Poll(ctx, pollTimeout)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			idleRetries++
			if idleRetries > validatorListenRetryBudget {
				return out, nil
			}
			continue
		}
		idleRetries = 0
		v, err := stake.DeserializeValidator(msg.Payload)
		if err != nil {
			continue
		}
		out = append(out, v)
		if err := consumer.CommitMessage(ctx, msg); err != nil {
			return nil, err
		}
	}
}
