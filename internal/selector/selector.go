// Package selector implements the validator-selection service: it
// accumulates stake bids off the Stakes topic, samples a validator set
// and primary, and publishes both. Grounded on master_pod/src/main.rs's
// listen_stake and validator_selection.
package selector

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/stake"
)

// bulkCollectionRetryBudget mirrors internal/consensus's budget for the same
// idle-timeout-reopen idiom: a poll timeout with nothing collected yet is
// not a failure, it just keeps listening.
const bulkCollectionRetryBudget = 15

// CollectStakes drains the Stakes topic until `count` bids have arrived,
// re-polling through idle timeouts — the stream is reopened on timeout as
// long as the partial set is non-empty. Once at least one bid has arrived,
// more than bulkCollectionRetryBudget consecutive empty polls end the
// collection early and the partial set is returned. A fully idle stream
// (nothing ever collected) keeps polling indefinitely.
func CollectStakes(ctx context.Context, consumer busclient.Consumer, count int, pollTimeout time.Duration) ([]stake.Stake, error) {
	var stakes []stake.Stake
	retries := 0

	for len(stakes) < count {
		msg, err := consumer.Poll(ctx, pollTimeout)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			if len(stakes) == 0 {
				continue
			}
			retries++
			if retries > bulkCollectionRetryBudget {
				return stakes, nil
			}
			continue
		}

		retries = 0
		s, err := stake.DeserializeStake(msg.Payload)
		if err != nil {
			log.Printf("SELECTOR: failed to decode stake message, skipping: %v", err)
			continue
		}
		stakes = append(stakes, s)

		if err := consumer.CommitMessage(ctx, msg); err != nil {
			return nil, err
		}
	}

	return stakes, nil
}

// RunRound collects exactly `count` stake bids, samples the validator set
// and primary, and publishes both: validators immediately (keyed by
// node_id) and the primary after the pacing delay the original source uses
// between the two publishes.
func RunRound(ctx context.Context, consumer busclient.Consumer, producer busclient.Producer, count int, pollTimeout time.Duration, rng *rand.Rand) error {
	stakes, err := CollectStakes(ctx, consumer, count, pollTimeout)
	if err != nil {
		return err
	}
	if len(stakes) == 0 {
		log.Printf("SELECTOR: no stake bids this round, waiting for the next one")
		return nil
	}
	if len(stakes) != count {
		log.Printf("SELECTOR: collected %d/%d stake bids before the retry budget ran out, skipping round", len(stakes), count)
		return nil
	}

	validators, primary, err := stake.Select(stakes, count, rng)
	if err != nil {
		// All-zero weights are fatal to the round.
		return err
	}

	for _, v := range validators {
		payload, err := v.Serialize()
		if err != nil {
			return err
		}
		if err := producer.Send(ctx, "Validators", v.NodeID, payload); err != nil {
			return err
		}
	}
	if err := producer.Flush(ctx); err != nil {
		return err
	}

	time.Sleep(pollTimeout)

	payload, err := primary.Serialize()
	if err != nil {
		return err
	}
	if err := producer.Send(ctx, "Primary", primary.NodeID, payload); err != nil {
		return err
	}
	return producer.Flush(ctx)
}

// Run drives RunRound forever until ctx is cancelled, logging and continuing
// past a round with an incomplete stake set: waiting for the next interval
// is the correct response, not a fatal error.
func Run(ctx context.Context, consumer busclient.Consumer, producer busclient.Producer, count int, pollTimeout time.Duration) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := RunRound(ctx, consumer, producer, count, pollTimeout, rng); err != nil {
			return err
		}
	}
}
