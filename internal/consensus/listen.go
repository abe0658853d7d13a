package consensus

import (
	"context"
	"time"

	"github.com/stakepbft/stakepbft/internal/busclient"
)

// bulkCollectionRetryBudget and readinessRetryBudget bound how many
// consecutive idle polls a listener tolerates before giving up.
const (
	bulkCollectionRetryBudget = 15
	readinessRetryBudget      = 5
)

// CollectMessages drains topic until idle for more than the retry budget,
// pinging Status with the topic name on its first poll so peers know this
// node is listening (the original's "announce we're listening" idiom —
// AwaitReady's barrier on the other end is what actually blocks on it).
// An idle timeout with nothing collected yet is not a failure — it keeps
// polling indefinitely; the retry budget only bites once at least one
// message has arrived, so a burst of messages followed by silence ends the
// collection instead of hanging forever.
func CollectMessages(ctx context.Context, consumer busclient.Consumer, producer busclient.Producer, selfID, topic string, pollTimeout time.Duration) ([]NodeMessage, error) {
	if err := producer.Send(ctx, "Status", selfID, []byte(topic)); err != nil {
		return nil, err
	}
	if err := producer.Flush(ctx); err != nil {
		return nil, err
	}

	var collected []NodeMessage
	retries := 0

	for {
		msg, err := consumer.Poll(ctx, pollTimeout)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			if len(collected) == 0 {
				continue
			}
			retries++
			if retries > bulkCollectionRetryBudget {
				break
			}
			continue
		}

		retries = 0
		nm, err := DeserializeMessage(msg.Payload)
		if err != nil {
			return nil, err
		}
		collected = append(collected, nm)

		if err := consumer.CommitMessage(ctx, msg); err != nil {
			return nil, err
		}
	}

	return collected, nil
}

// AwaitReady blocks until threshold status pings naming topic have arrived
// on the Status stream, or the readiness retry budget is exhausted — the
// cross-node soft barrier used to align the start of each phase. Exhausting
// the retry budget is fatal to the round: it comes back as a *RoundError
// wrapping ErrNotReady.
func AwaitReady(ctx context.Context, statusConsumer busclient.Consumer, threshold int, topic string, pollTimeout time.Duration) (time.Duration, error) {
	start := time.Now()
	seen := 0
	retries := 0

	for {
		if seen == threshold {
			return time.Since(start), nil
		}

		msg, err := statusConsumer.Poll(ctx, pollTimeout)
		if err != nil {
			return 0, err
		}
		if msg == nil {
			if seen == 0 {
				continue
			}
			retries++
			if retries > readinessRetryBudget {
				break
			}
			continue
		}

		if string(msg.Payload) == topic {
			seen++
		}
	}

	return 0, fatal(ErrNotReady)
}
