package consensus

import (
	"context"

	"github.com/stakepbft/stakepbft/internal/busclient"
)

// Broadcast publishes msg on topic, keyed by the sending node's id, and
// flushes. Per the original's broadcast_kafka, broadcasting on the Prepare
// topic additionally pings the Status topic with "Commit": the prepare
// emitter doubles as the thing that arms the commit phase's readiness
// barrier, since no other step would otherwise announce it.
func Broadcast(ctx context.Context, producer busclient.Producer, id, topic string, msg NodeMessage) error {
	payload, err := msg.Serialize()
	if err != nil {
		return err
	}
	if err := producer.Send(ctx, topic, id, payload); err != nil {
		return err
	}
	if err := producer.Flush(ctx); err != nil {
		return err
	}

	if topic == string(Prepare) {
		if err := producer.Send(ctx, "Status", id, []byte("Commit")); err != nil {
			return err
		}
		if err := producer.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}
