// Package node orchestrates one consensus participant's per-round work:
// stake proposal, validator/primary discovery, transaction pooling, and the
// three-phase PBFT round, tying together internal/stake, internal/txpool,
// and internal/consensus the way node_pod/src/node.rs's `main` loop and
// `NodeMethods` impl do.
package node

import (
	"encoding/hex"
	"sync"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/chain"
	"github.com/stakepbft/stakepbft/internal/consensus"
	"github.com/stakepbft/stakepbft/internal/cryptoutil"
	"github.com/stakepbft/stakepbft/internal/txpool"
)

// Bus bundles the topic-scoped producer/consumer handles a node needs for
// one round. Every field is a distinct consumer group, mirroring
// node_pod/src/main.rs's per-topic ClientConfig builders.
type Bus struct {
	StakeProducer busclient.Producer

	ValidatorConsumer busclient.Consumer
	PrimaryConsumer   busclient.Consumer

	TxConsumer busclient.Consumer

	PrePrepareConsumer       busclient.Consumer
	PrePrepareProducer       busclient.Producer
	PrePrepareStatusConsumer busclient.Consumer

	PrepareConsumer       busclient.Consumer
	PrepareProducer       busclient.Producer
	PrepareStatusConsumer busclient.Consumer

	CommitProducer       busclient.Producer
	CommitStatusConsumer busclient.Consumer
}

// Node is the persistent per-process state: identity, chain, current
// round's stake/validators/primary, and the transaction pool carried across
// rounds.
type Node struct {
	State *consensus.State
	Pool  *txpool.Pool

	mu    sync.Mutex
	stake float64

	Bus
}

// New creates a fresh node: a new BLS keypair, a chain seeded with genesis,
// and an empty transaction pool over userBase: a node is created once with
// a freshly generated key pair and a fresh chain containing only the
// genesis block.
func New(bus Bus, userBase map[string]float64) (*Node, error) {
	priv, pub, err := cryptoutil.GenerateBLSKeyPair()
	if err != nil {
		return nil, err
	}
	id := hex.EncodeToString(pub.Bytes())

	bc, err := chain.New()
	if err != nil {
		return nil, err
	}

	return &Node{
		State: consensus.NewState(id, priv, bc),
		Pool:  txpool.New(userBase),
		Bus:   bus,
	}, nil
}
