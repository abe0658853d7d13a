package main

import (
	"encoding/json"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/config"
	"github.com/stakepbft/stakepbft/internal/node"
)

// nodeBus is the set of Kafka-backed producers/consumers a node process
// needs, built once at startup from the --broker flag and the group-prefix
// convention each topic's config section names.
type nodeBus struct {
	usersConsumer *busclient.KafkaConsumer

	stakeProducer *busclient.KafkaProducer

	validatorConsumer *busclient.KafkaConsumer
	primaryConsumer   *busclient.KafkaConsumer
	txConsumer        *busclient.KafkaConsumer

	prePrepareConsumer       *busclient.KafkaConsumer
	prePrepareProducer       *busclient.KafkaProducer
	prePrepareStatusConsumer *busclient.KafkaConsumer

	prepareConsumer       *busclient.KafkaConsumer
	prepareProducer       *busclient.KafkaProducer
	prepareStatusConsumer *busclient.KafkaConsumer

	commitProducer       *busclient.KafkaProducer
	commitStatusConsumer *busclient.KafkaConsumer
}

func buildBus(cfg config.NodeConfig) nodeBus {
	c := cfg.Consumer
	p := cfg.Producer

	newConsumer := func(topic, groupSuffix string) *busclient.KafkaConsumer {
		return busclient.NewKafkaConsumer(brokers, topic, c.GroupPrefix+"-"+groupSuffix, c.AutoOffset)
	}
	newProducer := func() *busclient.KafkaProducer {
		return busclient.NewKafkaProducer(brokers, p.Acks)
	}

	return nodeBus{
		usersConsumer: newConsumer("Users", "users"),

		stakeProducer: newProducer(),

		validatorConsumer: newConsumer("Validators", "validators"),
		primaryConsumer:   newConsumer("Primary", "primary"),
		txConsumer:        newConsumer("Transactions", "transactions"),

		prePrepareConsumer:       newConsumer("Preprepare", "preprepare"),
		prePrepareProducer:       newProducer(),
		prePrepareStatusConsumer: newConsumer("Status", "status-preprepare"),

		prepareConsumer:       newConsumer("Prepare", "prepare"),
		prepareProducer:       newProducer(),
		prepareStatusConsumer: newConsumer("Status", "status-prepare"),

		commitProducer:       newProducer(),
		commitStatusConsumer: newConsumer("Status", "status-commit"),
	}
}

// asNodeBus adapts the Kafka handles built here to the node.Bus interface
// set internal/node drives every round.
func (b nodeBus) asNodeBus() node.Bus {
	return node.Bus{
		StakeProducer: b.stakeProducer,

		ValidatorConsumer: b.validatorConsumer,
		PrimaryConsumer:   b.primaryConsumer,

		TxConsumer: b.txConsumer,

		PrePrepareConsumer:       b.prePrepareConsumer,
		PrePrepareProducer:       b.prePrepareProducer,
		PrePrepareStatusConsumer: b.prePrepareStatusConsumer,

		PrepareConsumer:       b.prepareConsumer,
		PrepareProducer:       b.prepareProducer,
		PrepareStatusConsumer: b.prepareStatusConsumer,

		CommitProducer:       b.commitProducer,
		CommitStatusConsumer: b.commitStatusConsumer,
	}
}

func decodeJSON(payload []byte, dst interface{}) error {
	return json.Unmarshal(payload, dst)
}
