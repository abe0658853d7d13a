// Package config loads the per-process YAML configuration every runnable
// binary (node, selector, txgen) reads at startup, in the idiom of
// sanketsaagar-Litechain's internal/config: a typed struct decoded once
// with gopkg.in/yaml.v3 from a path given on the command line.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsumerConfig mirrors the original's per-process Kafka consumer knobs
// (master_pod/node_pod `ConsumerConfig`): broker address and the
// auto-commit / offset-reset / acks policy honored on first attach.
type ConsumerConfig struct {
	Server       string `yaml:"server"`
	AutoCommit   bool   `yaml:"autocommit"`
	AutoOffset   string `yaml:"autooffset"`
	Acks         string `yaml:"acks"`
	GroupPrefix  string `yaml:"group_prefix"`
}

// ProducerConfig mirrors the original's batch/linger/compression tuning
// knobs, carried even though kafka-go exposes them slightly differently
// than rdkafka.
type ProducerConfig struct {
	Server          string `yaml:"server"`
	AutoCommit      bool   `yaml:"autocommit"`
	BatchSize       int    `yaml:"batchsize"`
	LingerMs        int    `yaml:"lingerms"`
	CompressionType string `yaml:"compressiontype"`
	Acks            string `yaml:"acks"`
}

// PerformanceConfig holds the round-pacing knobs every process reads: the
// bounded idle timeout used at every suspension point, the artificial
// per-batch transaction delay, and the deterministic block size.
type PerformanceConfig struct {
	TimeoutMs  int `yaml:"timeout_ms"`
	TxTimeMs   int `yaml:"tx_time_ms"`
	BlockSize  int `yaml:"block_size"`
}

func (p PerformanceConfig) Timeout() time.Duration { return time.Duration(p.TimeoutMs) * time.Millisecond }
func (p PerformanceConfig) TxTime() time.Duration  { return time.Duration(p.TxTimeMs) * time.Millisecond }

// StakingConfig names the validator-set size the selector samples down to.
type StakingConfig struct {
	Validators int `yaml:"validators"`
}

// NodeConfig is the config shape `cmd/node` loads: consumer/producer bus
// settings plus the performance/staking knobs the consensus and pooling
// loops read every round.
type NodeConfig struct {
	Consumer    ConsumerConfig    `yaml:"consumer"`
	Producer    ProducerConfig    `yaml:"producer"`
	Performance PerformanceConfig `yaml:"performance"`
	Staking     StakingConfig     `yaml:"staking"`
	CSVPath     string            `yaml:"csv_path"`
}

// SelectorConfig is the config shape `cmd/selector` loads, matching
// master_pod/src/main.rs's `Config`.
type SelectorConfig struct {
	Consumer    ConsumerConfig    `yaml:"consumer"`
	Producer    ProducerConfig    `yaml:"producer"`
	Performance PerformanceConfig `yaml:"performance"`
	Staking     StakingConfig     `yaml:"staking"`
}

// ProducerProcessConfig is the config shape `cmd/txgen` loads, matching
// transaction_pod/src/main.rs's `Config`: user pool size, sample
// transaction count, and the producer bus settings.
type ProducerProcessConfig struct {
	UserThrottleMs int            `yaml:"user_thro"`
	UserSize       int            `yaml:"user_size"`
	TxSize         int            `yaml:"tx_size"`
	Producer       ProducerConfig `yaml:"producer"`
}

// Load reads and decodes the YAML file at path into dst.
func Load(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}
