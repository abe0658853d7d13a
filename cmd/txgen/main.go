// Command txgen mints a pool of simulated users and publishes signed
// sample transactions against them, feeding the node fleet's per-round
// transaction pools.
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/config"
	"github.com/stakepbft/stakepbft/internal/txproducer"
)

var configPath string
var brokers []string

func main() {
	root := &cobra.Command{
		Use:   "txgen",
		Short: "Mint simulated users and publish sample transactions",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "config.yaml", "path to txgen's YAML config file")
	root.Flags().StringSliceVar(&brokers, "broker", []string{"localhost:9092"}, "Kafka bootstrap brokers")

	if err := root.Execute(); err != nil {
		log.Fatalf("txgen: %v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "[txgen] ", log.Ldate|log.Ltime)

	var cfg config.ProducerProcessConfig
	if err := config.Load(configPath, &cfg); err != nil {
		return err
	}

	color.New(color.FgYellow, color.Bold).Println("stakepbft txgen starting")

	producer := busclient.NewKafkaProducer(brokers, cfg.Producer.Acks)
	defer producer.Close()

	ctx := cmd.Context()
	pace := time.Duration(cfg.UserThrottleMs) * time.Millisecond

	users, err := txproducer.MintUsers(cfg.UserSize)
	if err != nil {
		return err
	}
	logger.Printf("minted %d users", len(users))

	if err := txproducer.PublishUsers(ctx, producer, users, pace); err != nil {
		return err
	}
	logger.Println("published user base")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	batches, err := txproducer.GenerateBatches(users, cfg.TxSize, rng)
	if err != nil {
		return err
	}
	logger.Printf("generated %d transaction batches", len(batches))

	tps, err := txproducer.PublishTransactions(ctx, producer, batches, pace)
	if err != nil {
		return err
	}
	logger.Printf("published %d batches at %.2f tx/s", len(batches), tps)
	return nil
}
