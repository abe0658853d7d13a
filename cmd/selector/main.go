// Command selector runs the validator-selection service: it accumulates
// one round's stake bids, samples a validator set and primary weighted by
// stake, and publishes both for the node fleet to pick up.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/config"
	"github.com/stakepbft/stakepbft/internal/selector"
)

var (
	configPath string
	brokers    []string
)

func main() {
	root := &cobra.Command{
		Use:   "selector",
		Short: "Run the stake-weighted validator-selection service",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "config.yaml", "path to the selector's YAML config file")
	root.Flags().StringSliceVar(&brokers, "broker", []string{"localhost:9092"}, "Kafka bootstrap brokers")

	if err := root.Execute(); err != nil {
		log.Fatalf("selector: %v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "[selector] ", log.Ldate|log.Ltime)

	var cfg config.SelectorConfig
	if err := config.Load(configPath, &cfg); err != nil {
		return err
	}

	color.New(color.FgGreen, color.Bold).Println("stakepbft selector starting")

	consumer := busclient.NewKafkaConsumer(brokers, "Stakes", cfg.Consumer.GroupPrefix+"-stakes", cfg.Consumer.AutoOffset)
	producer := busclient.NewKafkaProducer(brokers, cfg.Producer.Acks)
	defer consumer.Close()
	defer producer.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("caught shutdown signal")
		cancel()
	}()

	logger.Printf("sampling %d validators per round", cfg.Staking.Validators)
	err := selector.Run(ctx, consumer, producer, cfg.Staking.Validators, cfg.Performance.Timeout())
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Println("shut down gracefully")
	return nil
}
