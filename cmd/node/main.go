// Command node runs one consensus-participant process: it proposes a
// stake, discovers the round's validator set and primary, pools
// transactions, and drives the three-phase PBFT round, appending to its
// own copy of the chain every round.
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/config"
	"github.com/stakepbft/stakepbft/internal/consensus"
	"github.com/stakepbft/stakepbft/internal/metrics"
	"github.com/stakepbft/stakepbft/internal/node"
)

var (
	configPath string
	brokers    []string
)

func main() {
	root := &cobra.Command{
		Use:   "node",
		Short: "Run a stake-weighted PBFT consensus participant",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "config.yaml", "path to the node's YAML config file")
	root.Flags().StringSliceVar(&brokers, "broker", []string{"localhost:9092"}, "Kafka bootstrap brokers")

	if err := root.Execute(); err != nil {
		log.Fatalf("node: %v", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "[node] ", log.Ldate|log.Ltime)

	var cfg config.NodeConfig
	if err := config.Load(configPath, &cfg); err != nil {
		return err
	}

	color.New(color.FgCyan, color.Bold).Println("stakepbft node starting")

	bus := buildBus(cfg)

	userBase := make(map[string]float64)
	users, err := listenInitialUsers(cmd.Context(), bus.usersConsumer, cfg.Performance.Timeout())
	if err != nil {
		return err
	}
	for _, u := range users {
		userBase[u.UserID] = u.Balance
	}
	logger.Printf("loaded %d users into the balance ledger", len(userBase))

	n, err := node.New(bus.asNodeBus(), userBase)
	if err != nil {
		return err
	}
	logger.Printf("node identity: %s", n.State.ID)

	metricsWriter, err := metrics.NewWriter(cfg.CSVPath)
	if err != nil {
		return err
	}
	defer metricsWriter.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("caught shutdown signal, cancelling the in-flight round")
		cancel()
	}()

	rng := rand.New(rand.NewSource(int64(os.Getpid())))

	for {
		select {
		case <-ctx.Done():
			logger.Println("shut down gracefully")
			return nil
		default:
		}

		record, err := n.RunRound(ctx, rng, cfg.Performance.BlockSize, cfg.Performance.TxTime(), cfg.Performance.Timeout())
		if err != nil {
			if re, ok := err.(*consensus.RoundError); ok {
				logger.Fatalf("fatal round error, aborting (no partial block committed): %v", re)
			}
			return err
		}
		if err := metricsWriter.Write(record); err != nil {
			logger.Printf("failed to write metrics row: %v", err)
		}
	}
}

// listenInitialUsers blocks until at least one Users batch has been seen and
// then another idle timeout elapses, mirroring node_pod/src/main.rs's
// listen_user one-shot startup collection.
func listenInitialUsers(ctx context.Context, consumer busclient.Consumer, timeout time.Duration) ([]userRecord, error) {
	var out []userRecord
	for {
		msg, err := consumer.Poll(ctx, timeout)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			if len(out) > 0 {
				return out, nil
			}
			continue
		}
		var u userRecord
		if err := decodeJSON(msg.Payload, &u); err != nil {
			continue
		}
		out = append(out, u)
		if err := consumer.CommitMessage(ctx, msg); err != nil {
			return nil, err
		}
	}
}

type userRecord struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}
