package txproducer_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/txproducer"
)

func TestPublishUsers_OneMessagePerUser(t *testing.T) {
	users, err := txproducer.MintUsers(5)
	if err != nil {
		t.Fatalf("MintUsers: %v", err)
	}

	broker := busclient.NewMemoryBroker()
	consumer := broker.NewConsumer("Users")
	producer := broker.NewProducer()

	ctx := context.Background()
	if err := txproducer.PublishUsers(ctx, producer, users, 0); err != nil {
		t.Fatalf("PublishUsers: %v", err)
	}

	for i := 0; i < len(users); i++ {
		msg, err := consumer.Poll(ctx, time.Second)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if msg == nil {
			t.Fatalf("expected a Users message, got none at index %d", i)
		}
	}
}

func TestGenerateBatches_DropsTrailingPartialBatch(t *testing.T) {
	users, err := txproducer.MintUsers(10)
	if err != nil {
		t.Fatalf("MintUsers: %v", err)
	}

	rng := rand.New(rand.NewSource(3))
	batches, err := txproducer.GenerateBatches(users, 130, rng)
	if err != nil {
		t.Fatalf("GenerateBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2 complete batches of 64 out of 130", len(batches))
	}
	for _, b := range batches {
		if len(b) != 64 {
			t.Errorf("batch length = %d, want 64", len(b))
		}
		for _, tx := range b {
			if !tx.Verify() {
				t.Errorf("generated transaction %+v does not verify", tx)
			}
		}
	}
}

func TestPublishTransactions_DeliversEveryBatch(t *testing.T) {
	users, err := txproducer.MintUsers(10)
	if err != nil {
		t.Fatalf("MintUsers: %v", err)
	}
	rng := rand.New(rand.NewSource(9))
	batches, err := txproducer.GenerateBatches(users, 64, rng)
	if err != nil {
		t.Fatalf("GenerateBatches: %v", err)
	}

	broker := busclient.NewMemoryBroker()
	consumer := broker.NewConsumer("Transactions")
	producer := broker.NewProducer()

	ctx := context.Background()
	tps, err := txproducer.PublishTransactions(ctx, producer, batches, 0)
	if err != nil {
		t.Fatalf("PublishTransactions: %v", err)
	}
	if tps <= 0 {
		t.Errorf("throughput = %v, want > 0", tps)
	}

	msg, err := consumer.Poll(ctx, time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a Transactions message, got none")
	}
}
