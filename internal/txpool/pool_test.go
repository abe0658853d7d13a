package txpool_test

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stakepbft/stakepbft/internal/busclient"
	"github.com/stakepbft/stakepbft/internal/txn"
	"github.com/stakepbft/stakepbft/internal/txpool"
)

type signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newSigner(t *testing.T) signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	return signer{pub: pub, priv: priv}
}

func (s signer) sign(t *testing.T, to string, amount float64) txn.Transaction {
	t.Helper()
	tx := txn.Transaction{
		From:   hex.EncodeToString(s.pub),
		To:     to,
		Amount: amount,
		Fee:    amount * 0.01,
	}
	signed, err := txn.Sign(tx, s.priv)
	if err != nil {
		t.Fatalf("txn.Sign: %v", err)
	}
	return signed
}

func publishBatch(t *testing.T, producer busclient.Producer, topic string, batch []txn.Transaction) {
	t.Helper()
	payload, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if err := producer.Send(context.Background(), topic, "batch", payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestRunRound_FillsExactlyBlockSize(t *testing.T) {
	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()
	consumer := broker.NewConsumer("Transactions")
	defer consumer.Close()

	alice := newSigner(t)
	userBase := map[string]float64{hex.EncodeToString(alice.pub): 42000}
	pool := txpool.New(userBase)

	const blockSize = 3
	valid := []txn.Transaction{
		alice.sign(t, "bob", 10),
		alice.sign(t, "carol", 20),
		alice.sign(t, "dave", 30),
	}
	extra := alice.sign(t, "erin", 40)

	publishBatch(t, producer, "Transactions", append(append([]txn.Transaction{}, valid...), extra))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, metrics, err := pool.RunRound(ctx, consumer, blockSize, 0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if len(got) != blockSize {
		t.Fatalf("got %d transactions, want %d", len(got), blockSize)
	}
	for i, tx := range got {
		if !tx.Equal(valid[i]) {
			t.Errorf("pool[%d] = %+v, want %+v (arrival order)", i, tx, valid[i])
		}
	}
	if metrics.BadTx != 0 {
		t.Errorf("BadTx = %v, want 0 when every scanned tx up to the fill point is valid", metrics.BadTx)
	}
}

func TestRunRound_SkipsInsufficientBalanceWithoutDebit(t *testing.T) {
	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()
	consumer := broker.NewConsumer("Transactions")
	defer consumer.Close()

	poor := newSigner(t)
	rich := newSigner(t)
	userBase := map[string]float64{
		hex.EncodeToString(poor.pub): 1,
		hex.EncodeToString(rich.pub): 42000,
	}
	pool := txpool.New(userBase)

	tooExpensive := poor.sign(t, "bob", 1000)
	ok1 := rich.sign(t, "bob", 10)
	ok2 := rich.sign(t, "carol", 10)

	publishBatch(t, producer, "Transactions", []txn.Transaction{tooExpensive, ok1, ok2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, _, err := pool.RunRound(ctx, consumer, 2, 0, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("RunRound: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	if got[0].Equal(tooExpensive) || got[1].Equal(tooExpensive) {
		t.Error("the insufficient-balance transaction should have been skipped")
	}
	if userBase[hex.EncodeToString(poor.pub)] != 1 {
		t.Errorf("poor sender's balance mutated on a rejected transaction: %v", userBase[hex.EncodeToString(poor.pub)])
	}
}

func TestRunRound_WaitsAcrossMultipleBatches(t *testing.T) {
	broker := busclient.NewMemoryBroker()
	producer := broker.NewProducer()
	consumer := broker.NewConsumer("Transactions")
	defer consumer.Close()

	s := newSigner(t)
	userBase := map[string]float64{hex.EncodeToString(s.pub): 42000}
	pool := txpool.New(userBase)

	tx1 := s.sign(t, "bob", 10)
	tx2 := s.sign(t, "carol", 10)
	tx3 := s.sign(t, "dave", 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	var got []txn.Transaction
	var runErr error
	go func() {
		got, _, runErr = pool.RunRound(ctx, consumer, 2, 0, 50*time.Millisecond)
		close(done)
	}()

	publishBatch(t, producer, "Transactions", []txn.Transaction{tx1})
	time.Sleep(100 * time.Millisecond)
	// Scanning starts only once the residual holds more than the block size.
	publishBatch(t, producer, "Transactions", []txn.Transaction{tx2, tx3})

	<-done
	if runErr != nil {
		t.Fatalf("RunRound: %v", runErr)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
}
