package busclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBroker is an in-process, channel-based stand-in for the Kafka-like
// bus, grounded on a SimulatedNetwork-style in-memory fan-out. Unlike a
// two-channel simulation, topics here are keyed fan-out registries, because
// this system has many distinct topics (Stakes, Validators, Primary,
// Transactions, Users, Preprepare, Prepare, Commit, Status) each with
// independent subscribers.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string][]*memorySubscription
}

// NewMemoryBroker returns an empty broker. Use it as a shared handle: every
// Producer/Consumer built from it talks to the same topic registry.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string][]*memorySubscription)}
}

type memorySubscription struct {
	id     string
	ch     chan Message
	closed chan struct{}
	once   sync.Once
}

// Subscribe registers a new independent subscriber on topic, identified by a
// generated group suffix (the Go analogue of the original's ad hoc
// `id.clone() + "pre"` per-phase consumer-group naming, made collision-free
// with a real UUID rather than a string-concatenation convention).
func (b *MemoryBroker) Subscribe(topic string) *memorySubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &memorySubscription{
		id:     uuid.NewString(),
		ch:     make(chan Message, 256),
		closed: make(chan struct{}),
	}
	b.topics[topic] = append(b.topics[topic], sub)
	return sub
}

func (b *MemoryBroker) publish(topic string, msg Message) {
	b.mu.Lock()
	subs := append([]*memorySubscription{}, b.topics[topic]...)
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- msg:
		case <-s.closed:
		}
	}
}

// NewProducer returns a Producer that publishes onto this broker.
func (b *MemoryBroker) NewProducer() Producer {
	return &memoryProducer{broker: b}
}

// NewConsumer returns a Consumer subscribed to topic.
func (b *MemoryBroker) NewConsumer(topic string) Consumer {
	return &memoryConsumer{sub: b.Subscribe(topic), broker: b, topic: topic}
}

type memoryProducer struct {
	broker *MemoryBroker
	mu     sync.Mutex
	closed bool
}

func (p *memoryProducer) Send(ctx context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	p.broker.publish(topic, Message{Topic: topic, Key: key, Payload: payload})
	return nil
}

// Flush is a no-op: publish is synchronous fan-out, nothing to drain.
func (p *memoryProducer) Flush(ctx context.Context) error { return nil }

func (p *memoryProducer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type memoryConsumer struct {
	sub    *memorySubscription
	broker *MemoryBroker
	topic  string
}

// Poll blocks for up to timeout waiting for the next message. A timeout with
// nothing delivered returns (nil, nil) — per the package doc, this is not
// end-of-stream; the caller reopens by polling again under the
// stream-reopen-on-idle-timeout idiom every listener in this system uses.
func (c *memoryConsumer) Poll(ctx context.Context, timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-c.sub.ch:
		if !ok {
			return nil, nil
		}
		return &msg, nil
	case <-timer.C:
		return nil, nil
	case <-c.sub.closed:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CommitMessage is a no-op on the in-memory broker: there is no persisted
// offset to advance, each subscription's channel already delivers each
// message to that subscriber exactly once.
func (c *memoryConsumer) CommitMessage(ctx context.Context, msg *Message) error {
	return nil
}

func (c *memoryConsumer) Close() error {
	c.sub.once.Do(func() { close(c.sub.closed) })
	return nil
}
