package busclient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
)

// KafkaProducer publishes onto one or more Kafka topics over a shared
// broker connection set. It wraps a kafka.Writer per the segmentio/kafka-go
// idiom of one Writer handling any topic named in the message.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer dials brokers and returns a Producer. acks mirrors the
// original's "acks" producer config knob ("all", "1", "0").
func NewKafkaProducer(brokers []string, acks string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: parseAcks(acks),
			Async:        false,
		},
	}
}

func parseAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case "0":
		return kafka.RequireNone
	case "1":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func (p *KafkaProducer) Send(ctx context.Context, topic, key string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
}

// Flush is satisfied by kafka.Writer's synchronous WriteMessages: each Send
// already blocks for RequiredAcks before returning, so there is nothing
// buffered to drain.
func (p *KafkaProducer) Flush(ctx context.Context) error { return nil }

func (p *KafkaProducer) Close() error { return p.writer.Close() }

// KafkaConsumer wraps a kafka.Reader bound to one topic, with its own
// generated consumer-group id so that independent phase-listeners (the
// original's pre-prepare/prepare/commit consumers) never share an offset.
type KafkaConsumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer joins groupPrefix-<uuid> on topic. autoOffsetReset mirrors
// the original's "auto.offset.reset" config knob ("earliest"/"latest").
func NewKafkaConsumer(brokers []string, topic, groupPrefix, autoOffsetReset string) *KafkaConsumer {
	startOffset := kafka.LastOffset
	if autoOffsetReset == "earliest" {
		startOffset = kafka.FirstOffset
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupPrefix + "-" + uuid.NewString(),
			StartOffset: startOffset,
		}),
	}
}

// Poll fetches the next message, bounding the wait by timeout. A timeout
// with nothing available returns (nil, nil): Kafka has no true
// end-of-stream, so every timeout is an idle reopen, never termination.
func (c *KafkaConsumer) Poll(ctx context.Context, timeout time.Duration) (*Message, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.reader.FetchMessage(pollCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	return &Message{
		Topic:     msg.Topic,
		Key:       string(msg.Key),
		Payload:   msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}, nil
}

// CommitMessage acknowledges msg, advancing this consumer group's offset
// under the at-least-once/manual-commit contract.
func (c *KafkaConsumer) CommitMessage(ctx context.Context, msg *Message) error {
	return c.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (c *KafkaConsumer) Close() error { return c.reader.Close() }
