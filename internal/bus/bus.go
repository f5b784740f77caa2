// Package bus provides a typed publish/subscribe wrapper over a partitioned
// Kafka log. Payloads are JSON-serialized; the partition key is always the
// envelope's source_id so that per-user ordering is preserved end to end.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher publishes JSON envelopes to a single Kafka topic.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Publisher for the given topic. It eagerly creates
// the topic (idempotent) so a fresh environment doesn't need out-of-band
// provisioning.
func NewPublisher(brokerURL, topic string, logger *slog.Logger) (*Publisher, error) {
	if err := ensureTopic(brokerURL, topic); err != nil {
		logger.Warn("could not ensure topic exists", "topic", topic, "error", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerURL),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{writer: writer, logger: logger}, nil
}

func ensureTopic(brokerURL, topic string) error {
	conn, err := kafka.Dial("tcp", brokerURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     6,
		ReplicationFactor: 1,
	})
	if err != nil && err != kafka.TopicAlreadyExists {
		return err
	}
	return nil
}

// Publish JSON-encodes payload and appends it to the topic keyed by
// sourceID. Writes only append, so a new envelope never overwrites an
// earlier one for the same source_id.
func (p *Publisher) Publish(ctx context.Context, sourceID int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: encode payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", sourceID)),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("bus: write message: %w", err)
	}
	return nil
}

// Close releases the underlying writer's connections.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Handler processes one decoded message. It must run to completion before
// the Consumer advances the partition offset; a non-nil error is logged
// and the message is still considered handled: its offset is committed and
// it is not redelivered, and no stage retries it.
type Handler func(ctx context.Context, sourceID int64, raw []byte) error

// Consumer reads a single topic under a consumer group and runs handler
// single-threaded per partition: the next message on a partition is only
// fetched after the previous handler returns.
type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewConsumer creates a Consumer. Startup offset policy is earliest for
// new consumer groups, matching the bus client's contract.
func NewConsumer(brokerURL, topic, groupID string, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{brokerURL},
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &Consumer{reader: reader, logger: logger}
}

// Run blocks reading messages until ctx is canceled, invoking handler for
// each and committing the offset only after the handler returns.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("bus: fetch failed", "error", err)
			continue
		}

		sourceID := parseSourceIDFromKey(msg.Key)

		if err := handler(ctx, sourceID, msg.Value); err != nil {
			c.logger.Error("bus: handler failed, dropping message",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("bus: commit failed", "error", err)
		}
	}
}

func parseSourceIDFromKey(key []byte) int64 {
	var n int64
	for _, b := range key {
		if b < '0' || b > '9' {
			return 0
		}
		n = n*10 + int64(b-'0')
	}
	return n
}

// Close releases the underlying reader's connections.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeOrOpaque unmarshals raw into dst. On failure it logs the raw bytes
// as an opaque string and returns false instead of propagating the error,
// matching the bus client's "decode failure passes raw bytes to the
// handler" contract — callers treat a false return as a dropped message.
func DecodeOrOpaque(logger *slog.Logger, raw []byte, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Error("bus: envelope decode failed, dropping", "raw", string(raw), "error", err)
		return false
	}
	return true
}
