package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"mempool-flow/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer used by Kafka.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes trades as JSON messages keyed by mint, so trades of one
// mint stay ordered within a partition.
type Kafka struct {
	mint   string
	writer MessageWriter
}

// NewKafkaWriter builds a hash-balanced writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafka creates a Kafka sink.
func NewKafka(mint string, writer MessageWriter) *Kafka {
	return &Kafka{mint: mint, writer: writer}
}

// Emit writes the batch in one call.
func (k *Kafka) Emit(ctx context.Context, trades []domain.InferredTrade) error {
	if len(trades) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, len(trades))
	for i, t := range trades {
		data, err := json.Marshal(NewTradeMessage(k.mint, t))
		if err != nil {
			return fmt.Errorf("marshal trade: %w", err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(k.mint),
			Value: data,
			Time:  t.Time,
		}
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write kafka messages: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
