package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes JSON payloads, one writer per topic.
// Durability and acks are the broker's at-least-once contract.
type KafkaPublisher struct {
	brokers   []string
	log       *zap.Logger
	newWriter func(topic string) MessageWriter

	mu      sync.Mutex
	writers map[string]MessageWriter
}

func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaPublisher(brokers []string, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		brokers: brokers,
		log:     log,
		writers: map[string]MessageWriter{},
	}
	p.newWriter = func(topic string) MessageWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(p.brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		}
	}
	return p
}

func (p *KafkaPublisher) writer(topic string) MessageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = p.newWriter(topic)
		p.writers[topic] = w
	}
	return w
}

// Publish serializes payload as JSON. key is the partition key (order id).
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(topic)},
		},
	}
	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debug("event published", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close writer %s: %w", topic, err)
		}
	}
	p.writers = map[string]MessageWriter{}
	return firstErr
}

// DisabledPublisher is used when no brokers are configured.
type DisabledPublisher struct {
	log *zap.Logger
}

func NewDisabledPublisher(log *zap.Logger) *DisabledPublisher {
	return &DisabledPublisher{log: log}
}

func (p *DisabledPublisher) Publish(ctx context.Context, topic string, key string, payload any) error {
	p.log.Debug("kafka disabled, event dropped", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *DisabledPublisher) Close() error { return nil }
