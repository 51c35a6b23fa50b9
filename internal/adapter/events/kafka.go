package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/batsonnoah58/betledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// NewWriter creates a Kafka writer for one topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// messageWriter is the slice of kafka.Writer the publisher needs,
// narrowed for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher implements ports.EventPublisher with one writer per
// topic. Publishing happens after the database commit, so a failed
// publish is logged and dropped rather than failing the request.
type KafkaPublisher struct {
	betPlaced  messageWriter
	betSettled messageWriter
	payments   messageWriter
	log        zerolog.Logger
}

// NewKafkaPublisher creates a publisher over the three domain topics.
func NewKafkaPublisher(betPlaced, betSettled, payments *kafka.Writer, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		betPlaced:  betPlaced,
		betSettled: betSettled,
		payments:   payments,
		log:        log,
	}
}

// BetPlaced publishes a bet_placed event keyed by group id.
func (p *KafkaPublisher) BetPlaced(ctx context.Context, e ports.BetPlacedEvent) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.publish(ctx, p.betPlaced, e.GroupID.String(), e)
}

// BetSettled publishes a bet_settled event keyed by group id.
func (p *KafkaPublisher) BetSettled(ctx context.Context, e ports.BetSettledEvent) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.publish(ctx, p.betSettled, e.GroupID.String(), e)
}

// PaymentConfirmed publishes a payment_confirmed event keyed by gateway ref.
func (p *KafkaPublisher) PaymentConfirmed(ctx context.Context, e ports.PaymentConfirmedEvent) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.publish(ctx, p.payments, e.GatewayRef, e)
}

func (p *KafkaPublisher) publish(ctx context.Context, w messageWriter, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("kafka publish failed")
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// NoopPublisher implements ports.EventPublisher for deployments without
// Kafka.
type NoopPublisher struct{}

func (NoopPublisher) BetPlaced(context.Context, ports.BetPlacedEvent) error   { return nil }
func (NoopPublisher) BetSettled(context.Context, ports.BetSettledEvent) error { return nil }
func (NoopPublisher) PaymentConfirmed(context.Context, ports.PaymentConfirmedEvent) error {
	return nil
}
