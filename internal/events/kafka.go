package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaRelay forwards committed events to a kafka topic. Emit only enqueues;
// the Run loop does the actual produce so a slow broker can never hold a
// ledger transaction open.
type KafkaRelay struct {
	client *kgo.Client
	topic  string
	inbox  chan Event
	logger *slog.Logger
}

// NewKafkaRelay connects to the brokers and makes sure the topic exists.
func NewKafkaRelay(brokers []string, topic string, logger *slog.Logger) (*KafkaRelay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	_, err = adm.CreateTopic(context.Background(), 1, 1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}

	return &KafkaRelay{
		client: client,
		topic:  topic,
		inbox:  make(chan Event, 1024),
		logger: logger,
	}, nil
}

// Emit enqueues the event for the relay loop. It never blocks the caller's
// transaction; if the inbox is full the event is dropped with a warning (the
// authoritative record of the transition is the store, not the stream).
func (r *KafkaRelay) Emit(ctx context.Context, event Event) error {
	select {
	case r.inbox <- event:
	default:
		r.logger.WarnContext(ctx, "event inbox full, dropping event",
			"type", string(event.Type),
			"deposit_id", event.DepositID.String(),
		)
	}
	return nil
}

// Run drains the inbox until the context is cancelled.
func (r *KafkaRelay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-r.inbox:
			payload, err := json.Marshal(event)
			if err != nil {
				r.logger.ErrorContext(ctx, "marshal event", "error", err)
				continue
			}
			record := &kgo.Record{
				Key:   []byte(event.DepositID.String()),
				Value: payload,
			}
			if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
				r.logger.ErrorContext(ctx, "produce event",
					"type", string(event.Type),
					"error", err,
				)
			}
		}
	}
}

// Close releases the kafka client.
func (r *KafkaRelay) Close() {
	r.client.Close()
}
