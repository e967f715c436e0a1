package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
)

var errMissingUserID = errors.New("user-deleted event has no user_id")

// ConfluentConsumer reads user-deleted events and hands them to handler.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  UserDeletedHandler
	doneCh   chan struct{}
}

func NewConfluentConsumer(brokers, topic, groupID string, handler UserDeletedHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	l := log.L()
	l.Info().Str("topic", cc.topic).Msg("user-deleted consumer started")

	go cc.consumeLoop(ctx)
	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := log.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("user-deleted consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("user-deleted consumer error")
				continue
			}

			cc.processMessage(ctx, msg)
		}
	}
}

func (cc *ConfluentConsumer) processMessage(ctx context.Context, msg *kafka.Message) {
	l := log.L()
	if err := handleUserDeleted(ctx, cc.handler, msg.Value); err != nil {
		l.Error().Err(err).Str("key", string(msg.Key)).Msg("failed to handle user-deleted event")
	}
}

func handleUserDeleted(ctx context.Context, handler UserDeletedHandler, value []byte) error {
	var event UserDeletedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal user-deleted event: %w", err)
	}
	if event.UserID == "" {
		return errMissingUserID
	}

	l := log.L()
	l.Info().Str(log.FieldUserID, event.UserID).Msg("received user-deleted event")

	return handler.HandleUserDeleted(ctx, event.UserID)
}

// Close stops the consumer. The context passed to Start must be cancelled
// first so the read loop can exit.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
