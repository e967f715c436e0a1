package kafka

import (
	"context"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
)

// EventMessagePersisted is the type of every record on the events topic.
const EventMessagePersisted = "chat.message.persisted"

// MessageProducer publishes persisted chat messages to downstream
// consumers. Delivery is best effort.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, msg *domain.Message) error
	Close() error
}

// MessagePersistedEvent is the record value written for each message.
type MessagePersistedEvent struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	RoomID     string            `json:"room_id"`
	SenderType domain.SenderType `json:"sender_type"`
	SenderID   *string           `json:"sender_id,omitempty"`
	Message    string            `json:"message"`
	CreatedAt  string            `json:"created_at"`
}

func NewMessagePersistedEvent(msg *domain.Message) *MessagePersistedEvent {
	return &MessagePersistedEvent{
		Type:       EventMessagePersisted,
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		SenderType: msg.SenderType,
		SenderID:   msg.SenderID,
		Message:    msg.Content,
		CreatedAt:  domain.FormatTimestamp(msg.CreatedAt),
	}
}

// NoopProducer discards everything. It is used when events are disabled.
type NoopProducer struct{}

func (NoopProducer) ProduceMessage(ctx context.Context, msg *domain.Message) error { return nil }
func (NoopProducer) Close() error                                                  { return nil }

// UserDeletedEvent is published by the account service when a user is
// removed.
type UserDeletedEvent struct {
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

// UserDeletedHandler handles incoming user-deleted events.
type UserDeletedHandler interface {
	HandleUserDeleted(ctx context.Context, userID string) error
}

// UserDeletedConsumer consumes user-deleted events until Close.
type UserDeletedConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
