package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/internal/hub"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
	"github.com/Sirojiddin1dev/carinfopro/pkg/pubsub"
)

// Broadcaster fans room traffic out to every session of the room,
// wherever it is connected.
type Broadcaster interface {
	// Publish delivers an encoded envelope to the room's group.
	Publish(ctx context.Context, roomID string, data []byte) error
	// CloseRoom disconnects every session of the room.
	CloseRoom(ctx context.Context, roomID, reason string) error
	// Start begins receiving remote traffic. It returns once ready.
	Start(ctx context.Context) error
	Close() error
}

// LocalBroadcaster delivers within this process only.
type LocalBroadcaster struct {
	hub *hub.Hub
}

func NewLocalBroadcaster(h *hub.Hub) *LocalBroadcaster {
	return &LocalBroadcaster{hub: h}
}

func (b *LocalBroadcaster) Publish(ctx context.Context, roomID string, data []byte) error {
	b.hub.Publish(domain.GroupName(roomID), data)
	return nil
}

func (b *LocalBroadcaster) CloseRoom(ctx context.Context, roomID, reason string) error {
	b.hub.CloseGroup(domain.GroupName(roomID), domain.CloseRoomClosed, reason)
	return nil
}

func (b *LocalBroadcaster) Start(ctx context.Context) error {
	return nil
}

func (b *LocalBroadcaster) Close() error {
	return nil
}

// BusBroadcaster delivers to the local hub directly and relays through a
// pub/sub bus to the other instances. Events that originate here are
// skipped on the way back in.
type BusBroadcaster struct {
	hub        *hub.Hub
	bus        pubsub.PubSub
	instanceID string
}

func NewBusBroadcaster(h *hub.Hub, bus pubsub.PubSub, instanceID string) *BusBroadcaster {
	return &BusBroadcaster{hub: h, bus: bus, instanceID: instanceID}
}

func (b *BusBroadcaster) Publish(ctx context.Context, roomID string, data []byte) error {
	b.hub.Publish(domain.GroupName(roomID), data)

	event := &pubsub.Event{
		Type:      pubsub.EventChatMessage,
		RoomID:    roomID,
		Origin:    b.instanceID,
		Payload:   json.RawMessage(data),
		Timestamp: time.Now().UTC(),
	}
	if err := b.bus.Publish(ctx, pubsub.RoomMessagesChannel(roomID), event); err != nil {
		return fmt.Errorf("relay message: %w", err)
	}
	return nil
}

func (b *BusBroadcaster) CloseRoom(ctx context.Context, roomID, reason string) error {
	b.hub.CloseGroup(domain.GroupName(roomID), domain.CloseRoomClosed, reason)

	event, err := pubsub.NewEvent(pubsub.EventRoomClosed, roomID, pubsub.RoomClosedPayload{RoomID: roomID, Reason: reason})
	if err != nil {
		return err
	}
	event.Origin = b.instanceID
	if err := b.bus.Publish(ctx, pubsub.RoomControlChannel(roomID), event); err != nil {
		return fmt.Errorf("relay room close: %w", err)
	}
	return nil
}

// Start subscribes to room traffic from the bus and relays it to the
// local hub until ctx ends.
func (b *BusBroadcaster) Start(ctx context.Context) error {
	messages, err := b.bus.SubscribePattern(ctx, pubsub.PatternRoomMessages)
	if err != nil {
		return fmt.Errorf("subscribe room messages: %w", err)
	}
	control, err := b.bus.SubscribePattern(ctx, pubsub.PatternRoomControl)
	if err != nil {
		return fmt.Errorf("subscribe room control: %w", err)
	}

	go b.consume(ctx, messages, control)

	l := log.L()
	l.Info().Str(log.FieldInstanceID, b.instanceID).Msg("relay subscribed to room traffic")
	return nil
}

// Close releases the bus.
func (b *BusBroadcaster) Close() error {
	return b.bus.Close()
}

func (b *BusBroadcaster) consume(ctx context.Context, messages, control <-chan *pubsub.Event) {
	for messages != nil || control != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			b.handleMessage(ev)
		case ev, ok := <-control:
			if !ok {
				control = nil
				continue
			}
			b.handleControl(ev)
		}
	}
}

func (b *BusBroadcaster) handleMessage(ev *pubsub.Event) {
	if ev.Origin == b.instanceID || ev.Type != pubsub.EventChatMessage || ev.RoomID == "" {
		return
	}
	b.hub.Publish(domain.GroupName(ev.RoomID), ev.Payload)
}

func (b *BusBroadcaster) handleControl(ev *pubsub.Event) {
	if ev.Origin == b.instanceID || ev.Type != pubsub.EventRoomClosed {
		return
	}

	var payload pubsub.RoomClosedPayload
	if err := ev.UnmarshalPayload(&payload); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRoomID, ev.RoomID).Msg("dropping malformed room control event")
		return
	}
	roomID := payload.RoomID
	if roomID == "" {
		roomID = ev.RoomID
	}

	n := b.hub.CloseGroup(domain.GroupName(roomID), domain.CloseRoomClosed, payload.Reason)
	l := log.L()
	l.Info().Str(log.FieldRoomID, roomID).Int("sessions", n).Msg("closed room sessions on remote request")
}
