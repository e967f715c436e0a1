package pubsub

import "fmt"

// Channel layout is {prefix}:room:{roomID}:{suffix}. The Kafka driver maps
// it to topic "{prefix}-{suffix}" keyed by room id.
const (
	ChannelRoomMessages = "chat:room:%s:messages"
	ChannelRoomControl  = "chat:room:%s:control"

	PatternRoomMessages = "chat:room:*:messages"
	PatternRoomControl  = "chat:room:*:control"
)

// Event types.
const (
	EventChatMessage = "chat_message"
	EventRoomClosed  = "room_closed"
)

// RoomMessagesChannel carries broadcast envelopes for one room.
func RoomMessagesChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomMessages, roomID)
}

// RoomControlChannel carries room lifecycle events for one room.
func RoomControlChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomControl, roomID)
}

// RoomClosedPayload is published when a room is deactivated.
type RoomClosedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}
