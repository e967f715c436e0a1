package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelToTopicAndKey(t *testing.T) {
	topic, key, err := channelToTopicAndKey(RoomMessagesChannel("room-1"))
	require.NoError(t, err)
	assert.Equal(t, "chat-messages", topic)
	assert.Equal(t, "room-1", key)

	topic, key, err = channelToTopicAndKey(RoomControlChannel("room-2"))
	require.NoError(t, err)
	assert.Equal(t, "chat-control", topic)
	assert.Equal(t, "room-2", key)
}

func TestChannelToTopicAndKey_Invalid(t *testing.T) {
	for _, ch := range []string{"", "chat", "chat:room:x", "chat:lobby:x:messages", "chat:room::messages"} {
		_, _, err := channelToTopicAndKey(ch)
		assert.Error(t, err, ch)
	}
}

func TestPatternToTopic(t *testing.T) {
	topic, err := patternToTopic(PatternRoomMessages)
	require.NoError(t, err)
	assert.Equal(t, "chat-messages", topic)

	topic, err = patternToTopic(PatternRoomControl)
	require.NoError(t, err)
	assert.Equal(t, "chat-control", topic)
}

func TestSanitizeGroupID(t *testing.T) {
	assert.Equal(t, "chat-relay-chat-room---messages", sanitizeGroupID("chat-relay-chat:room:*:messages"))
}
