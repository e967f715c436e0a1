package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"message":"hi"}`, "hi", true},
		{"trimmed", `{"message":"  hello \n"}`, "hello", true},
		{"blank", `{"message":"   "}`, "", false},
		{"empty", `{"message":""}`, "", false},
		{"missing field", `{}`, "", false},
		{"null", `{"message":null}`, "", false},
		{"number", `{"message":42}`, "", false},
		{"extra field ignored", `{"message":"hi","type":"chat"}`, "hi", true},
		{"extra field without message", `{"type":"chat"}`, "", false},
		{"not json", `hi`, "", false},
		{"array", `["hi"]`, "", false},
		{"trailing value", `{"message":"hi"}{"message":"again"}`, "", false},
		{"too long", `{"message":"abcdef"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInbound([]byte(tt.in), 5)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessageEnvelope(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 120000, time.FixedZone("UZT", 5*3600))
	m := &Message{ID: "m1", RoomID: "r1", SenderType: SenderVisitor, Content: "hi", CreatedAt: ts}

	data, err := json.Marshal(m.Envelope())
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":"m1","room_id":"r1","sender_type":"visitor","message":"hi","created_at":"2026-01-01T22:04:05.000120Z"}`,
		string(data))
}

func TestFormatTimestamp_SortsLikeTime(t *testing.T) {
	base := time.Date(2026, 3, 4, 5, 6, 5, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(120 * time.Millisecond),
		base.Add(120*time.Millisecond + 7*time.Microsecond),
		base.Add(time.Second),
	}

	for i := 1; i < len(times); i++ {
		prev, next := FormatTimestamp(times[i-1]), FormatTimestamp(times[i])
		assert.Less(t, prev, next)
		assert.Len(t, next, len(prev))
	}
	assert.Equal(t, "2026-03-04T05:06:05.000000Z", FormatTimestamp(base))

	parsed, err := time.Parse(time.RFC3339Nano, FormatTimestamp(times[3]))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(times[3]))
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "chat_abc", GroupName("abc"))
}
