package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Application close codes sent when a connection is refused.
const (
	CloseRoomNotFound = 4404
	CloseForbidden    = 4403
	CloseRoomClosed   = 4410
)

// Server -> client frame types other than the message envelope.
const (
	FrameJoined = "joined"
	FrameError  = "error"
)

// Error codes carried by error frames.
const (
	ErrCodeSendFailed  = "SEND_FAILED"
	ErrCodeRateLimited = "RATE_LIMITED"
)

// Envelope is the broadcast form of a persisted message.
type Envelope struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"room_id"`
	SenderType SenderType `json:"sender_type"`
	Message    string     `json:"message"`
	CreatedAt  string     `json:"created_at"`
}

// JoinedFrame confirms that the session is open and subscribed.
type JoinedFrame struct {
	Type       string     `json:"type"`
	RoomID     string     `json:"room_id"`
	SenderType SenderType `json:"sender_type"`
}

func NewJoinedFrame(roomID string, role SenderType) *JoinedFrame {
	return &JoinedFrame{Type: FrameJoined, RoomID: roomID, SenderType: role}
}

// ErrorFrame is sent to a single session only.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorFrame(code, message string) *ErrorFrame {
	return &ErrorFrame{Type: FrameError, Code: code, Message: message}
}

type inboundFrame struct {
	Message *string `json:"message"`
}

// ParseInbound extracts the trimmed text of a client frame. The frame must
// be a single JSON object with a string "message"; other members are
// ignored. ok is false for anything else, for blank text, and for text
// longer than maxRunes when maxRunes > 0.
func ParseInbound(data []byte, maxRunes int) (text string, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var f inboundFrame
	if err := dec.Decode(&f); err != nil || f.Message == nil {
		return "", false
	}
	if dec.More() {
		return "", false
	}

	text = strings.TrimSpace(*f.Message)
	if text == "" {
		return "", false
	}
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		return "", false
	}
	return text, true
}
