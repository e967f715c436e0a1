package domain

import "time"

// SenderType is the role a participant holds in a room.
type SenderType string

const (
	SenderOwner   SenderType = "owner"
	SenderVisitor SenderType = "visitor"
)

// Valid reports whether t is a known sender type.
func (t SenderType) Valid() bool {
	return t == SenderOwner || t == SenderVisitor
}

// Room is a private conversation between a profile owner and one visitor.
// VisitorSecret is the only credential a visitor holds; the room id alone
// grants nothing.
type Room struct {
	ID            string
	OwnerID       string
	VisitorSecret string
	VisitorName   string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GroupName is the broadcast group every session of the room joins.
func GroupName(roomID string) string {
	return "chat_" + roomID
}

// Message is one persisted chat line. SenderID is set only for owner
// messages and is cleared when the owning account goes away.
type Message struct {
	ID         string
	RoomID     string
	SenderType SenderType
	SenderID   *string
	Content    string
	CreatedAt  time.Time
}

// Envelope converts m to its outbound wire form.
func (m *Message) Envelope() Envelope {
	return Envelope{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderType: m.SenderType,
		Message:    m.Content,
		CreatedAt:  FormatTimestamp(m.CreatedAt),
	}
}

// TimestampLayout is RFC 3339 with a fixed six-digit fraction, so rendered
// timestamps sort lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// StartChatRequest opens a new room for a profile owner.
type StartChatRequest struct {
	OwnerID     string `json:"owner_id" binding:"required,max=64"`
	VisitorName string `json:"visitor_name" binding:"max=100"`
}

// StartChatResponse is returned once; it is the only place the visitor
// secret is disclosed.
type StartChatResponse struct {
	RoomID       string    `json:"room_id"`
	VisitorToken string    `json:"visitor_token"`
	WSURL        string    `json:"ws_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoomSummary is an owner's view of one room.
type RoomSummary struct {
	ID          string    `json:"id"`
	VisitorName string    `json:"visitor_name,omitempty"`
	Active      bool      `json:"is_active"`
	Online      bool      `json:"online"`
	LastMessage *Envelope `json:"last_message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HistoryQuery pages backwards through a room's messages.
type HistoryQuery struct {
	VisitorToken string `form:"visitor"`
	Before       string `form:"before"` // RFC 3339 timestamp, exclusive
	Limit        int    `form:"limit"`
}

// HistoryPage is a slice of messages in creation order. NextBefore is set
// when older messages remain.
type HistoryPage struct {
	Messages   []Envelope `json:"messages"`
	NextBefore string     `json:"next_before,omitempty"`
}

// Transcript is the archived form of a deactivated room.
type Transcript struct {
	RoomID      string     `json:"room_id"`
	OwnerID     string     `json:"owner_id"`
	VisitorName string     `json:"visitor_name,omitempty"`
	CreatedAt   string     `json:"created_at"`
	ClosedAt    string     `json:"closed_at"`
	Messages    []Envelope `json:"messages"`
}
