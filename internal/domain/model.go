package domain

import "time"

// RoomModel is the GORM model for the chat_rooms table.
type RoomModel struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	OwnerID       string    `gorm:"type:varchar(64);index;not null"`
	VisitorSecret string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	VisitorName   string    `gorm:"type:varchar(100)"`
	Active        bool      `gorm:"index;not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"index;not null"`
}

func (RoomModel) TableName() string {
	return "chat_rooms"
}

func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		VisitorSecret: m.VisitorSecret,
		VisitorName:   m.VisitorName,
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		VisitorSecret: r.VisitorSecret,
		VisitorName:   r.VisitorName,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	ID         string    `gorm:"type:varchar(40);primaryKey"`
	RoomID     string    `gorm:"type:varchar(36);not null;index:idx_chat_messages_room_created,priority:1"`
	SenderType string    `gorm:"type:varchar(10);not null"`
	SenderID   *string   `gorm:"type:varchar(64);index"`
	Content    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index:idx_chat_messages_room_created,priority:2"`
}

func (MessageModel) TableName() string {
	return "chat_messages"
}

func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderType: SenderType(m.SenderType),
		SenderID:   m.SenderID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}

func MessageToModel(m *Message) *MessageModel {
	return &MessageModel{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderType: string(m.SenderType),
		SenderID:   m.SenderID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
