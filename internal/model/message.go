package model

import "time"

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeVideo  MessageType = "VIDEO"
	MessageTypeSystem MessageType = "SYSTEM"
)

// Message is a chat message. The id is the only ordering and cursor key.
// Deleted messages keep their row; DeletedAt marks them.
type Message struct {
	ID         int64       `json:"id" gorm:"primaryKey;index:idx_messages_room_id,priority:2"`
	ChatRoomID int64       `json:"chat_room_id" gorm:"not null;index:idx_messages_room_id,priority:1"`
	SenderID   int64       `json:"sender_id" gorm:"not null;index"`
	Content    string      `json:"content" gorm:"type:text;not null"`
	Type       MessageType `json:"type" gorm:"type:varchar(10);not null"`
	CreatedAt  time.Time   `json:"created_at" gorm:"not null"`
	DeletedAt  *time.Time  `json:"deleted_at"`
}

func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// VisibleContent blanks the content of deleted messages
func (m *Message) VisibleContent() string {
	if m.IsDeleted() {
		return ""
	}
	return m.Content
}
