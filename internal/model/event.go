package model

import (
	"fmt"
	"time"
)

// Destination prefixes understood by the connection gateway
const (
	RoomTopicPrefix = "/topic/chat/"
	UserQueuePrefix = "/queue/user/"
)

// RoomTopic is the broadcast destination of a room
func RoomTopic(roomID int64) string {
	return fmt.Sprintf("%s%d", RoomTopicPrefix, roomID)
}

// UserQueue is the private destination of a user
func UserQueue(userID int64) string {
	return fmt.Sprintf("%s%d", UserQueuePrefix, userID)
}

// EventType is the discriminant of every real-time event
type EventType string

const (
	EventNewMessage      EventType = "NEW_MESSAGE"
	EventMessageDeleted  EventType = "MESSAGE_DELETED"
	EventReadReceipt     EventType = "READ_RECEIPT"
	EventMemberJoined    EventType = "MEMBER_JOINED"
	EventMemberLeft      EventType = "MEMBER_LEFT"
	EventChatRoomUpdated EventType = "CHAT_ROOM_UPDATED"
	EventRoleChanged     EventType = "ROLE_CHANGED"
)

// ChatEvent is the JSON body pushed to subscribers. Only the fields relevant
// to Type are set.
type ChatEvent struct {
	Type              EventType        `json:"type"`
	ChatRoomID        int64            `json:"chat_room_id"`
	Message           *MessageResponse `json:"message,omitempty"`
	MessageID         int64            `json:"message_id,omitempty"`
	UserID            int64            `json:"user_id,omitempty"`
	LastReadMessageID int64            `json:"last_read_message_id,omitempty"`
	ReadAt            *time.Time       `json:"read_at,omitempty"`
	Members           []ChatMemberInfo `json:"members,omitempty"`
	NewOwnerID        *int64           `json:"new_owner_id,omitempty"`
	Name              *string          `json:"name,omitempty"`
	ImageURL          *string          `json:"image_url,omitempty"`
	NewRole           MemberRole       `json:"new_role,omitempty"`
}

func NewMessageEvent(msg MessageResponse) ChatEvent {
	return ChatEvent{Type: EventNewMessage, ChatRoomID: msg.ChatRoomID, Message: &msg}
}

func MessageDeletedEvent(roomID, messageID int64) ChatEvent {
	return ChatEvent{Type: EventMessageDeleted, ChatRoomID: roomID, MessageID: messageID}
}

func ReadReceiptEvent(roomID, userID, lastReadMessageID int64, readAt time.Time) ChatEvent {
	return ChatEvent{
		Type:              EventReadReceipt,
		ChatRoomID:        roomID,
		UserID:            userID,
		LastReadMessageID: lastReadMessageID,
		ReadAt:            &readAt,
	}
}

func MemberJoinedEvent(roomID int64, members []ChatMemberInfo) ChatEvent {
	return ChatEvent{Type: EventMemberJoined, ChatRoomID: roomID, Members: members}
}

func MemberLeftEvent(roomID, userID int64, newOwnerID *int64) ChatEvent {
	return ChatEvent{Type: EventMemberLeft, ChatRoomID: roomID, UserID: userID, NewOwnerID: newOwnerID}
}

func ChatRoomUpdatedEvent(roomID int64, name, imageURL *string) ChatEvent {
	return ChatEvent{Type: EventChatRoomUpdated, ChatRoomID: roomID, Name: name, ImageURL: imageURL}
}

func RoleChangedEvent(roomID, userID int64, role MemberRole) ChatEvent {
	return ChatEvent{Type: EventRoleChanged, ChatRoomID: roomID, UserID: userID, NewRole: role}
}
