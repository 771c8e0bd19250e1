package model

import "time"

// ChatRoomType distinguishes 1:1 rooms from group rooms
type ChatRoomType string

const (
	ChatRoomTypeDirect ChatRoomType = "DIRECT"
	ChatRoomTypeGroup  ChatRoomType = "GROUP"
)

// DirectChatMaxMembers is fixed; a direct room always has exactly two membership rows.
const DirectChatMaxMembers = 2

// ChatRoom is a direct or group conversation.
// Name and OwnerID are only set for GROUP rooms. OwnerID becomes nil when the
// last member of a group leaves.
type ChatRoom struct {
	ID         int64        `json:"id" gorm:"primaryKey"`
	Type       ChatRoomType `json:"type" gorm:"type:varchar(10);not null"`
	Name       *string      `json:"name" gorm:"size:100"`
	ImageURL   *string      `json:"image_url" gorm:"size:500"`
	OwnerID    *int64       `json:"owner_id" gorm:"index"`
	MaxMembers int          `json:"max_members" gorm:"not null"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (r *ChatRoom) IsGroup() bool {
	return r.Type == ChatRoomTypeGroup
}

// DisplayName returns the group name, or an empty string for direct rooms
func (r *ChatRoom) DisplayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}
