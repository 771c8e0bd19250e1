package model

import "time"

// MemberRole is the role of a member inside a group room
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// ParseMemberRole accepts the wire names OWNER, ADMIN and MEMBER only
func ParseMemberRole(s string) (MemberRole, bool) {
	switch MemberRole(s) {
	case MemberRoleOwner, MemberRoleAdmin, MemberRoleMember:
		return MemberRole(s), true
	}
	return "", false
}

// CanManage reports whether the role may invite members and edit the room
func (r MemberRole) CanManage() bool {
	return r == MemberRoleOwner || r == MemberRoleAdmin
}

// SuccessionRank orders ownership candidates: lower ranks first.
// The owner itself is never a candidate.
func (r MemberRole) SuccessionRank() (int, bool) {
	switch r {
	case MemberRoleAdmin:
		return 0, true
	case MemberRoleMember:
		return 1, true
	}
	return 0, false
}

// ChatMember is the single membership row of a user in a room.
// LeftAt == nil means active. JoinedAt is reset on rejoin and bounds what the
// member can see.
type ChatMember struct {
	ID                int64      `json:"id" gorm:"primaryKey"`
	ChatRoomID        int64      `json:"chat_room_id" gorm:"not null;uniqueIndex:idx_chat_members_room_user"`
	UserID            int64      `json:"user_id" gorm:"not null;uniqueIndex:idx_chat_members_room_user;index"`
	Role              MemberRole `json:"role" gorm:"type:varchar(10);not null"`
	JoinedAt          time.Time  `json:"joined_at" gorm:"not null"`
	LeftAt            *time.Time `json:"left_at"`
	LastReadMessageID *int64     `json:"last_read_message_id"`
}

func (m *ChatMember) IsActive() bool {
	return m.LeftAt == nil
}

// LastRead returns the read pointer, 0 when nothing was read
func (m *ChatMember) LastRead() int64 {
	if m.LastReadMessageID == nil {
		return 0
	}
	return *m.LastReadMessageID
}
