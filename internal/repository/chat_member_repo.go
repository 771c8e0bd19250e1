package repository

import (
	"context"
	"time"

	"github.com/quocanhngo/lighttalk/internal/model"
	"gorm.io/gorm"
)

// ChatMemberRepository handles database operations for ChatMember
type ChatMemberRepository struct {
	db *gorm.DB
}

func NewChatMemberRepository(db *gorm.DB) *ChatMemberRepository {
	return &ChatMemberRepository{db: db}
}

// Create inserts membership rows
func (r *ChatMemberRepository) Create(ctx context.Context, members ...*model.ChatMember) error {
	if len(members) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(members).Error
}

// FindActive returns gorm.ErrRecordNotFound when the user never joined or has left
func (r *ChatMemberRepository) FindActive(ctx context.Context, roomID, userID int64) (*model.ChatMember, error) {
	var member model.ChatMember
	err := r.db.WithContext(ctx).
		Where("chat_room_id = ? AND user_id = ? AND left_at IS NULL", roomID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// IsActiveMember reports whether the user currently belongs to the room
func (r *ChatMemberRepository) IsActiveMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("chat_room_id = ? AND user_id = ? AND left_at IS NULL", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// FindActiveByRoom lists active members ordered by join time
func (r *ChatMemberRepository) FindActiveByRoom(ctx context.Context, roomID int64) ([]model.ChatMember, error) {
	members := []model.ChatMember{}
	err := r.db.WithContext(ctx).
		Where("chat_room_id = ? AND left_at IS NULL", roomID).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

// FindActiveByRooms lists active members of several rooms in one query
func (r *ChatMemberRepository) FindActiveByRooms(ctx context.Context, roomIDs []int64) ([]model.ChatMember, error) {
	members := []model.ChatMember{}
	if len(roomIDs) == 0 {
		return members, nil
	}
	err := r.db.WithContext(ctx).
		Where("chat_room_id IN ? AND left_at IS NULL", roomIDs).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, err
}

// FindActiveByUser lists the active memberships of a user
func (r *ChatMemberRepository) FindActiveByUser(ctx context.Context, userID int64) ([]model.ChatMember, error) {
	members := []model.ChatMember{}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND left_at IS NULL", userID).
		Find(&members).Error
	return members, err
}

// FindByRoomAndUsers returns existing rows (active or left) for the given users
func (r *ChatMemberRepository) FindByRoomAndUsers(ctx context.Context, roomID int64, userIDs []int64) ([]model.ChatMember, error) {
	members := []model.ChatMember{}
	if len(userIDs) == 0 {
		return members, nil
	}
	err := r.db.WithContext(ctx).
		Where("chat_room_id = ? AND user_id IN ?", roomID, userIDs).
		Find(&members).Error
	return members, err
}

// ActiveUserIDs returns the user ids of active members
func (r *ChatMemberRepository) ActiveUserIDs(ctx context.Context, roomID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("chat_room_id = ? AND left_at IS NULL", roomID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// CountActive counts active members of a room
func (r *ChatMemberRepository) CountActive(ctx context.Context, roomID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("chat_room_id = ? AND left_at IS NULL", roomID).
		Count(&count).Error
	return count, err
}

// Reactivate brings a left member back as MEMBER. The join time moves to now,
// which hides everything sent before the rejoin.
func (r *ChatMemberRepository) Reactivate(ctx context.Context, memberID int64, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"left_at":   nil,
			"joined_at": now,
			"role":      model.MemberRoleMember,
		}).Error
}

// MarkLeft soft-leaves a membership
func (r *ChatMemberRepository) MarkLeft(ctx context.Context, memberID int64, now time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("id = ? AND left_at IS NULL", memberID).
		Update("left_at", now).Error
}

// UpdateRole changes the role of a membership
func (r *ChatMemberRepository) UpdateRole(ctx context.Context, memberID int64, role model.MemberRole) error {
	return r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("id = ?", memberID).
		Update("role", role).Error
}

// AdvanceLastRead moves the read pointer forward. It never moves backwards,
// even under concurrent calls, and reports whether the pointer changed.
func (r *ChatMemberRepository) AdvanceLastRead(ctx context.Context, roomID, userID, messageID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("chat_room_id = ? AND user_id = ? AND left_at IS NULL", roomID, userID).
		Where("(last_read_message_id IS NULL OR last_read_message_id < ?)", messageID).
		Update("last_read_message_id", messageID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
