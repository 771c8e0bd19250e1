package repository

import (
	"context"

	"github.com/quocanhngo/lighttalk/internal/model"
	"gorm.io/gorm"
)

// ChatRoomRepository handles database operations for ChatRoom
type ChatRoomRepository struct {
	db *gorm.DB
}

func NewChatRoomRepository(db *gorm.DB) *ChatRoomRepository {
	return &ChatRoomRepository{db: db}
}

// Create inserts a new room
func (r *ChatRoomRepository) Create(ctx context.Context, room *model.ChatRoom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// FindByID finds a room by ID
func (r *ChatRoomRepository) FindByID(ctx context.Context, id int64) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByIDForUpdate loads the room and row-locks it until the surrounding
// transaction ends. Room mutations call this first so they serialize per room.
func (r *ChatRoomRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := lockForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// Exists reports whether a room with the given id exists
func (r *ChatRoomRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatRoom{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// FindByIDs loads rooms in one query
func (r *ChatRoomRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.ChatRoom, error) {
	rooms := []model.ChatRoom{}
	if len(ids) == 0 {
		return rooms, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rooms).Error
	return rooms, err
}

// FindDirectBetween finds the direct room of two users regardless of whether
// either of them has left it
func (r *ChatRoomRepository) FindDirectBetween(ctx context.Context, userID1, userID2 int64) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := r.db.WithContext(ctx).
		Table("chat_rooms").
		Select("chat_rooms.*").
		Joins("JOIN chat_members cm1 ON cm1.chat_room_id = chat_rooms.id").
		Joins("JOIN chat_members cm2 ON cm2.chat_room_id = chat_rooms.id").
		Where("chat_rooms.type = ?", model.ChatRoomTypeDirect).
		Where("cm1.user_id = ? AND cm2.user_id = ?", userID1, userID2).
		Order("chat_rooms.id ASC").
		Take(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// UpdateOwner sets or clears the owner of a group room
func (r *ChatRoomRepository) UpdateOwner(ctx context.Context, roomID int64, ownerID *int64) error {
	return r.db.WithContext(ctx).Model(&model.ChatRoom{}).
		Where("id = ?", roomID).
		Update("owner_id", ownerID).Error
}

// UpdateDetails changes name and/or image. Nil arguments are left untouched.
func (r *ChatRoomRepository) UpdateDetails(ctx context.Context, roomID int64, name, imageURL *string) error {
	updates := map[string]interface{}{}
	if name != nil {
		updates["name"] = *name
	}
	if imageURL != nil {
		updates["image_url"] = *imageURL
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.ChatRoom{}).Where("id = ?", roomID).Updates(updates).Error
}
