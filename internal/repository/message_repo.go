package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quocanhngo/lighttalk/internal/model"
	"gorm.io/gorm"
)

// unreadBatchSize bounds the number of OR groups per unread-count query
const unreadBatchSize = 200

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindInRoom finds a message by id, scoped to a room
func (r *MessageRepository) FindInRoom(ctx context.Context, roomID, messageID int64) (*model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).
		Where("id = ? AND chat_room_id = ?", messageID, roomID).
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListPage returns up to limit messages of a room, newest first, created at
// or after since and with id below the cursor when one is given.
func (r *MessageRepository) ListPage(ctx context.Context, roomID int64, since time.Time, cursor *int64, limit int) ([]model.Message, error) {
	messages := []model.Message{}
	query := r.db.WithContext(ctx).
		Where("chat_room_id = ? AND created_at >= ?", roomID, since).
		Order("id DESC").
		Limit(limit)

	if cursor != nil {
		query = query.Where("id < ?", *cursor)
	}

	err := query.Find(&messages).Error
	return messages, err
}

// FindLastByRoomIDs returns the newest message of each room in one query
func (r *MessageRepository) FindLastByRoomIDs(ctx context.Context, roomIDs []int64) (map[int64]*model.Message, error) {
	last := make(map[int64]*model.Message, len(roomIDs))
	if len(roomIDs) == 0 {
		return last, nil
	}

	latest := r.db.Model(&model.Message{}).
		Select("MAX(id)").
		Where("chat_room_id IN ?", roomIDs).
		Group("chat_room_id")

	var rows []model.Message
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		last[rows[i].ChatRoomID] = &rows[i]
	}
	return last, nil
}

// CountUnread counts messages of one room newer than lastRead and visible
// since joinedAt
func (r *MessageRepository) CountUnread(ctx context.Context, roomID, lastRead int64, joinedAt time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("chat_room_id = ? AND id > ? AND created_at >= ?", roomID, lastRead, joinedAt).
		Count(&count).Error
	return count, err
}

type unreadRow struct {
	ChatRoomID int64
	Unread     int64
}

// CountUnreadBatch counts unread messages for several memberships of the
// same user with one grouped query per batch. Rooms without unread messages
// are absent from the result.
func (r *MessageRepository) CountUnreadBatch(ctx context.Context, memberships []model.ChatMember) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(memberships))
	for start := 0; start < len(memberships); start += unreadBatchSize {
		end := start + unreadBatchSize
		if end > len(memberships) {
			end = len(memberships)
		}
		batch := memberships[start:end]

		conds := make([]string, 0, len(batch))
		args := make([]interface{}, 0, len(batch)*3)
		for _, m := range batch {
			conds = append(conds, "(chat_room_id = ? AND id > ? AND created_at >= ?)")
			args = append(args, m.ChatRoomID, m.LastRead(), m.JoinedAt)
		}

		var rows []unreadRow
		err := r.db.WithContext(ctx).Model(&model.Message{}).
			Select("chat_room_id, COUNT(*) AS unread").
			Where(fmt.Sprintf("(%s)", strings.Join(conds, " OR ")), args...).
			Group("chat_room_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			counts[row.ChatRoomID] = row.Unread
		}
	}
	return counts, nil
}

// CountTotalUnreadByUser sums unread messages over every active membership
// of a user. Used as the push badge.
func (r *MessageRepository) CountTotalUnreadByUser(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Joins("JOIN chat_members cm ON cm.chat_room_id = m.chat_room_id").
		Where("cm.user_id = ? AND cm.left_at IS NULL", userID).
		Where("m.id > COALESCE(cm.last_read_message_id, 0) AND m.created_at >= cm.joined_at").
		Count(&total).Error
	return total, err
}

// SoftDelete marks a message deleted. It reports false when another request
// deleted it first.
func (r *MessageRepository) SoftDelete(ctx context.Context, messageID int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND deleted_at IS NULL", messageID).
		Update("deleted_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
