package repository

import (
	"context"
	"time"

	"github.com/quocanhngo/lighttalk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository stores push tokens
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert registers a token. A token that moves to another account is
// reassigned to that account.
func (r *DeviceRepository) Upsert(ctx context.Context, userID int64, token, deviceType string, now time.Time) error {
	if deviceType == "" {
		deviceType = "unknown"
	}
	device := model.UserDevice{
		UserID:       userID,
		FCMToken:     token,
		DeviceType:   deviceType,
		LastActiveAt: now,
		CreatedAt:    now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fcm_token"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"user_id":        userID,
			"device_type":    deviceType,
			"last_active_at": now,
		}),
	}).Create(&device).Error
}

// TokensByUserID returns every push token of a user
func (r *DeviceRepository) TokensByUserID(ctx context.Context, userID int64) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&model.UserDevice{}).
		Where("user_id = ?", userID).
		Order("last_active_at DESC").
		Pluck("fcm_token", &tokens).Error
	return tokens, err
}

// DeleteTokens removes tokens the push provider reported as unregistered
func (r *DeviceRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("fcm_token IN ?", tokens).Delete(&model.UserDevice{}).Error
}
