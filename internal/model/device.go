package model

import "time"

// UserDevice is a push token registered by one of the user's devices
type UserDevice struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	UserID       int64     `json:"user_id" gorm:"not null;index"`
	FCMToken     string    `json:"fcm_token" gorm:"size:512;not null;uniqueIndex"`
	DeviceType   string    `json:"device_type" gorm:"size:20;default:'unknown'"` // android, ios, web
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}
