package model

import "time"

// User is a registered account. The chat core only reads users; accounts are
// created by the identity service (or the seeder in development).
type User struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	Email           string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash    string    `json:"-" gorm:"size:255"`
	Nickname        string    `json:"nickname" gorm:"size:50;not null"`
	ProfileImageURL *string   `json:"profile_image_url" gorm:"size:500"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
