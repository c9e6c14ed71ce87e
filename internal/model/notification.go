package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification targets a single user within a business. The read flag is
// monotonic: once set, ReadAt never changes.
type Notification struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	UserID     uint           `json:"user_id" gorm:"index;not null"`
	Type       string         `json:"type" gorm:"type:varchar(50);index"`
	Title      string         `json:"title" gorm:"type:varchar(200)"`
	Content    string         `json:"content" gorm:"type:text"`
	Read       bool           `json:"read" gorm:"default:false;index"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
