package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a staff member of a business. Users are provisioned
// externally; this layer only updates profile fields and passwords.
type User struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	Email      string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password   string         `json:"-" gorm:"type:varchar(255)"`
	Active     bool           `json:"active" gorm:"default:true"`
	Name       string         `json:"name" gorm:"type:varchar(100)"`
	Phone      string         `json:"phone" gorm:"type:varchar(30)"`
	Bio        string         `json:"bio" gorm:"type:text"`
	Position   string         `json:"position" gorm:"type:varchar(100)"`
	AvatarURL  string         `json:"avatar_url" gorm:"type:varchar(255)"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	Business Business `json:"business,omitempty" gorm:"foreignKey:BusinessID"`
}
