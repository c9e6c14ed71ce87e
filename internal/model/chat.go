package model

import (
	"time"

	"gorm.io/gorm"
)

// ChatRoom belongs to a business. Membership is expressed purely through
// ChatParticipant rows; there is no separate ACL.
type ChatRoom struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	Name       string         `json:"name" gorm:"type:varchar(150)"`
	IsDirect   bool           `json:"is_direct" gorm:"default:false"`
	CreatedBy  uint           `json:"created_by" gorm:"index;not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// ChatParticipant links a user to a room. Its existence is the access
// grant for every room and message query.
type ChatParticipant struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	RoomID      uint      `json:"room_id" gorm:"uniqueIndex:idx_room_user;not null"`
	UserID      uint      `json:"user_id" gorm:"uniqueIndex:idx_room_user;not null"`
	IsModerator bool      `json:"is_moderator" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// ChatMessage belongs to a room and an author. SeenAt is set once when the
// recipient marks the room read and never cleared.
type ChatMessage struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	RoomID    uint           `json:"room_id" gorm:"index;not null"`
	SenderID  uint           `json:"sender_id" gorm:"index;not null"`
	Body      string         `json:"body" gorm:"type:text;not null"`
	Type      string         `json:"type" gorm:"type:varchar(20);default:'text'"`
	SeenAt    *time.Time     `json:"seen_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Sender User `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
}
