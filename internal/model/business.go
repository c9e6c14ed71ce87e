package model

import (
	"time"

	"gorm.io/gorm"
)

// Business is the tenant. Every queryable entity carries a BusinessID and
// every query is filtered by the caller's business.
type Business struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(150);not null"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
