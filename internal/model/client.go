package model

import (
	"time"

	"gorm.io/gorm"
)

// Client statuses
const (
	ClientStatusLead     = "lead"
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

// Client represents a customer of a business
type Client struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	FirstName  string         `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName   string         `json:"last_name" gorm:"type:varchar(100)"`
	Email      string         `json:"email" gorm:"type:varchar(100);index"`
	Phone      string         `json:"phone" gorm:"type:varchar(30)"`
	Company    string         `json:"company" gorm:"type:varchar(150)"`
	Status     string         `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Address    string         `json:"address" gorm:"type:text"`
	Notes      string         `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// Project statuses
const (
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
)

// Project belongs to a client
type Project struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	ClientID   uint           `json:"client_id" gorm:"index;not null"`
	Name       string         `json:"name" gorm:"type:varchar(150);not null"`
	Status     string         `json:"status" gorm:"type:varchar(20);default:'active'"`
	Budget     float64        `json:"budget"`
	DueDate    *time.Time     `json:"due_date,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// Invoice statuses
const (
	InvoiceStatusDraft   = "draft"
	InvoiceStatusSent    = "sent"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
)

// Invoice belongs to a client
type Invoice struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	ClientID   uint           `json:"client_id" gorm:"index;not null"`
	Number     string         `json:"number" gorm:"type:varchar(50)"`
	Status     string         `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	Total      float64        `json:"total"`
	DueDate    *time.Time     `json:"due_date,omitempty"`
	PaidAt     *time.Time     `json:"paid_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
