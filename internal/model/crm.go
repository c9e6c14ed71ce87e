package model

import (
	"time"

	"gorm.io/gorm"
)

// Lead statuses
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusLost      = "lost"
)

// Lead is a prospective client
type Lead struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	BusinessID  uint           `json:"business_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"type:varchar(150);not null"`
	Email       string         `json:"email" gorm:"type:varchar(100)"`
	Phone       string         `json:"phone" gorm:"type:varchar(30)"`
	Source      string         `json:"source" gorm:"type:varchar(50)"`
	Status      string         `json:"status" gorm:"type:varchar(20);default:'new';index"`
	ClientID    *uint          `json:"client_id,omitempty" gorm:"index"` // set on conversion
	ConvertedAt *time.Time     `json:"converted_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// Task statuses
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// Task is assigned to a staff member
type Task struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	BusinessID  uint           `json:"business_id" gorm:"index;not null"`
	AssigneeID  uint           `json:"assignee_id" gorm:"index"`
	Title       string         `json:"title" gorm:"type:varchar(200);not null"`
	Status      string         `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Priority    string         `json:"priority" gorm:"type:varchar(20);default:'normal'"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
