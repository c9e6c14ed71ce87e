package model

import (
	"time"

	"gorm.io/gorm"
)

// AccessToken is the opaque bearer credential attached to every
// authenticated request. It is resolved by database lookup, never decoded.
type AccessToken struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	Token      string         `json:"-" gorm:"uniqueIndex"` // Never expose the actual token in JSON responses
	UserID     uint           `json:"user_id" gorm:"index;not null"`
	BusinessID uint           `json:"business_id" gorm:"index;not null"`
	DeviceName string         `json:"device_name" gorm:"type:varchar(100)"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Revoked    bool           `json:"revoked" gorm:"default:false"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook will be called before creating a new AccessToken record
func (t *AccessToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = generateSecureID("tok_")
	}
	if t.Token == "" {
		t.Token = generateSecureToken()
	}
	return nil
}

// IsExpired checks if the token is expired
func (t *AccessToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid checks if the token is valid (not expired and not revoked)
func (t *AccessToken) IsValid() bool {
	return !t.Revoked && !t.IsExpired()
}

// RefreshToken is the longer-lived credential paired one-to-one with an
// access token. Its only use is minting a new pair; it is rotated on use.
type RefreshToken struct {
	ID            string         `gorm:"primaryKey" json:"id"`
	Token         string         `json:"-" gorm:"uniqueIndex"` // Never expose the actual token in JSON responses
	AccessTokenID string         `json:"access_token_id" gorm:"index"`
	UserID        uint           `json:"user_id" gorm:"index;not null"`
	BusinessID    uint           `json:"business_id" gorm:"index;not null"`
	DeviceName    string         `json:"device_name" gorm:"type:varchar(100)"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Revoked       bool           `json:"revoked" gorm:"default:false"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook will be called before creating a new RefreshToken record
func (t *RefreshToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = generateSecureID("ref_")
	}
	if t.Token == "" {
		t.Token = generateSecureToken()
	}
	return nil
}

// IsExpired checks if the token is expired
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid checks if the token is valid (not expired and not revoked)
func (t *RefreshToken) IsValid() bool {
	return !t.Revoked && !t.IsExpired()
}
