package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Platform values for User.Platform.
const (
	PlatformTelegram  = "telegram"
	PlatformWebSocket = "websocket"
)

// User is a participant known to the service. Gender and Interests are
// recorded for the profile only and never influence pairing.
type User struct {
	ID         string         `gorm:"primaryKey" json:"id"` // telegram chat id or anonymous UUID
	Platform   string         `gorm:"type:text;not null;default:telegram" json:"platform"`
	TelegramID int64          `gorm:"index" json:"telegram_id,omitempty"`
	Username   string         `json:"username,omitempty"`
	Language   string         `gorm:"type:text;default:en" json:"language,omitempty"`
	Gender     string         `json:"gender,omitempty"`
	Interests  pq.StringArray `gorm:"type:text[]" json:"interests,omitempty"`
	FirstSeen  time.Time      `json:"first_seen"`
	LastSeen   time.Time      `json:"last_seen"`
}

// BeforeCreate is a GORM hook that assigns a UUID to anonymous users created
// without an ID.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
