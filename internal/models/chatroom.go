package models

import "time"

// ChatRoom is the persisted trace of a 1-on-1 chat session between two users.
// The live pairing is held in memory; this row is written when the session
// starts and closed when it ends.
type ChatRoom struct {
	// RoomID is the session identifier (UUID).
	RoomID string `gorm:"primaryKey"`
	// User1ID is the participant who was waiting.
	User1ID string `gorm:"index"`
	// User2ID is the participant whose request produced the match.
	User2ID string `gorm:"index"`
	// IsActive indicates whether the chat room is currently active.
	IsActive bool `gorm:"index"`
	// StartedAt is the timestamp when the chat room was created.
	StartedAt time.Time
	// EndedAt is the timestamp when the chat room was closed.
	EndedAt *time.Time
	// EndReason is why the chat ended (manual, next, banned, ...).
	EndReason string
	// EndedBy is the participant whose action ended the chat.
	EndedBy string
}
