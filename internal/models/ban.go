package models

import "time"

// BanRecord is a time-bounded restriction on one participant. A subject has at
// most one record; a new ban replaces the old one.
type BanRecord struct {
	SubjectID string    `gorm:"primaryKey" json:"subject_id"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Reason    string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the ban is still in force at now.
func (b BanRecord) Active(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}

// Remaining returns how long the ban still lasts, never negative.
func (b BanRecord) Remaining(now time.Time) time.Duration {
	if d := b.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
