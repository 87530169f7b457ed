package models

import "time"

// Complaint categories, also the keys of config.ComplaintWeights.
const (
	ComplaintLow      = "Low"
	ComplaintMedium   = "Medium"
	ComplaintCritical = "Critical"
)

const (
	ComplaintStatusNew    = "new"
	ComplaintStatusBanned = "banned"
)

type Complaint struct {
	ID             uint   `gorm:"primaryKey"`
	ReporterID     string `gorm:"index"`
	ReportedUserID string `gorm:"index"`
	RoomID         string
	ComplaintType  string
	Reason         string `gorm:"type:text"`
	Weight         int
	Status         string    `gorm:"index"`
	CreatedAt      time.Time `gorm:"index"`
}
