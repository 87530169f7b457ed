package config

import (
	"strangerchat/backend/internal/models"
	"time"
)

const (
	// Automatic bans: the weighted sum of open complaints in the window.
	BanThresholdWeight = 250
	BanFrequencyWindow = 24 * time.Hour

	// Escalation: a repeat offender within the window gets the next level.
	BanLevel1Duration   = 30 * time.Minute
	BanLevel2Duration   = 6 * time.Hour
	BanLevel3Duration   = 24 * time.Hour
	BanRepeatWindow     = 7 * 24 * time.Hour
	BanEscalationWindow = 30 * 24 * time.Hour

	DefaultHeartbeatInterval  = 60 * time.Second
	DefaultAllowedMissedBeats = 3
)

var ComplaintWeights = map[string]int{
	models.ComplaintLow:      5,
	models.ComplaintMedium:   50,
	models.ComplaintCritical: 250,
}

// ComplaintCategories maps the /report keyword to a complaint category.
var ComplaintCategories = map[string]string{
	"other": models.ComplaintLow,
	"spam":  models.ComplaintMedium,
	"abuse": models.ComplaintMedium,
	"nsfw":  models.ComplaintCritical,
	"minor": models.ComplaintCritical,
}
