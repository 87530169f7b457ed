package telegram

import (
	"context"
	"strangerchat/backend/internal/models"
	"strings"

	"github.com/rs/zerolog"
)

// PreferenceRecorder stores profile preferences. The matcher implements it.
type PreferenceRecorder interface {
	RecordPreference(id, gender, interest string) (models.User, error)
}

// PreferenceStore persists the updated profile.
type PreferenceStore interface {
	SaveUser(ctx context.Context, user *models.User) error
}

// HandlePreferenceCommand processes /gender and /interest and returns the
// localization key of the reply. s may be nil.
func HandlePreferenceCommand(ctx context.Context, command, args, userID string, rec PreferenceRecorder, s PreferenceStore, log zerolog.Logger) string {
	value := strings.TrimSpace(args)

	var gender, interest string
	switch command {
	case "gender":
		if value == "" {
			return "preference_usage_gender"
		}
		gender = value
	case "interest", "interests":
		if value == "" {
			return "preference_usage_interest"
		}
		interest = value
	default:
		return "invalid_request"
	}

	user, err := rec.RecordPreference(userID, gender, interest)
	if err != nil {
		log.Error().Err(err).Str("participant", userID).Msg("Failed to record preference")
		return "internal_error"
	}
	if s != nil {
		if err := s.SaveUser(ctx, &user); err != nil {
			// The in-memory profile is updated; persistence catches up on shutdown.
			log.Error().Err(err).Str("participant", userID).Msg("Failed to save preference")
		}
	}
	return "preference_saved"
}
