// Package complaint provides the core logic for handling user complaints,
// including automatic, escalating bans for participants reported too often.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"strangerchat/backend/internal/analysis"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"time"

	"github.com/rs/zerolog"
)

var ErrUnknownCategory = errors.New("unknown complaint category")

// Store is the persistence the service needs.
type Store interface {
	SaveComplaint(ctx context.Context, complaint *models.Complaint) error
	ComplaintWeightSince(ctx context.Context, userID string, since time.Time) (int, error)
	GetLastBanDate(ctx context.Context, userID string) (time.Time, error)
	MarkComplaintsBanned(ctx context.Context, userID string) error
}

// Banner applies a ban to the live state. The hub implements it so that the
// banned participant is evicted immediately.
type Banner interface {
	BanFor(ctx context.Context, subject string, d time.Duration, reason string) (models.BanRecord, error)
}

// Service handles the business logic for complaints.
type Service struct {
	Storage Store
	Banner  Banner

	window    time.Duration
	threshold int
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new complaint service.
func NewService(s Store, b Banner, cfg config.ModerationConfig, log zerolog.Logger) *Service {
	return &Service{
		Storage:   s,
		Banner:    b,
		window:    cfg.ComplaintWindow,
		threshold: cfg.BanThreshold,
		now:       time.Now,
		log:       log.With().Str("component", "complaint").Logger(),
	}
}

// Report files a complaint by reporter against its partner in roomID.
// keyword is one of the /report categories.
func (s *Service) Report(ctx context.Context, reporter, reported, roomID, keyword, details string) (bool, error) {
	category, ok := analysis.Categorize(keyword)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCategory, keyword)
	}
	return s.HandleComplaint(ctx, &models.Complaint{
		ReporterID:     reporter,
		ReportedUserID: reported,
		RoomID:         roomID,
		ComplaintType:  category,
		Reason:         details,
	})
}

// HandleComplaint persists a new complaint and bans the reported user when
// the complaints against them weigh enough. It reports whether a ban was
// applied.
func (s *Service) HandleComplaint(ctx context.Context, complaint *models.Complaint) (bool, error) {
	complaint.Weight = analysis.GetWeight(complaint.ComplaintType)
	if err := s.Storage.SaveComplaint(ctx, complaint); err != nil {
		return false, fmt.Errorf("save complaint: %w", err)
	}
	s.log.Info().
		Str("reporter", complaint.ReporterID).
		Str("reported", complaint.ReportedUserID).
		Str("type", complaint.ComplaintType).
		Int("weight", complaint.Weight).
		Msg("Complaint filed")

	return s.CheckForBan(ctx, complaint.ReportedUserID)
}

// CheckForBan bans userID if the open complaints within the window reach
// the threshold.
func (s *Service) CheckForBan(ctx context.Context, userID string) (bool, error) {
	total, err := s.Storage.ComplaintWeightSince(ctx, userID, s.now().Add(-s.window))
	if err != nil {
		return false, err
	}
	if total < s.threshold {
		return false, nil
	}
	return true, s.applyBan(ctx, userID, total)
}

func (s *Service) applyBan(ctx context.Context, userID string, weight int) error {
	lastBan, err := s.Storage.GetLastBanDate(ctx, userID)
	if err != nil {
		return err
	}

	level := 1
	if !lastBan.IsZero() {
		since := s.now().Sub(lastBan)
		if since < config.BanRepeatWindow {
			level = 3
		} else if since < config.BanEscalationWindow {
			level = 2
		}
	}

	d := getBanDuration(level)
	reason := fmt.Sprintf("automatic: complaints weighing %d", weight)
	if _, err := s.Banner.BanFor(ctx, userID, d, reason); err != nil {
		return fmt.Errorf("ban %s: %w", userID, err)
	}
	s.log.Warn().Str("participant", userID).Int("level", level).Dur("duration", d).Msg("Automatic ban applied")

	return s.Storage.MarkComplaintsBanned(ctx, userID)
}

func getBanDuration(level int) time.Duration {
	switch level {
	case 1:
		return config.BanLevel1Duration
	case 2:
		return config.BanLevel2Duration
	default:
		return config.BanLevel3Duration
	}
}
