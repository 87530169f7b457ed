package chathub

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
	"time"

	"github.com/rs/zerolog"
)

// ModerationService is the administrative surface over the matcher's stores.
// It never keeps copies: every view reads the same instances the matcher
// mutates.
type ModerationService struct {
	Matcher *MatcherService
	Storage storage.Storage

	log zerolog.Logger
}

func NewModerationService(m *MatcherService, s storage.Storage, log zerolog.Logger) *ModerationService {
	return &ModerationService{
		Matcher: m,
		Storage: s,
		log:     log.With().Str("component", "moderation").Logger(),
	}
}

// Ban bans subject for a whole number of hours and evicts it from live state.
func (s *ModerationService) Ban(ctx context.Context, subject string, hours int, reason string) (models.BanRecord, Outcome, error) {
	if hours <= 0 {
		return models.BanRecord{}, Outcome{}, fmt.Errorf("%w: ban hours must be positive, got %d", ErrInvalidArgument, hours)
	}
	return s.BanFor(ctx, subject, time.Duration(hours)*time.Hour, reason)
}

// BanFor records the ban, persists it and immediately evicts the subject.
// The returned outcome carries the partner to notify, if any.
func (s *ModerationService) BanFor(ctx context.Context, subject string, d time.Duration, reason string) (models.BanRecord, Outcome, error) {
	rec, err := s.Matcher.Bans.Ban(subject, d, reason)
	if err != nil {
		return models.BanRecord{}, Outcome{}, err
	}

	if s.Storage != nil {
		if err := s.Storage.SaveBan(ctx, rec); err != nil {
			s.log.Error().Err(err).Str("subject", subject).Msg("Failed to persist ban")
		}
	}

	out, err := s.Matcher.OnBan(subject)
	if err != nil {
		return rec, out, fmt.Errorf("evict banned %s: %w", subject, err)
	}
	s.log.Info().Str("subject", subject).Time("until", rec.ExpiresAt).Str("reason", reason).
		Stringer("evicted", out.Kind).Msg("Participant banned")
	return rec, out, nil
}

// Unban lifts the ban on subject. ErrNotFound tells the caller nothing was
// active.
func (s *ModerationService) Unban(ctx context.Context, subject string) error {
	err := s.Matcher.Bans.Unban(subject)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if s.Storage != nil {
		if derr := s.Storage.DeleteBan(ctx, subject); derr != nil {
			s.log.Error().Err(derr).Str("subject", subject).Msg("Failed to delete persisted ban")
		}
	}
	if err == nil {
		s.log.Info().Str("subject", subject).Msg("Participant unbanned")
	}
	return err
}

func (s *ModerationService) IsBanned(subject string) (models.BanRecord, bool) {
	return s.Matcher.Bans.IsBanned(subject)
}

func (s *ModerationService) ListBans() iter.Seq[models.BanRecord] {
	return s.Matcher.Bans.List()
}

// ForceEnd ends subject's chat or wait regardless of who asks.
func (s *ModerationService) ForceEnd(_ context.Context, subject, reason string) (Outcome, error) {
	return s.Matcher.ForceEnd(subject, reason)
}

func (s *ModerationService) Stats() Stats {
	return s.Matcher.Stats()
}

func (s *ModerationService) Waiting() []WaitingEntry {
	return s.Matcher.Pool.Snapshot()
}

func (s *ModerationService) Sessions() []Session {
	return s.Matcher.Sessions.Snapshot()
}

// ListKnownParticipants returns broadcast recipients.
func (s *ModerationService) ListKnownParticipants() []models.User {
	return s.Matcher.Participants.List()
}
