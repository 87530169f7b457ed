package chathub

import (
	"context"
	"errors"
	"strangerchat/backend/internal/models"
	"time"
)

// Ban bans subject for whole hours and notifies whoever the eviction affected.
func (m *ManagerService) Ban(ctx context.Context, subject string, hours int, reason string) (models.BanRecord, error) {
	rec, out, err := m.Moderation.Ban(ctx, subject, hours, reason)
	return rec, m.afterBan(ctx, subject, out, err)
}

// BanFor is Ban with an arbitrary duration, used by automatic moderation.
func (m *ManagerService) BanFor(ctx context.Context, subject string, d time.Duration, reason string) (models.BanRecord, error) {
	rec, out, err := m.Moderation.BanFor(ctx, subject, d, reason)
	return rec, m.afterBan(ctx, subject, out, err)
}

func (m *ManagerService) afterBan(ctx context.Context, subject string, out Outcome, err error) error {
	if err != nil {
		if !errors.Is(err, ErrInternal) {
			return err
		}
		// The ban is recorded; the inconsistent session was cleared.
		m.reportError(err, "ban", subject)
	}
	m.Deliver(ctx, out)
	return err
}

func (m *ManagerService) Unban(ctx context.Context, subject string) error {
	err := m.Moderation.Unban(ctx, subject)
	if err == nil {
		m.observe()
	}
	return err
}

// ForceEnd ends subject's chat or wait on behalf of a moderator.
func (m *ManagerService) ForceEnd(ctx context.Context, subject, reason string) (Outcome, error) {
	out, err := m.Moderation.ForceEnd(ctx, subject, reason)
	if err != nil {
		if !errors.Is(err, ErrInternal) {
			return out, err
		}
		m.reportError(err, "force_end", subject)
	}
	m.Deliver(ctx, out)
	return out, err
}

// Broadcast queues an announcement for every known participant.
func (m *ManagerService) Broadcast(_ context.Context, text string) (sent, failed int) {
	for _, u := range m.Moderation.ListKnownParticipants() {
		if m.SendText(u.ID, models.SystemBroadcast, "broadcast", text) {
			sent++
		} else {
			failed++
		}
	}
	m.log.Info().Int("sent", sent).Int("failed", failed).Msg("Broadcast queued")
	return sent, failed
}

func (m *ManagerService) Stats() Stats {
	return m.Moderation.Stats()
}
