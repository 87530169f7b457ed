package chathub

import (
	"context"
	"time"
)

const (
	BanSweepInterval = time.Minute
	AutosaveInterval = 5 * time.Minute
)

// RunMaintenance drops expired bans and saves participant profiles on the
// given intervals until ctx is cancelled.
func (m *ManagerService) RunMaintenance(ctx context.Context, sweepEvery, saveEvery time.Duration) {
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()
	save := time.NewTicker(saveEvery)
	defer save.Stop()

	m.log.Info().Dur("sweep", sweepEvery).Dur("autosave", saveEvery).Msg("Maintenance started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			m.SweepBans()
		case <-save.C:
			m.SaveParticipants(ctx)
		}
	}
}

// SweepBans removes expired bans and refreshes the gauges.
func (m *ManagerService) SweepBans() int {
	removed := m.Matcher.Bans.Sweep()
	if removed > 0 {
		m.log.Info().Int("removed", removed).Msg("Expired bans swept")
	}
	m.observe()
	return removed
}

// SaveParticipants writes every known profile to storage.
func (m *ManagerService) SaveParticipants(ctx context.Context) (saved, failed int) {
	if m.Storage == nil {
		return 0, 0
	}
	users := m.Matcher.Participants.List()
	for i := range users {
		if err := m.Storage.SaveUser(ctx, &users[i]); err != nil {
			failed++
			m.log.Warn().Err(err).Str("participant", users[i].ID).Msg("Failed to save participant")
			continue
		}
		saved++
	}
	m.log.Info().Int("saved", saved).Int("failed", failed).Msg("Participants saved")
	return saved, failed
}
