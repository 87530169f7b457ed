// Package heartbeat watches the update loop. Transports call Beat for every
// processed update; when no beat arrives for allowedMissed intervals the
// monitor raises one alert, and re-arms on the next beat.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AlertFunc is called once per silence with how long it has lasted.
type AlertFunc func(ctx context.Context, silence time.Duration)

type Monitor struct {
	interval      time.Duration
	allowedMissed int
	alert         AlertFunc

	mu      sync.Mutex
	last    time.Time
	alerted bool
	now     func() time.Time

	log zerolog.Logger
}

func NewMonitor(interval time.Duration, allowedMissed int, alert AlertFunc, log zerolog.Logger) *Monitor {
	return &Monitor{
		interval:      interval,
		allowedMissed: allowedMissed,
		alert:         alert,
		last:          time.Now(),
		now:           time.Now,
		log:           log.With().Str("component", "heartbeat").Logger(),
	}
}

// Beat records that the service is alive.
func (m *Monitor) Beat() {
	m.mu.Lock()
	m.last = m.now()
	m.alerted = false
	m.mu.Unlock()
}

// LastBeat returns the time of the most recent beat.
func (m *Monitor) LastBeat() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run checks every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Beat()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info().Dur("interval", m.interval).Int("allowed_missed", m.allowedMissed).Msg("Heartbeat monitoring started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Heartbeat monitoring stopped")
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check raises the alert if the silence exceeds the allowance. It reports
// whether an alert was sent.
func (m *Monitor) check(ctx context.Context) bool {
	m.mu.Lock()
	silence := m.now().Sub(m.last)
	fire := silence > time.Duration(m.allowedMissed)*m.interval && !m.alerted
	if fire {
		m.alerted = true
	}
	m.mu.Unlock()

	m.log.Debug().Dur("silence", silence).Msg("Heartbeat check")
	if !fire {
		return false
	}
	m.log.Warn().Dur("silence", silence).Msg("Service unresponsive")
	if m.alert != nil {
		m.alert(ctx, silence)
	}
	return true
}
