package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type manualTime struct{ t time.Time }

func (m *manualTime) now() time.Time          { return m.t }
func (m *manualTime) advance(d time.Duration) { m.t = m.t.Add(d) }

func newTestMonitor(alerts *[]time.Duration) (*Monitor, *manualTime) {
	clock := &manualTime{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMonitor(time.Minute, 3, func(_ context.Context, silence time.Duration) {
		*alerts = append(*alerts, silence)
	}, zerolog.Nop())
	m.now = clock.now
	m.Beat()
	return m, clock
}

func TestMonitor_AlertsOnceAfterAllowedMisses(t *testing.T) {
	var alerts []time.Duration
	m, clock := newTestMonitor(&alerts)
	ctx := context.Background()

	clock.advance(3 * time.Minute)
	assert.False(t, m.check(ctx), "exactly the allowance is still fine")

	clock.advance(time.Second)
	assert.True(t, m.check(ctx))
	clock.advance(time.Minute)
	assert.False(t, m.check(ctx), "one alert per silence")

	assert.Equal(t, []time.Duration{3*time.Minute + time.Second}, alerts)
}

func TestMonitor_BeatRearms(t *testing.T) {
	var alerts []time.Duration
	m, clock := newTestMonitor(&alerts)
	ctx := context.Background()

	clock.advance(5 * time.Minute)
	assert.True(t, m.check(ctx))

	m.Beat()
	assert.Equal(t, clock.t, m.LastBeat())
	clock.advance(time.Minute)
	assert.False(t, m.check(ctx))

	clock.advance(4 * time.Minute)
	assert.True(t, m.check(ctx))
	assert.Len(t, alerts, 2)
}

func TestMonitor_RunStopsWithContext(t *testing.T) {
	m := NewMonitor(10*time.Millisecond, 1, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
