package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strangerchat/backend/internal/metrics"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveState(t *testing.T) {
	metrics.ObserveState(3, 2, 1)

	body := scrape(t)
	assert.Contains(t, body, "strangerchat_waiting_participants 3")
	assert.Contains(t, body, "strangerchat_active_chats 2")
	assert.Contains(t, body, "strangerchat_active_bans 1")
}

func TestHandler_ExposesCounters(t *testing.T) {
	metrics.MatchesTotal.Inc()
	metrics.ChatsEndedTotal.WithLabelValues("next").Inc()

	body := scrape(t)
	assert.Contains(t, body, "strangerchat_matches_total")
	assert.Contains(t, body, `strangerchat_chats_ended_total{reason="next"}`)
}
