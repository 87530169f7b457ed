// Package metrics provides Prometheus instrumentation for the chat service.
// Gauges mirror the matchmaker's live state, counters track matches, ended
// chats, relayed messages and errors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectedClients tracks transports registered with the hub.
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerchat_connected_clients",
		Help: "Current number of clients registered with the hub",
	})

	// WaitingParticipants tracks the waiting pool size.
	WaitingParticipants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerchat_waiting_participants",
		Help: "Current number of participants waiting for a partner",
	})

	// ActiveChats tracks the number of live pairs.
	ActiveChats = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerchat_active_chats",
		Help: "Current number of active chat sessions",
	})

	// ActiveBans tracks bans in force.
	ActiveBans = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strangerchat_active_bans",
		Help: "Current number of active bans",
	})

	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strangerchat_matches_total",
		Help: "Total number of chat sessions created",
	})

	// ChatsEndedTotal is labeled by end reason.
	ChatsEndedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strangerchat_chats_ended_total",
		Help: "Total number of chat sessions ended",
	}, []string{"reason"})

	// MessagesTotal is labeled by message type (text, photo, ...).
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strangerchat_messages_relayed_total",
		Help: "Total number of messages relayed between partners",
	}, []string{"type"})

	// ErrorsTotal is labeled by error kind.
	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "strangerchat_errors_total",
		Help: "Total number of failed operations",
	}, []string{"kind"})

	// ChatDuration records how long sessions last.
	ChatDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "strangerchat_chat_duration_seconds",
		Help:    "Duration of ended chat sessions",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectedClients,
		WaitingParticipants,
		ActiveChats,
		ActiveBans,
		MatchesTotal,
		ChatsEndedTotal,
		MessagesTotal,
		ErrorsTotal,
		ChatDuration,
	)
}

// ObserveState sets the live-state gauges.
func ObserveState(waiting, paired, banned int) {
	WaitingParticipants.Set(float64(waiting))
	ActiveChats.Set(float64(paired))
	ActiveBans.Set(float64(banned))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
