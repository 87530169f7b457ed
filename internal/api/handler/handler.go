package handler

import (
	"strangerchat/backend/internal/activity"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/errlog"
	"strangerchat/backend/internal/heartbeat"
	"strangerchat/backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler holds what the HTTP routes need.
type Handler struct {
	Hub       *chathub.ManagerService
	Errors    *errlog.Recorder
	Activity  *activity.Recorder
	Heartbeat *heartbeat.Monitor

	secret   []byte
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Errors         *errlog.Recorder
	Activity       *activity.Recorder
	Heartbeat      *heartbeat.Monitor
}

func NewHandler(hub *chathub.ManagerService, opts Options, log zerolog.Logger) *Handler {
	return &Handler{
		Hub:       hub,
		Errors:    opts.Errors,
		Activity:  opts.Activity,
		Heartbeat: opts.Heartbeat,
		secret:    []byte(opts.JWTSecret),
		upgrader:  newUpgrader(opts.AllowedOrigins),
		log:       log.With().Str("component", "http").Logger(),
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)

	admin := r.Group("/admin", h.RequireAdmin)
	admin.GET("/stats", h.GetStats)
	admin.GET("/bans", h.ListBans)
	admin.POST("/bans", h.CreateBan)
	admin.DELETE("/bans/:id", h.DeleteBan)
	admin.POST("/participants/:id/end", h.EndParticipant)
	admin.GET("/participants", h.ListParticipants)
	admin.GET("/waiting", h.ListWaiting)
	admin.GET("/sessions", h.ListSessions)
	admin.POST("/broadcast", h.Broadcast)
	admin.GET("/errors", h.GetErrors)
	admin.GET("/activity", h.GetActivity)
}
