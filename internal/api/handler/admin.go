package handler

import (
	"errors"
	"net/http"
	"slices"
	"strangerchat/backend/internal/chathub"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 20

func statusFor(err error) int {
	switch {
	case errors.Is(err, chathub.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, chathub.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chathub.ErrAlreadyActive):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// recorded reports whether the moderation action took effect despite err.
// ErrInternal means the state was repaired after the action was applied.
func recorded(err error) bool {
	return err == nil || errors.Is(err, chathub.ErrInternal)
}

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return n
}

// Health reports liveness plus the live-state counters.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "stats": h.Hub.Stats()}
	if h.Heartbeat != nil {
		body["last_beat"] = h.Heartbeat.LastBeat()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":   h.Hub.Stats(),
		"clients": h.Hub.ClientCount(),
	})
}

func (h *Handler) ListBans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bans": slices.Collect(h.Hub.Moderation.ListBans())})
}

type banRequest struct {
	Subject string `json:"subject" binding:"required"`
	Hours   int    `json:"hours" binding:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) CreateBan(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.Hub.Ban(c.Request.Context(), req.Subject, req.Hours, req.Reason)
	if !recorded(err) {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("subject", req.Subject).Msg("Ban recorded with inconsistent session state")
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) DeleteBan(c *gin.Context) {
	if err := h.Hub.Unban(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type endRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) EndParticipant(c *gin.Context) {
	var req endRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	out, err := h.Hub.ForceEnd(c.Request.Context(), c.Param("id"), req.Reason)
	if !recorded(err) {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("subject", c.Param("id")).Msg("Chat ended with inconsistent session state")
	}
	c.JSON(http.StatusOK, gin.H{
		"outcome": out.Kind.String(),
		"partner": out.Partner,
		"reason":  out.Reason,
	})
}

func (h *Handler) ListParticipants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"participants": h.Hub.Moderation.ListKnownParticipants()})
}

func (h *Handler) ListWaiting(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"waiting": h.Hub.Moderation.Waiting()})
}

func (h *Handler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.Hub.Moderation.Sessions()})
}

type broadcastRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sent, failed := h.Hub.Broadcast(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, gin.H{"sent": sent, "failed": failed})
}

func (h *Handler) GetErrors(c *gin.Context) {
	if h.Errors == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "error log disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": h.Errors.Summary(),
		"recent":  h.Errors.Recent(limitParam(c), c.Query("kind")),
	})
}

func (h *Handler) GetActivity(c *gin.Context) {
	if h.Activity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity log disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": h.Activity.Recent(limitParam(c), c.Query("kind"))})
}
