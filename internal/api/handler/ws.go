package handler

import (
	"net/http"
	"slices"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// ServeWebSocket upgrades an authenticated request and registers the web
// participant with the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}
	anonID, _, err := parseToken(h.secret, tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}
	if _, banned := h.Hub.Moderation.IsBanned(anonID); banned {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Participant is banned"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	stored, changed := h.Hub.Matcher.Participants.Touch(models.User{
		ID:       anonID,
		Platform: models.PlatformWebSocket,
		Language: h.Hub.MatchLanguage(c.Query("lang")),
	})
	if changed && h.Hub.Storage != nil {
		if err := h.Hub.Storage.SaveUser(c.Request.Context(), &stored); err != nil {
			h.log.Error().Err(err).Str("participant", anonID).Msg("Failed to save user")
		}
	}

	client := chathub.NewWebSocketClient(anonID, conn, h.Hub)
	select {
	case h.Hub.RegisterCh <- client:
	case <-h.Hub.Done():
		conn.Close()
		return
	}
	client.Run()
}
