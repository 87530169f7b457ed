package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strangerchat/backend/internal/activity"
	"strangerchat/backend/internal/api/handler"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/errlog"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	hub    *chathub.ManagerService
	errs   *errlog.Recorder
	admin  string
}

func newTestServer(t *testing.T, origins ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := localization.Default()
	require.NoError(t, err)

	matcher := chathub.NewMatcherService(
		chathub.NewBanRegistry(nil),
		chathub.NewWaitingPool(),
		chathub.NewSessionTable(),
		chathub.NewParticipantRegistry(nil),
		nil,
	)
	mod := chathub.NewModerationService(matcher, nil, zerolog.Nop())
	hub := chathub.NewManagerService(mod, nil, loc, zerolog.Nop())

	errs := errlog.NewRecorder(zerolog.Nop(), errlog.DefaultRecent)
	act := activity.NewRecorder(zerolog.Nop(), 50)
	hub.Errors = errs
	hub.Activity = act

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})

	h := handler.NewHandler(hub, handler.Options{
		JWTSecret:      testSecret,
		AllowedOrigins: origins,
		Errors:         errs,
		Activity:       act,
	}, zerolog.Nop())
	r := gin.New()
	h.Register(r)

	admin, err := handler.IssueToken([]byte(testSecret), "ops", handler.RoleAdmin, time.Hour)
	require.NoError(t, err)

	return &testServer{router: r, hub: hub, errs: errs, admin: admin}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetAnonID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/anonid", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["anon_id"])
}

func TestAdminAuth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/admin/stats", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/admin/stats", "garbage", nil).Code)

	participant, err := handler.IssueToken([]byte(testSecret), "someone", handler.RoleParticipant, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/admin/stats", participant, nil).Code)

	forged, err := handler.IssueToken([]byte("other-secret"), "ops", handler.RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/admin/stats", forged, nil).Code)

	expired, err := handler.IssueToken([]byte(testSecret), "ops", handler.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/admin/stats", expired, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/admin/stats", s.admin, nil).Code)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, err := handler.IssueToken(nil, "ops", handler.RoleAdmin, time.Hour)
	assert.Error(t, err)
}

func TestAdminBans(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/admin/bans", s.admin, map[string]any{"subject": "u1", "hours": 2, "reason": "spam"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "u1", decode(t, w)["subject_id"])

	w = s.do(http.MethodGet, "/admin/bans", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	bans := decode(t, w)["bans"].([]any)
	require.Len(t, bans, 1)
	assert.Equal(t, "spam", bans[0].(map[string]any)["reason"])

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/admin/bans/u1", s.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/admin/bans/u1", s.admin, nil).Code)
}

func TestAdminBans_InvalidRequests(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/admin/bans", s.admin, map[string]any{"subject": "u1"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/admin/bans", s.admin, map[string]any{"subject": "u1", "hours": -3}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/admin/broadcast", s.admin, map[string]any{}).Code)
}

func TestAdminLiveState(t *testing.T) {
	s := newTestServer(t)

	_, err := s.hub.Matcher.RequestChat("a")
	require.NoError(t, err)
	_, err = s.hub.Matcher.RequestChat("b")
	require.NoError(t, err)
	_, err = s.hub.Matcher.RequestChat("c")
	require.NoError(t, err)

	w := s.do(http.MethodGet, "/admin/sessions", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["sessions"], 1)

	w = s.do(http.MethodGet, "/admin/waiting", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["waiting"], 1)

	w = s.do(http.MethodGet, "/admin/stats", s.admin, nil)
	stats := decode(t, w)["stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["waiting"])
	assert.EqualValues(t, 1, stats["paired"])

	w = s.do(http.MethodPost, "/admin/participants/a/end", s.admin, map[string]any{"reason": "abuse"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ended", body["outcome"])
	assert.Equal(t, "b", body["partner"])

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/admin/participants/a/end", s.admin, nil).Code)

	w = s.do(http.MethodGet, "/admin/activity?kind=chat_ended", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["events"], 1)
}

func TestAdminBroadcastAndErrors(t *testing.T) {
	s := newTestServer(t)
	s.hub.Matcher.Participants.Touch(models.User{ID: "offline"})

	w := s.do(http.MethodPost, "/admin/broadcast", s.admin, map[string]any{"text": "hello all"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["sent"])
	assert.EqualValues(t, 1, body["failed"])

	s.errs.Record(chathub.ErrInternal, "test", "x")
	w = s.do(http.MethodGet, "/admin/errors?limit=5", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["recent"], 1)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "strangerchat_waiting_participants")
}

func anonToken(t *testing.T, s *testServer) string {
	t.Helper()
	w := s.do(http.MethodGet, "/anonid", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)["token"].(string)
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) models.ChatMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg models.ChatMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestWebSocket_ChatRoundTrip(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := dial(t, srv, anonToken(t, s))
	bob := dial(t, srv, anonToken(t, s))

	require.NoError(t, alice.WriteJSON(models.ChatMessage{Type: models.CommandChat}))
	readUntil(t, alice, models.SystemSearchStart)
	require.NoError(t, bob.WriteJSON(models.ChatMessage{Type: models.CommandChat}))

	found := readUntil(t, bob, models.SystemMatchFound)
	assert.NotEmpty(t, found.RoomID)
	readUntil(t, alice, models.SystemMatchFound)

	require.NoError(t, alice.WriteJSON(models.ChatMessage{Type: models.TypeText, Content: "hi bob"}))
	got := readUntil(t, bob, models.TypeText)
	assert.Equal(t, "hi bob", got.Content)
	assert.Equal(t, found.RoomID, got.RoomID)

	// Disconnecting ends the chat for the partner.
	require.NoError(t, alice.Close())
	readUntil(t, bob, models.SystemStopPartner)
}

func TestWebSocket_LanguageQuery(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	loc, err := localization.Default()
	require.NoError(t, err)

	for lang, want := range map[string]string{"uk-UA": "uk", "de": localization.DefaultLanguage} {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?lang=" + lang + "&token=" + anonToken(t, s)
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)

		require.NoError(t, conn.WriteJSON(models.ChatMessage{Type: models.CommandStatus}))
		msg := readUntil(t, conn, models.SystemInfo)
		assert.Equal(t, loc.GetString(want, "status_unseen"), msg.Content, lang)
		conn.Close()
	}
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_RejectsBannedParticipant(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	token, err := handler.IssueToken([]byte(testSecret), "troll", handler.RoleParticipant, time.Hour)
	require.NoError(t, err)
	_, err = s.hub.Ban(context.Background(), "troll", 1, "abuse")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocket_CheckOrigin(t *testing.T) {
	s := newTestServer(t, "https://chat.example")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + anonToken(t, s)

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://chat.example"}})
	require.NoError(t, err)
	conn.Close()
}
