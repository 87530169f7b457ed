package chathub

import (
	"context"
	"errors"
	"fmt"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/metrics"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ManagerService is the hub. Transports push commands and chat messages into
// IncomingCh; the hub runs them through the matcher and delivers the results
// to the registered clients.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]Client

	IncomingCh   chan models.ChatMessage
	RegisterCh   chan Client
	UnregisterCh chan Client

	Matcher    *MatcherService
	Moderation *ModerationService
	Storage    storage.Storage
	Localizer  *localization.Localizer

	Activity ActivityRecorder
	Errors   ErrorReporter

	ClientRestorer ClientRestorer

	done chan struct{}
	log  zerolog.Logger
}

func NewManagerService(mod *ModerationService, s storage.Storage, loc *localization.Localizer, log zerolog.Logger) *ManagerService {
	return &ManagerService{
		clients:      make(map[string]Client),
		IncomingCh:   make(chan models.ChatMessage, 256),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Matcher:      mod.Matcher,
		Moderation:   mod,
		Storage:      s,
		Localizer:    loc,
		Activity:     nopActivity{},
		Errors:       nopErrors{},
		done:         make(chan struct{}),
		log:          log.With().Str("component", "hub").Logger(),
	}
}

func (m *ManagerService) SetClientRestorer(restorer ClientRestorer) {
	m.ClientRestorer = restorer
}

// Done is closed when Run returns.
func (m *ManagerService) Done() <-chan struct{} { return m.done }

// Run processes registrations and incoming messages until ctx is cancelled.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	m.log.Info().Msg("Hub started")

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			m.log.Info().Msg("Hub stopped")
			return

		case client := <-m.RegisterCh:
			m.Register(client)

		case client := <-m.UnregisterCh:
			m.Unregister(ctx, client)

		case msg := <-m.IncomingCh:
			m.HandleMessage(ctx, msg)
		}
	}
}

// Register adds client, replacing and closing any previous client of the
// same participant.
func (m *ManagerService) Register(client Client) {
	m.mu.Lock()
	old, existed := m.clients[client.GetUserID()]
	m.clients[client.GetUserID()] = client
	if existed && old != client {
		old.Close()
	}
	n := len(m.clients)
	m.mu.Unlock()

	metrics.ConnectedClients.Set(float64(n))
	m.log.Debug().Str("participant", client.GetUserID()).Msg("Client registered")
}

// Unregister removes client if it is still the registered one for its
// participant. A participant that disconnects is taken out of its chat or
// the waiting pool.
func (m *ManagerService) Unregister(ctx context.Context, client Client) {
	id := client.GetUserID()

	m.mu.Lock()
	current, ok := m.clients[id]
	if !ok || current != client {
		m.mu.Unlock()
		return
	}
	delete(m.clients, id)
	client.Close()
	n := len(m.clients)
	m.mu.Unlock()

	metrics.ConnectedClients.Set(float64(n))
	m.log.Debug().Str("participant", id).Msg("Client unregistered")

	out, err := m.Matcher.EndChat(id, ReasonConnectionLost)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.reportError(err, "unregister", id)
		}
		return
	}
	m.Deliver(ctx, out)
}

func (m *ManagerService) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.clients {
		c.Close()
		delete(m.clients, id)
	}
	metrics.ConnectedClients.Set(0)
}

// ClientCount returns the number of registered clients.
func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// HandleMessage dispatches one inbound message.
func (m *ManagerService) HandleMessage(ctx context.Context, msg models.ChatMessage) {
	if msg.SenderID == "" {
		return
	}

	switch msg.Type {
	case models.CommandChat:
		m.RequestChat(ctx, msg.SenderID)
	case models.CommandNext:
		m.Next(ctx, msg.SenderID)
	case models.CommandLeave:
		m.Leave(ctx, msg.SenderID)
	case models.CommandStatus:
		m.Status(msg.SenderID)
	default:
		m.Relay(ctx, msg)
	}
}

// RequestChat pairs id or puts it in the waiting pool, notifying as needed.
func (m *ManagerService) RequestChat(ctx context.Context, id string) (Outcome, error) {
	out, err := m.Matcher.RequestChat(id)
	if err != nil {
		m.notifyError(id, "request_chat", err)
		return out, err
	}
	m.Deliver(ctx, out)
	return out, nil
}

// Next ends the current chat (or wait) and looks for a new partner.
func (m *ManagerService) Next(ctx context.Context, id string) (Outcome, error) {
	out, err := m.Matcher.EndChat(id, ReasonNext)
	switch {
	case err == nil:
		m.Deliver(ctx, out)
	case !errors.Is(err, ErrNotFound):
		m.notifyError(id, "next", err)
		return out, err
	}
	return m.RequestChat(ctx, id)
}

// Leave ends the chat or cancels the wait.
func (m *ManagerService) Leave(ctx context.Context, id string) (Outcome, error) {
	out, err := m.Matcher.EndChat(id, ReasonManual)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.SendText(id, models.SystemInfo, "not_chatting")
		} else {
			m.notifyError(id, "leave", err)
		}
		return out, err
	}
	m.Deliver(ctx, out)
	return out, nil
}

func (m *ManagerService) Status(id string) ParticipantState {
	state := m.Matcher.StateOf(id)
	m.SendText(id, models.SystemInfo, "status_"+state.String())
	return state
}

// Relay forwards a chat message to the sender's partner.
func (m *ManagerService) Relay(ctx context.Context, msg models.ChatMessage) bool {
	partner, ok := m.Matcher.RelayEligiblePartner(msg.SenderID)
	if !ok {
		m.SendText(msg.SenderID, models.SystemInfo, "not_in_chat")
		return false
	}
	if s, ok := m.Matcher.Sessions.SessionOf(msg.SenderID); ok {
		msg.RoomID = s.ID
	}

	switch err := m.send(partner, msg); {
	case errors.Is(err, errQueueFull):
		m.SendText(msg.SenderID, models.SystemError, "send_failed")
		return false
	case err != nil:
		m.log.Warn().Str("sender", msg.SenderID).Str("partner", partner).Msg("Partner unreachable, ending chat")
		out, err := m.Matcher.EndChat(partner, ReasonConnectionLost)
		if err == nil {
			m.Deliver(ctx, out)
		}
		return false
	}

	metrics.MessagesTotal.WithLabelValues(msg.Type).Inc()
	m.Activity.MessageRelayed(msg, partner)
	return true
}

// Deliver turns a matcher outcome into notifications, persistence and
// activity records. It must be called without holding any matcher lock.
func (m *ManagerService) Deliver(ctx context.Context, out Outcome) {
	switch out.Kind {
	case OutcomeWaiting:
		m.SendText(out.Participant, models.SystemSearchStart, "searching")

	case OutcomeMatched:
		var unreachable []string
		for _, id := range []string{out.Session.A, out.Session.B} {
			err := m.send(id, models.ChatMessage{
				SenderID: id,
				RoomID:   out.Session.ID,
				Type:     models.SystemMatchFound,
				Content:  m.text(id, "match_found"),
			})
			if errors.Is(err, errNoClient) {
				unreachable = append(unreachable, id)
			}
		}
		m.persistRoom(ctx, out.Session)
		metrics.MatchesTotal.Inc()
		m.Activity.ChatStarted(out.Session)
		m.log.Info().Str("room", out.Session.ID).Str("a", out.Session.A).Str("b", out.Session.B).Msg("Chat started")
		if len(unreachable) > 0 {
			m.dropUnreachable(ctx, out.Session, unreachable)
		}

	case OutcomeEnded:
		m.notifyEnded(out)
		if m.Storage != nil {
			if err := m.Storage.CloseRoom(ctx, out.Session.ID, out.Reason, out.Participant); err != nil {
				m.reportError(err, "close_room", out.Participant)
			}
		}
		metrics.ChatsEndedTotal.WithLabelValues(out.Reason).Inc()
		if !out.Session.CreatedAt.IsZero() {
			metrics.ChatDuration.Observe(m.Matcher.Now().Sub(out.Session.CreatedAt).Seconds())
		}
		m.Activity.ChatEnded(out.Session, out.Participant, out.Reason)
		m.log.Info().Str("room", out.Session.ID).Str("ended_by", out.Participant).Str("reason", out.Reason).Msg("Chat ended")

	case OutcomeCancelled:
		switch {
		case out.Reason == ReasonBanned:
			m.SendText(out.Participant, models.SystemBanned, "you_were_banned")
		case out.Reason == ReasonConnectionLost:
		case out.Forced:
			m.SendText(out.Participant, models.SystemInfo, "search_ended_by_admin")
		default:
			m.SendText(out.Participant, models.SystemInfo, "left_queue")
		}
	}

	m.observe()
}

// dropUnreachable ends a fresh session whose match notice could not reach
// one or both sides. A reachable side goes back to the queue.
func (m *ManagerService) dropUnreachable(ctx context.Context, s Session, unreachable []string) {
	m.log.Warn().Str("room", s.ID).Strs("unreachable", unreachable).Msg("Matched participant unreachable, ending chat")
	out, err := m.Matcher.EndChat(unreachable[0], ReasonConnectionLost)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.reportError(err, "drop_unreachable", unreachable[0])
		}
		return
	}
	m.Deliver(ctx, out)
	if len(unreachable) == 1 {
		_, _ = m.RequestChat(ctx, s.PartnerOf(unreachable[0]))
	}
}

func (m *ManagerService) notifyEnded(out Outcome) {
	switch {
	case out.Reason == ReasonBanned:
		m.SendText(out.Participant, models.SystemBanned, "you_were_banned")
	case out.Forced:
		m.SendText(out.Participant, models.SystemStopSelf, "ended_by_admin")
	case out.Reason != ReasonConnectionLost:
		m.SendText(out.Participant, models.SystemStopSelf, "chat_ended_self")
	}

	if out.Partner == "" {
		return
	}
	key := "chat_ended_partner"
	switch {
	case out.Forced && out.Reason != ReasonBanned:
		key = "ended_by_admin"
	case out.Reason == ReasonConnectionLost:
		key = "partner_unreachable"
	}
	m.SendText(out.Partner, models.SystemStopPartner, key)
}

func (m *ManagerService) persistRoom(ctx context.Context, s Session) {
	if m.Storage == nil {
		return
	}
	room := &models.ChatRoom{
		RoomID:    s.ID,
		User1ID:   s.A,
		User2ID:   s.B,
		IsActive:  true,
		StartedAt: s.CreatedAt,
	}
	if err := m.Storage.SaveRoom(ctx, room); err != nil {
		m.reportError(err, "save_room", s.A)
	}
}

func (m *ManagerService) observe() {
	st := m.Matcher.Stats()
	metrics.ObserveState(st.Waiting, st.Paired, st.Banned)
}

var (
	errNoClient  = errors.New("no client registered")
	errQueueFull = errors.New("send queue full")
)

// SendTo queues msg for participant id without blocking. It restores a client
// through ClientRestorer when none is registered. It reports false when no
// client exists or its queue is full.
func (m *ManagerService) SendTo(id string, msg models.ChatMessage) bool {
	return m.send(id, msg) == nil
}

func (m *ManagerService) send(id string, msg models.ChatMessage) error {
	if !m.ensureClient(id) {
		return errNoClient
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return errNoClient
	}
	select {
	case c.GetSendChannel() <- msg:
		return nil
	default:
		m.log.Warn().Str("participant", id).Str("type", msg.Type).Msg("Send queue full, message dropped")
		return errQueueFull
	}
}

// SendText sends a localized system message.
func (m *ManagerService) SendText(id, msgType, key string, args ...any) bool {
	return m.SendTo(id, models.ChatMessage{
		SenderID: id,
		Type:     msgType,
		Content:  m.text(id, key, args...),
	})
}

func (m *ManagerService) ensureClient(id string) bool {
	m.mu.RLock()
	_, ok := m.clients[id]
	m.mu.RUnlock()
	if ok {
		return true
	}
	if m.ClientRestorer == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; ok {
		return true
	}
	client, err := m.ClientRestorer(id)
	if err != nil {
		m.log.Debug().Err(err).Str("participant", id).Msg("No client to restore")
		return false
	}
	m.clients[id] = client
	client.Run()
	metrics.ConnectedClients.Set(float64(len(m.clients)))
	m.log.Debug().Str("participant", id).Msg("Restored client session")
	return true
}

func (m *ManagerService) language(id string) string {
	if u, ok := m.Matcher.Participants.Get(id); ok && u.Language != "" {
		return u.Language
	}
	return localization.DefaultLanguage
}

// MatchLanguage maps a client language tag onto a loaded catalog, or "".
func (m *ManagerService) MatchLanguage(tag string) string {
	if m.Localizer == nil {
		return tag
	}
	return m.Localizer.Match(tag)
}

func (m *ManagerService) text(id, key string, args ...any) string {
	if m.Localizer == nil {
		return key
	}
	return m.Localizer.Format(m.language(id), key, args...)
}

// notifyError records err and tells the participant what went wrong.
func (m *ManagerService) notifyError(id, location string, err error) {
	var banned *BannedError
	switch {
	case errors.As(err, &banned):
		remaining := formatRemaining(banned.Until.Sub(m.Matcher.Now()))
		if banned.Reason == "" {
			m.SendText(id, models.SystemBanned, "banned_no_reason", remaining)
		} else {
			m.SendText(id, models.SystemBanned, "banned", remaining, banned.Reason)
		}
		return
	case errors.Is(err, ErrAlreadyActive):
		if m.Matcher.StateOf(id) == StatePaired {
			m.SendText(id, models.SystemInfo, "already_in_chat")
		} else {
			m.SendText(id, models.SystemInfo, "already_waiting")
		}
		return
	case errors.Is(err, ErrInvalidArgument):
		m.SendText(id, models.SystemError, "invalid_request")
	default:
		m.SendText(id, models.SystemError, "internal_error")
	}
	m.reportError(err, location, id)
}

func (m *ManagerService) reportError(err error, location, id string) {
	metrics.ErrorsTotal.WithLabelValues(ErrorKind(err)).Inc()
	m.Errors.Record(err, location, id)
	m.log.Error().Err(err).Str("location", location).Str("participant", id).Msg("Operation failed")
}

// formatRemaining renders a ban duration the way users read it: "2h 5m",
// "12m", "30s".
func formatRemaining(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", max(int(d/time.Second), 1))
	}
	d = d.Round(time.Minute)
	h, mins := int(d/time.Hour), int(d%time.Hour/time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", mins)
	case mins == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, mins)
}
