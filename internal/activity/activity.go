// Package activity records chat lifecycle events: sessions starting and
// ending and messages relayed between partners. Events go to a JSON-lines
// file and a bounded in-memory history for the admin API.
package activity

import (
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	EventChatStarted = "chat_started"
	EventChatEnded   = "chat_ended"
	EventMessage     = "message"
)

type Event struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	A         string    `json:"a,omitempty"`
	B         string    `json:"b,omitempty"`
	// Sender and Receiver are set on message events.
	Sender      string `json:"sender,omitempty"`
	Receiver    string `json:"receiver,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	Content     string `json:"content,omitempty"`
	Caption     string `json:"caption,omitempty"`
	EndedBy     string `json:"ended_by,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Recorder implements chathub.ActivityRecorder.
type Recorder struct {
	mu     sync.Mutex
	recent []Event
	limit  int
	now    func() time.Time

	log zerolog.Logger
}

var _ chathub.ActivityRecorder = (*Recorder)(nil)

// NewRecorder keeps the last limit events in memory and writes every event
// to log.
func NewRecorder(log zerolog.Logger, limit int) *Recorder {
	if limit <= 0 {
		limit = 100
	}
	return &Recorder{log: log, limit: limit, now: time.Now}
}

func (r *Recorder) ChatStarted(s chathub.Session) {
	r.add(Event{Kind: EventChatStarted, SessionID: s.ID, A: s.A, B: s.B})
}

func (r *Recorder) ChatEnded(s chathub.Session, endedBy, reason string) {
	r.add(Event{Kind: EventChatEnded, SessionID: s.ID, A: s.A, B: s.B, EndedBy: endedBy, Reason: reason})
}

func (r *Recorder) MessageRelayed(msg models.ChatMessage, receiverID string) {
	r.add(Event{
		Kind:        EventMessage,
		SessionID:   msg.RoomID,
		Sender:      msg.SenderID,
		Receiver:    receiverID,
		MessageType: msg.Type,
		Content:     msg.Content,
		Caption:     msg.Metadata,
	})
}

func (r *Recorder) add(e Event) {
	e.Time = r.now()

	r.mu.Lock()
	if len(r.recent) == r.limit {
		copy(r.recent, r.recent[1:])
		r.recent = r.recent[:r.limit-1]
	}
	r.recent = append(r.recent, e)
	r.mu.Unlock()

	r.log.Info().
		Str("kind", e.Kind).
		Str("session_id", e.SessionID).
		Str("a", e.A).
		Str("b", e.B).
		Str("sender", e.Sender).
		Str("receiver", e.Receiver).
		Str("message_type", e.MessageType).
		Str("content", e.Content).
		Str("caption", e.Caption).
		Str("ended_by", e.EndedBy).
		Str("reason", e.Reason).
		Send()
}

// Recent returns up to n events, newest first. kind filters when non-empty.
func (r *Recorder) Recent(n int, kind string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0, min(n, len(r.recent)))
	for i := len(r.recent) - 1; i >= 0 && len(out) < n; i-- {
		if kind != "" && r.recent[i].Kind != kind {
			continue
		}
		out = append(out, r.recent[i])
	}
	return out
}
