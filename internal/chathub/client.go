package chathub

import "strangerchat/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, Telegram).
// It abstracts the underlying communication mechanism, allowing the hub to manage
// different client types uniformly.
type Client interface {
	// GetUserID returns the participant identifier the client speaks for.
	GetUserID() string

	// GetSendChannel returns the channel to which the ManagerService (hub) sends
	// messages intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.ChatMessage

	// Run starts the client's pumps.
	Run()
	// Close shuts the client down. The hub calls it once, after the client
	// has been removed from the registry.
	Close()
}

// ClientRestorer builds a client for a participant that has none registered,
// e.g. a Telegram user who has not written since the process started.
type ClientRestorer func(userID string) (Client, error)

// ActivityRecorder receives chat lifecycle events.
type ActivityRecorder interface {
	ChatStarted(s Session)
	ChatEnded(s Session, endedBy, reason string)
	MessageRelayed(msg models.ChatMessage, receiverID string)
}

// ErrorReporter records failed operations.
type ErrorReporter interface {
	Record(err error, location, participantID string)
}

type nopActivity struct{}

func (nopActivity) ChatStarted(Session)                       {}
func (nopActivity) ChatEnded(Session, string, string)         {}
func (nopActivity) MessageRelayed(models.ChatMessage, string) {}

type nopErrors struct{}

func (nopErrors) Record(error, string, string) {}
