package telegram

import (
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const sendBuffer = 32

// Sender is the part of the Bot API the transport uses. *tgbotapi.BotAPI
// implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client implements chathub.Client for one Telegram chat. Inbound updates are
// read centrally by BotService; the client only owns the write pump.
type Client struct {
	UserID string
	ChatID int64
	Hub    *chathub.ManagerService
	Send   chan models.ChatMessage
	Bot    Sender

	closeOnce sync.Once
	log       zerolog.Logger
}

func NewClient(chatID int64, bot Sender, hub *chathub.ManagerService, log zerolog.Logger) *Client {
	id := strconv.FormatInt(chatID, 10)
	return &Client{
		UserID: id,
		ChatID: chatID,
		Hub:    hub,
		Send:   make(chan models.ChatMessage, sendBuffer),
		Bot:    bot,
		log:    log.With().Str("participant", id).Logger(),
	}
}

func (c *Client) GetUserID() string                         { return c.UserID }
func (c *Client) GetSendChannel() chan<- models.ChatMessage { return c.Send }

func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *Client) writePump() {
	defer c.log.Debug().Msg("Telegram write pump stopped")

	for message := range c.Send {
		msg := render(c.ChatID, message)
		if msg == nil {
			c.log.Warn().Str("type", message.Type).Msg("Unhandled message type")
			continue
		}
		if _, err := c.Bot.Send(msg); err != nil {
			if isUnreachable(err) {
				c.log.Info().Err(err).Msg("Chat unreachable, unregistering")
				c.unregister()
				continue // Дочитуємо Send, доки хаб його не закриє
			}
			c.log.Error().Err(err).Str("type", message.Type).Msg("Failed to send Telegram message")
		}
	}
}

// unregister hands the client back to the hub, which ends its chat and
// closes Send. The pump keeps draining until then.
func (c *Client) unregister() {
	go func() {
		select {
		case c.Hub.UnregisterCh <- c:
		case <-c.Hub.Done():
		}
	}()
}

// isUnreachable reports whether err means the chat can no longer receive
// messages from the bot.
func isUnreachable(err error) bool {
	text := strings.ToLower(err.Error())
	for _, marker := range []string{
		"bot was blocked by the user",
		"user is deactivated",
		"chat not found",
		"bot was kicked",
	} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// render builds the Bot API request for one hub message. Relayed media is
// re-sent by file id.
func render(chatID int64, message models.ChatMessage) tgbotapi.Chattable {
	file := tgbotapi.FileID(message.Content)

	switch message.Type {
	case models.TypePhoto:
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = message.Metadata
		return photo
	case models.TypeVideo:
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = message.Metadata
		return video
	case models.TypeAnimation:
		anim := tgbotapi.NewAnimation(chatID, file)
		anim.Caption = message.Metadata
		return anim
	case models.TypeDocument:
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = message.Metadata
		return doc
	case models.TypeAudio:
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Caption = message.Metadata
		return audio
	case models.TypeSticker:
		return tgbotapi.NewSticker(chatID, file)
	case models.TypeVoice:
		return tgbotapi.NewVoice(chatID, file)
	case models.TypeVideoNote:
		return tgbotapi.NewVideoNote(chatID, 0, file)
	}

	if message.Type == models.TypeText || message.IsSystem() {
		if message.Content == "" {
			return nil
		}
		return tgbotapi.NewMessage(chatID, message.Content)
	}
	return nil
}

// extractMedia maps an inbound Telegram message to a hub message type,
// content and caption. The type is empty for unsupported messages.
func extractMedia(msg *tgbotapi.Message) (msgType, content, caption string) {
	caption = msg.Caption
	switch {
	case msg.Text != "":
		return models.TypeText, msg.Text, ""
	case len(msg.Photo) > 0:
		return models.TypePhoto, msg.Photo[len(msg.Photo)-1].FileID, caption
	case msg.Video != nil:
		return models.TypeVideo, msg.Video.FileID, caption
	case msg.Animation != nil:
		return models.TypeAnimation, msg.Animation.FileID, caption
	case msg.Sticker != nil:
		return models.TypeSticker, msg.Sticker.FileID, ""
	case msg.Voice != nil:
		return models.TypeVoice, msg.Voice.FileID, caption
	case msg.VideoNote != nil:
		return models.TypeVideoNote, msg.VideoNote.FileID, ""
	case msg.Document != nil:
		return models.TypeDocument, msg.Document.FileID, caption
	case msg.Audio != nil:
		return models.TypeAudio, msg.Audio.FileID, caption
	}
	return "", "", ""
}
