// Package telegram connects the Telegram Bot API to the chat hub. Updates are
// received centrally by BotService; every chat gets a Client whose write
// pump delivers what the hub sends it.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/heartbeat"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BotService receives Telegram updates and routes them to the hub.
type BotService struct {
	Bot        Sender
	Hub        *chathub.ManagerService
	Complaints *complaint.Service
	Heartbeat  *heartbeat.Monitor

	cfg config.TelegramConfig
	log zerolog.Logger
}

// NewBotAPI authorizes the bot token.
func NewBotAPI(cfg config.TelegramConfig, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	bot.Debug = cfg.Debug
	log.Info().Str("account", bot.Self.UserName).Msg("Authorized on Telegram")
	return bot, nil
}

// PollUpdates starts long polling.
func PollUpdates(bot *tgbotapi.BotAPI) <-chan tgbotapi.Update {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	return bot.GetUpdatesChan(u)
}

// NewBotService wires the service and installs it as the hub's restorer for
// numeric participant ids. complaints and hb may be nil.
func NewBotService(bot Sender, hub *chathub.ManagerService, complaints *complaint.Service, hb *heartbeat.Monitor, cfg config.TelegramConfig, log zerolog.Logger) *BotService {
	s := &BotService{
		Bot:        bot,
		Hub:        hub,
		Complaints: complaints,
		Heartbeat:  hb,
		cfg:        cfg,
		log:        log.With().Str("component", "telegram").Logger(),
	}
	hub.SetClientRestorer(s.RestoreClient)
	return s
}

// RestoreClient builds a client for a participant id that is a Telegram chat
// id. The hub calls it when it has to reach a chat with no live client.
func (s *BotService) RestoreClient(userID string) (chathub.Client, error) {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a telegram chat id", chathub.ErrInvalidArgument, userID)
	}
	return NewClient(chatID, s.Bot, s.Hub, s.log), nil
}

// Run processes updates until ctx is done or the channel closes.
func (s *BotService) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	s.log.Info().Msg("Telegram update loop started")
	defer s.log.Info().Msg("Telegram update loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if s.Heartbeat != nil {
		s.Heartbeat.Beat()
	}
	msg := update.Message
	if msg == nil {
		return
	}

	userID := s.touch(ctx, msg)

	if msg.IsCommand() {
		s.handleCommand(ctx, msg, userID)
		return
	}

	msgType, content, caption := extractMedia(msg)
	if msgType == "" {
		s.reply(userID, "unsupported_message_type")
		return
	}
	s.push(ctx, models.ChatMessage{
		SenderID: userID,
		Type:     msgType,
		Content:  content,
		Metadata: caption,
	})
}

// touch registers the chat as a participant and persists it whenever the
// stored profile changes.
func (s *BotService) touch(ctx context.Context, msg *tgbotapi.Message) string {
	u := models.User{
		ID:         strconv.FormatInt(msg.Chat.ID, 10),
		Platform:   models.PlatformTelegram,
		TelegramID: msg.Chat.ID,
	}
	if msg.From != nil {
		u.Username = msg.From.UserName
		u.Language = s.Hub.MatchLanguage(msg.From.LanguageCode)
	}

	stored, changed := s.Hub.Matcher.Participants.Touch(u)
	if changed && s.Hub.Storage != nil {
		if err := s.Hub.Storage.SaveUser(ctx, &stored); err != nil {
			s.log.Error().Err(err).Str("participant", u.ID).Msg("Failed to save user")
		}
	}
	return u.ID
}

func (s *BotService) handleCommand(ctx context.Context, msg *tgbotapi.Message, userID string) {
	command, args := msg.Command(), strings.TrimSpace(msg.CommandArguments())

	switch command {
	case "start", "help":
		s.reply(userID, "welcome")
	case "chat", "search":
		s.push(ctx, models.ChatMessage{SenderID: userID, Type: models.CommandChat})
	case "next":
		s.push(ctx, models.ChatMessage{SenderID: userID, Type: models.CommandNext})
	case "leave", "stop":
		s.push(ctx, models.ChatMessage{SenderID: userID, Type: models.CommandLeave})
	case "status":
		s.push(ctx, models.ChatMessage{SenderID: userID, Type: models.CommandStatus})
	case "gender", "interest", "interests":
		key := HandlePreferenceCommand(ctx, command, args, userID, s.Hub.Matcher, s.Hub.Storage, s.log)
		s.reply(userID, key)
	case "report":
		s.handleReport(ctx, userID, args)
	case "broadcast", "ban", "unban", "end", "stats":
		if !s.cfg.IsAdmin(msg.Chat.ID) {
			s.reply(userID, "not_authorized")
			return
		}
		s.handleAdminCommand(ctx, userID, command, args)
	default:
		s.reply(userID, "welcome")
	}
}

// handleReport files a complaint against the current partner:
// /report <category> [details].
func (s *BotService) handleReport(ctx context.Context, userID, args string) {
	if s.Complaints == nil {
		s.reply(userID, "internal_error")
		return
	}
	keyword, details, _ := strings.Cut(args, " ")
	if keyword == "" {
		s.reply(userID, "report_usage")
		return
	}
	session, ok := s.Hub.Matcher.Sessions.SessionOf(userID)
	if !ok {
		s.reply(userID, "report_not_in_chat")
		return
	}

	_, err := s.Complaints.Report(ctx, userID, session.PartnerOf(userID), session.ID, keyword, strings.TrimSpace(details))
	switch {
	case errors.Is(err, complaint.ErrUnknownCategory):
		s.reply(userID, "report_usage")
	case err != nil:
		s.log.Error().Err(err).Str("participant", userID).Msg("Failed to file complaint")
		s.Hub.Errors.Record(err, "report", userID)
		s.reply(userID, "internal_error")
	default:
		s.reply(userID, "report_submitted")
	}
}

func (s *BotService) handleAdminCommand(ctx context.Context, adminID, command, args string) {
	fields := strings.Fields(args)

	switch command {
	case "stats":
		st := s.Hub.Stats()
		s.reply(adminID, "admin_stats", st.Waiting, st.Paired, st.Banned, st.Known)

	case "broadcast":
		if args == "" {
			s.reply(adminID, "admin_usage_broadcast")
			return
		}
		sent, failed := s.Hub.Broadcast(ctx, args)
		s.reply(adminID, "broadcast_done", sent, failed)

	case "ban":
		if len(fields) < 2 {
			s.reply(adminID, "admin_usage_ban")
			return
		}
		hours, err := strconv.Atoi(fields[1])
		if err != nil {
			s.reply(adminID, "admin_usage_ban")
			return
		}
		reason := strings.Join(fields[2:], " ")
		rec, err := s.Hub.Ban(ctx, fields[0], hours, reason)
		if err != nil && !errors.Is(err, chathub.ErrInternal) {
			s.replyError(adminID, fields[0], err)
			return
		}
		s.reply(adminID, "admin_banned", rec.SubjectID, rec.ExpiresAt.Format(time.RFC3339))

	case "unban":
		if len(fields) != 1 {
			s.reply(adminID, "admin_usage_id", "/unban")
			return
		}
		if err := s.Hub.Unban(ctx, fields[0]); err != nil {
			s.replyError(adminID, fields[0], err)
			return
		}
		s.reply(adminID, "admin_unbanned", fields[0])

	case "end":
		if len(fields) == 0 {
			s.reply(adminID, "admin_usage_id", "/end")
			return
		}
		out, err := s.Hub.ForceEnd(ctx, fields[0], strings.Join(fields[1:], " "))
		if err != nil && !errors.Is(err, chathub.ErrInternal) {
			s.replyError(adminID, fields[0], err)
			return
		}
		s.reply(adminID, "admin_ended", fields[0], out.Kind.String())
	}
}

func (s *BotService) replyError(adminID, subject string, err error) {
	switch {
	case errors.Is(err, chathub.ErrNotFound):
		s.reply(adminID, "admin_not_found", subject)
	case errors.Is(err, chathub.ErrInvalidArgument):
		s.reply(adminID, "invalid_request")
	default:
		s.log.Error().Err(err).Str("subject", subject).Msg("Admin command failed")
		s.reply(adminID, "internal_error")
	}
}

// AlertAdmins tells every configured admin that updates stopped arriving. It
// talks to the Bot API directly so it does not depend on the hub loop.
func (s *BotService) AlertAdmins(_ context.Context, silence time.Duration) {
	text := fmt.Sprintf("bot_unresponsive: %s", silence.Round(time.Second))
	if s.Hub.Localizer != nil {
		text = s.Hub.Localizer.Format(localization.DefaultLanguage, "bot_unresponsive", silence.Round(time.Second).String())
	}
	for _, id := range s.cfg.AdminIDs {
		if _, err := s.Bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
			s.log.Error().Err(err).Int64("admin", id).Msg("Failed to alert admin")
		}
	}
}

func (s *BotService) reply(userID, key string, args ...any) {
	s.Hub.SendText(userID, models.SystemInfo, key, args...)
}

func (s *BotService) push(ctx context.Context, msg models.ChatMessage) {
	select {
	case s.Hub.IncomingCh <- msg:
	case <-ctx.Done():
	case <-s.Hub.Done():
	}
}
