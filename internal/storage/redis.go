package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strangerchat/backend/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
)

// AdminChannel is the Pub/Sub channel cmd/admin publishes on.
const AdminChannel = "chat:admin"

func banKey(subjectID string) string { return "ban:" + subjectID }

func (s *Service) mirrorBan(ctx context.Context, ban models.BanRecord) error {
	if s.Redis == nil {
		return nil
	}
	ttl := time.Until(ban.ExpiresAt)
	if ttl <= 0 {
		return s.unmirrorBan(ctx, ban.SubjectID)
	}
	value := ban.Reason
	if value == "" {
		value = "active"
	}
	return s.Redis.Set(ctx, banKey(ban.SubjectID), value, ttl).Err()
}

func (s *Service) unmirrorBan(ctx context.Context, subjectID string) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Del(ctx, banKey(subjectID)).Err()
}

// IsUserBanned checks the Redis ban mirror. It lets processes without the
// in-memory registry (cmd/admin) answer cheaply.
func (s *Service) IsUserBanned(ctx context.Context, subjectID string) (bool, time.Duration, error) {
	if s.Redis == nil {
		return false, 0, errors.New("redis is not configured")
	}
	ttl, err := s.Redis.TTL(ctx, banKey(subjectID)).Result()
	if err != nil {
		return false, 0, err
	}
	// -2: no key, -1: no expiry (never written by SaveBan).
	if ttl < 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}

// PublishAdminCommand publishes cmd on the admin channel.
func (s *Service) PublishAdminCommand(ctx context.Context, cmd models.AdminCommand) error {
	if s.Redis == nil {
		return errors.New("redis is not configured")
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, AdminChannel, payload).Err()
}

// SubscribeAdminCommands decodes admin commands until ctx is done or the
// returned close function is called. Malformed payloads are skipped.
func (s *Service) SubscribeAdminCommands(ctx context.Context) (<-chan models.AdminCommand, func() error) {
	out := make(chan models.AdminCommand)
	if s.Redis == nil {
		close(out)
		return out, func() error { return nil }
	}

	pubsub := s.Redis.Subscribe(ctx, AdminChannel)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			cmd, err := decodeAdminCommand(msg)
			if err != nil {
				continue
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		pubsub.Close()
	}()
	return out, pubsub.Close
}

func decodeAdminCommand(msg *redis.Message) (models.AdminCommand, error) {
	var cmd models.AdminCommand
	if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
		return cmd, err
	}
	if cmd.Action == "" {
		return cmd, errors.New("admin command without action")
	}
	return cmd, nil
}
