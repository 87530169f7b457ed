package chathub

import (
	"context"
	"fmt"
	"strangerchat/backend/internal/models"
)

// StartAdminListener applies commands published on the admin bus (cmd/admin)
// to the live state until ctx is done.
func (m *ManagerService) StartAdminListener(ctx context.Context) {
	if m.Storage == nil {
		return
	}
	cmds, closeFn := m.Storage.SubscribeAdminCommands(ctx)

	go func() {
		defer closeFn()
		for cmd := range cmds {
			if err := m.ApplyAdminCommand(ctx, cmd); err != nil {
				m.log.Warn().Err(err).Str("action", cmd.Action).Str("subject", cmd.Subject).Msg("Admin command failed")
				continue
			}
			m.log.Info().Str("action", cmd.Action).Str("subject", cmd.Subject).Msg("Admin command applied")
		}
	}()
}

// ApplyAdminCommand executes one admin bus command.
func (m *ManagerService) ApplyAdminCommand(ctx context.Context, cmd models.AdminCommand) error {
	switch cmd.Action {
	case models.AdminBan:
		_, err := m.Ban(ctx, cmd.Subject, cmd.Hours, cmd.Reason)
		return err
	case models.AdminUnban:
		return m.Unban(ctx, cmd.Subject)
	case models.AdminEnd:
		_, err := m.ForceEnd(ctx, cmd.Subject, cmd.Reason)
		return err
	case models.AdminBroadcast:
		if cmd.Text == "" {
			return fmt.Errorf("%w: empty broadcast", ErrInvalidArgument)
		}
		m.Broadcast(ctx, cmd.Text)
		return nil
	}
	return fmt.Errorf("%w: unknown admin action %q", ErrInvalidArgument, cmd.Action)
}
