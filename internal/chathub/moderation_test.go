package chathub_test

import (
	"context"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestModeration(s storage.Storage) (*chathub.ModerationService, *fakeClock) {
	clock := newFakeClock()
	return chathub.NewModerationService(newTestMatcher(clock), s, zerolog.Nop()), clock
}

func TestModeration_BanPersistsAndEvicts(t *testing.T) {
	storageMock := new(MockStorage)
	mod, clock := newTestModeration(storageMock)
	ctx := context.Background()

	storageMock.On("SaveBan", mock.Anything, mock.MatchedBy(func(b models.BanRecord) bool {
		return b.SubjectID == "bad" && b.Reason == "spam" && b.ExpiresAt.Equal(clock.Now().Add(time.Hour))
	})).Return(nil).Once()

	_, _ = mod.Matcher.RequestChat("bad")
	_, _ = mod.Matcher.RequestChat("victim")

	rec, out, err := mod.Ban(ctx, "bad", 1, "spam")
	require.NoError(t, err)
	assert.Equal(t, "bad", rec.SubjectID)
	assert.Equal(t, chathub.OutcomeEnded, out.Kind)
	assert.Equal(t, "victim", out.Partner)
	assert.Empty(t, mod.Sessions(), "the banned participant's session is gone immediately")

	storageMock.AssertExpectations(t)
}

func TestModeration_BanRejectsNonPositiveHours(t *testing.T) {
	mod, _ := newTestModeration(new(MockStorage))

	_, _, err := mod.Ban(context.Background(), "bad", 0, "")
	assert.ErrorIs(t, err, chathub.ErrInvalidArgument)
	_, _, err = mod.Ban(context.Background(), "bad", -3, "")
	assert.ErrorIs(t, err, chathub.ErrInvalidArgument)
	_, banned := mod.IsBanned("bad")
	assert.False(t, banned)
}

func TestModeration_BanSurvivesStorageFailure(t *testing.T) {
	storageMock := new(MockStorage)
	mod, _ := newTestModeration(storageMock)
	storageMock.On("SaveBan", mock.Anything, mock.Anything).Return(assert.AnError)

	_, _, err := mod.Ban(context.Background(), "bad", 2, "")
	require.NoError(t, err, "the in-memory ban is authoritative")
	_, banned := mod.IsBanned("bad")
	assert.True(t, banned)
}

func TestModeration_Unban(t *testing.T) {
	storageMock := new(MockStorage)
	mod, _ := newTestModeration(storageMock)
	ctx := context.Background()

	storageMock.On("SaveBan", mock.Anything, mock.Anything).Return(nil)
	storageMock.On("DeleteBan", mock.Anything, "bad").Return(nil).Twice()

	_, _, err := mod.Ban(ctx, "bad", 1, "")
	require.NoError(t, err)

	assert.NoError(t, mod.Unban(ctx, "bad"))
	assert.ErrorIs(t, mod.Unban(ctx, "bad"), chathub.ErrNotFound)
	storageMock.AssertExpectations(t)
}

func TestModeration_ListBansExcludesExpired(t *testing.T) {
	storageMock := new(MockStorage)
	mod, clock := newTestModeration(storageMock)
	ctx := context.Background()
	storageMock.On("SaveBan", mock.Anything, mock.Anything).Return(nil)

	_, _, _ = mod.Ban(ctx, "short", 1, "")
	_, _, _ = mod.Ban(ctx, "long", 5, "")
	clock.Advance(2 * time.Hour)

	var subjects []string
	for rec := range mod.ListBans() {
		subjects = append(subjects, rec.SubjectID)
	}
	assert.Equal(t, []string{"long"}, subjects)
	assert.Equal(t, 1, mod.Stats().Banned)
}

func TestModeration_Views(t *testing.T) {
	mod, _ := newTestModeration(nil)

	_, _ = mod.Matcher.RequestChat("a")
	_, _ = mod.Matcher.RequestChat("b")
	_, _ = mod.Matcher.RequestChat("c")
	_, _ = mod.Matcher.Participants.Touch(models.User{ID: "a"})

	require.Len(t, mod.Waiting(), 1)
	assert.Equal(t, "c", mod.Waiting()[0].ParticipantID)
	require.Len(t, mod.Sessions(), 1)
	assert.Equal(t, "a", mod.Sessions()[0].A)
	assert.Len(t, mod.ListKnownParticipants(), 1)
	assert.Equal(t, chathub.Stats{Waiting: 1, Paired: 1, Known: 1}, mod.Stats())

	out, err := mod.ForceEnd(context.Background(), "c", "")
	require.NoError(t, err)
	assert.Equal(t, chathub.OutcomeCancelled, out.Kind)
	assert.Empty(t, mod.Waiting())
}
