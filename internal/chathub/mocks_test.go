package chathub_test

import (
	"context"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a testify/mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockStorage) LoadUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) SaveBan(ctx context.Context, ban models.BanRecord) error {
	return m.Called(ctx, ban).Error(0)
}

func (m *MockStorage) DeleteBan(ctx context.Context, subjectID string) error {
	return m.Called(ctx, subjectID).Error(0)
}

func (m *MockStorage) LoadBans(ctx context.Context) ([]models.BanRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BanRecord), args.Error(1)
}

func (m *MockStorage) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	return m.Called(ctx, room).Error(0)
}

func (m *MockStorage) CloseRoom(ctx context.Context, roomID, reason, endedBy string) error {
	return m.Called(ctx, roomID, reason, endedBy).Error(0)
}

func (m *MockStorage) CloseActiveRooms(ctx context.Context, reason string) (int64, error) {
	args := m.Called(ctx, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) SaveComplaint(ctx context.Context, complaint *models.Complaint) error {
	return m.Called(ctx, complaint).Error(0)
}

func (m *MockStorage) ComplaintWeightSince(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) GetLastBanDate(ctx context.Context, userID string) (time.Time, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockStorage) MarkComplaintsBanned(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockStorage) PublishAdminCommand(ctx context.Context, cmd models.AdminCommand) error {
	return m.Called(ctx, cmd).Error(0)
}

func (m *MockStorage) SubscribeAdminCommands(ctx context.Context) (<-chan models.AdminCommand, func() error) {
	args := m.Called(ctx)
	return args.Get(0).(<-chan models.AdminCommand), args.Get(1).(func() error)
}

// mockClient records what the hub sends to it.
type mockClient struct {
	userID string
	send   chan models.ChatMessage

	mu     sync.Mutex
	closed bool
}

func newMockClient(userID string) *mockClient {
	return newMockClientWithBuffer(userID, 64)
}

func newMockClientWithBuffer(userID string, size int) *mockClient {
	return &mockClient{userID: userID, send: make(chan models.ChatMessage, size)}
}

func (c *mockClient) GetUserID() string                         { return c.userID }
func (c *mockClient) GetSendChannel() chan<- models.ChatMessage { return c.send }
func (c *mockClient) Run()                                      {}

func (c *mockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns every message queued so far.
func (c *mockClient) drain() []models.ChatMessage {
	var out []models.ChatMessage
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func (c *mockClient) types() []string {
	var out []string
	for _, msg := range c.drain() {
		out = append(out, msg.Type)
	}
	return out
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMatcher(clock chathub.Clock) *chathub.MatcherService {
	return chathub.NewMatcherService(
		chathub.NewBanRegistry(clock),
		chathub.NewWaitingPool(),
		chathub.NewSessionTable(),
		chathub.NewParticipantRegistry(clock),
		clock,
	)
}

// createTestHub builds a hub over fresh stores. s may be nil.
func createTestHub(t *testing.T, s *MockStorage, clock chathub.Clock) *chathub.ManagerService {
	t.Helper()
	loc, err := localization.Default()
	require.NoError(t, err)

	m := newTestMatcher(clock)
	if s == nil {
		mod := chathub.NewModerationService(m, nil, zerolog.Nop())
		return chathub.NewManagerService(mod, nil, loc, zerolog.Nop())
	}
	mod := chathub.NewModerationService(m, s, zerolog.Nop())
	return chathub.NewManagerService(mod, s, loc, zerolog.Nop())
}
