package complaint_test

import (
	"context"
	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveComplaint(ctx context.Context, c *models.Complaint) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockStore) ComplaintWeightSince(ctx context.Context, userID string, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) GetLastBanDate(ctx context.Context, userID string) (time.Time, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockStore) MarkComplaintsBanned(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type MockBanner struct {
	mock.Mock
}

func (m *MockBanner) BanFor(ctx context.Context, subject string, d time.Duration, reason string) (models.BanRecord, error) {
	args := m.Called(ctx, subject, d, reason)
	return args.Get(0).(models.BanRecord), args.Error(1)
}

func newService(store *MockStore, banner *MockBanner) *complaint.Service {
	return complaint.NewService(store, banner, config.ModerationConfig{
		ComplaintWindow: config.BanFrequencyWindow,
		BanThreshold:    config.BanThresholdWeight,
	}, zerolog.Nop())
}

func TestReport_BelowThreshold(t *testing.T) {
	store, banner := new(MockStore), new(MockBanner)
	svc := newService(store, banner)

	store.On("SaveComplaint", mock.Anything, mock.MatchedBy(func(c *models.Complaint) bool {
		return c.ComplaintType == models.ComplaintMedium && c.Weight == 50 && c.ReportedUserID == "bad" && c.RoomID == "room-1"
	})).Return(nil).Once()
	store.On("ComplaintWeightSince", mock.Anything, "bad", mock.AnythingOfType("time.Time")).Return(50, nil).Once()

	banned, err := svc.Report(context.Background(), "victim", "bad", "room-1", "spam", "links")
	require.NoError(t, err)
	assert.False(t, banned)

	store.AssertExpectations(t)
	banner.AssertNotCalled(t, "BanFor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReport_UnknownCategory(t *testing.T) {
	svc := newService(new(MockStore), new(MockBanner))
	_, err := svc.Report(context.Background(), "victim", "bad", "room-1", "boring", "")
	assert.ErrorIs(t, err, complaint.ErrUnknownCategory)
}

func TestHandleComplaint_FirstOffenceBan(t *testing.T) {
	store, banner := new(MockStore), new(MockBanner)
	svc := newService(store, banner)

	store.On("SaveComplaint", mock.Anything, mock.Anything).Return(nil)
	store.On("ComplaintWeightSince", mock.Anything, "bad", mock.Anything).Return(300, nil)
	store.On("GetLastBanDate", mock.Anything, "bad").Return(time.Time{}, nil)
	banner.On("BanFor", mock.Anything, "bad", config.BanLevel1Duration, mock.AnythingOfType("string")).
		Return(models.BanRecord{SubjectID: "bad"}, nil).Once()
	store.On("MarkComplaintsBanned", mock.Anything, "bad").Return(nil).Once()

	banned, err := svc.HandleComplaint(context.Background(), &models.Complaint{
		ReportedUserID: "bad",
		ComplaintType:  models.ComplaintCritical,
	})
	require.NoError(t, err)
	assert.True(t, banned)

	store.AssertExpectations(t)
	banner.AssertExpectations(t)
}

func TestHandleComplaint_Escalation(t *testing.T) {
	tests := []struct {
		name    string
		lastBan time.Duration
		want    time.Duration
	}{
		{"recent repeat", 2 * 24 * time.Hour, config.BanLevel3Duration},
		{"repeat this month", 10 * 24 * time.Hour, config.BanLevel2Duration},
		{"long ago", 60 * 24 * time.Hour, config.BanLevel1Duration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, banner := new(MockStore), new(MockBanner)
			svc := newService(store, banner)

			store.On("SaveComplaint", mock.Anything, mock.Anything).Return(nil)
			store.On("ComplaintWeightSince", mock.Anything, "bad", mock.Anything).Return(config.BanThresholdWeight, nil)
			store.On("GetLastBanDate", mock.Anything, "bad").Return(time.Now().Add(-tt.lastBan), nil)
			banner.On("BanFor", mock.Anything, "bad", tt.want, mock.Anything).Return(models.BanRecord{}, nil).Once()
			store.On("MarkComplaintsBanned", mock.Anything, "bad").Return(nil)

			banned, err := svc.HandleComplaint(context.Background(), &models.Complaint{ReportedUserID: "bad"})
			require.NoError(t, err)
			assert.True(t, banned)
			banner.AssertExpectations(t)
		})
	}
}

func TestHandleComplaint_SaveFails(t *testing.T) {
	store, banner := new(MockStore), new(MockBanner)
	svc := newService(store, banner)
	store.On("SaveComplaint", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := svc.HandleComplaint(context.Background(), &models.Complaint{ReportedUserID: "bad"})
	assert.ErrorIs(t, err, assert.AnError)
}
