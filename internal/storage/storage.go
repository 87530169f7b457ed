package storage

import (
	"context"
	"errors"
	"strangerchat/backend/internal/models"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence boundary of the service. Live matchmaking state
// never reads from it; it is written after the fact and read back at startup.
type Storage interface {
	SaveUser(ctx context.Context, user *models.User) error
	LoadUsers(ctx context.Context) ([]models.User, error)

	SaveBan(ctx context.Context, ban models.BanRecord) error
	DeleteBan(ctx context.Context, subjectID string) error
	LoadBans(ctx context.Context) ([]models.BanRecord, error)

	SaveRoom(ctx context.Context, room *models.ChatRoom) error
	CloseRoom(ctx context.Context, roomID, reason, endedBy string) error
	CloseActiveRooms(ctx context.Context, reason string) (int64, error)

	SaveComplaint(ctx context.Context, complaint *models.Complaint) error
	ComplaintWeightSince(ctx context.Context, userID string, since time.Time) (int, error)
	GetLastBanDate(ctx context.Context, userID string) (time.Time, error)
	MarkComplaintsBanned(ctx context.Context, userID string) error

	PublishAdminCommand(ctx context.Context, cmd models.AdminCommand) error
	SubscribeAdminCommands(ctx context.Context) (<-chan models.AdminCommand, func() error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates every table the service writes.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.BanRecord{},
		&models.ChatRoom{},
		&models.Complaint{},
	)
}

// SaveUser upserts a participant profile.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

func (s *Service) LoadUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("first_seen asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SaveBan writes the ban to PostgreSQL and mirrors it into Redis with a TTL
// equal to the remaining ban time.
func (s *Service) SaveBan(ctx context.Context, ban models.BanRecord) error {
	if err := s.DB.WithContext(ctx).Save(&ban).Error; err != nil {
		return err
	}
	return s.mirrorBan(ctx, ban)
}

func (s *Service) DeleteBan(ctx context.Context, subjectID string) error {
	err := s.DB.WithContext(ctx).Where("subject_id = ?", subjectID).Delete(&models.BanRecord{}).Error
	if err != nil {
		return err
	}
	return s.unmirrorBan(ctx, subjectID)
}

// LoadBans returns the bans that have not expired yet.
func (s *Service) LoadBans(ctx context.Context) ([]models.BanRecord, error) {
	var bans []models.BanRecord
	err := s.DB.WithContext(ctx).
		Where("expires_at > ?", time.Now()).
		Order("expires_at asc").
		Find(&bans).Error
	if err != nil {
		return nil, err
	}
	return bans, nil
}

func (s *Service) SaveRoom(ctx context.Context, room *models.ChatRoom) error {
	return s.DB.WithContext(ctx).Save(room).Error
}

// CloseRoom marks the room inactive and records why and by whom it ended.
func (s *Service) CloseRoom(ctx context.Context, roomID, reason, endedBy string) error {
	return s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"ended_at":   time.Now(),
			"end_reason": reason,
			"ended_by":   endedBy,
		}).Error
}

// CloseActiveRooms closes every room still flagged active. Sessions do not
// survive a restart, so rooms left open by a previous process are stale.
func (s *Service) CloseActiveRooms(ctx context.Context, reason string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"ended_at":   time.Now(),
			"end_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (s *Service) SaveComplaint(ctx context.Context, complaint *models.Complaint) error {
	if complaint.Status == "" {
		complaint.Status = models.ComplaintStatusNew
	}
	return s.DB.WithContext(ctx).Create(complaint).Error
}

// ComplaintWeightSince sums the weight of complaints against userID filed
// after since that have not already led to a ban.
func (s *Service) ComplaintWeightSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var total int
	err := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Select("COALESCE(SUM(weight), 0)").
		Where("reported_user_id = ? AND created_at >= ? AND status = ?", userID, since, models.ComplaintStatusNew).
		Scan(&total).Error
	return total, err
}

// GetLastBanDate returns when complaints last got userID banned, or the zero
// time if they never did.
func (s *Service) GetLastBanDate(ctx context.Context, userID string) (time.Time, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).
		Where("reported_user_id = ? AND status = ?", userID, models.ComplaintStatusBanned).
		Order("created_at desc").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return c.CreatedAt, nil
}

// MarkComplaintsBanned consumes the open complaints against userID.
func (s *Service) MarkComplaintsBanned(ctx context.Context, userID string) error {
	return s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("reported_user_id = ? AND status = ?", userID, models.ComplaintStatusNew).
		Update("status", models.ComplaintStatusBanned).Error
}
