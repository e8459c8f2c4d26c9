package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"streamroom/sdk/internal/models"
)

// ErrImageNotFound is returned when no image bytes are stored under an ID.
var ErrImageNotFound = errors.New("storage: image not found")

// Storage is the persistence surface of the room service.
type Storage interface {
	SaveRoom(room *models.ChatRoom) error
	CloseRoom(roomID string) error
	GetRoomByID(roomID string) (*models.ChatRoom, error)
	GetActiveRoomIDs() ([]string, error)

	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)

	AppendEvent(rec *models.EventRecord) error
	EventByPubSubID(roomID, pubsubID string) (*models.EventRecord, error)
	HistoryPage(roomID string, olderThan int64, limit int) ([]models.EventRecord, error)

	SaveReaction(rec *models.ReactionRecord) error
	DeleteReaction(messageID, actionID string) error
	SaveReport(rec *models.ReportRecord) error

	SaveImage(id string, data []byte) error
	GetImage(id string) ([]byte, error)
}

// Service implements Storage over PostgreSQL and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveRoom persists a chat room.
func (s *Service) SaveRoom(room *models.ChatRoom) error {
	return s.DB.Save(room).Error
}

// CloseRoom marks a room inactive and stamps its end time.
func (s *Service) CloseRoom(roomID string) error {
	return s.DB.Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		}).Error
}

func (s *Service) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("chat room not found")
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, err
	}
	return &room, nil
}

// GetActiveRoomIDs returns the IDs of all rooms currently accepting messages.
func (s *Service) GetActiveRoomIDs() ([]string, error) {
	var roomIDs []string
	if err := s.DB.Model(&models.ChatRoom{}).
		Where("is_active = ?", true).
		Pluck("room_id", &roomIDs).Error; err != nil {
		log.Printf("ERROR: Failed to retrieve active RoomIDs: %v", err)
		return nil, err
	}
	return roomIDs, nil
}

// SaveUser persists a chat participant.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AppendEvent appends a published event to the room's event log.
func (s *Service) AppendEvent(rec *models.EventRecord) error {
	if err := s.DB.Create(rec).Error; err != nil {
		log.Printf("ERROR: Failed to append event for room %s: %v", rec.RoomID, err)
		return err
	}
	return nil
}

// EventByPubSubID returns the event that first carried the given transport
// message ID.
func (s *Service) EventByPubSubID(roomID, pubsubID string) (*models.EventRecord, error) {
	var rec models.EventRecord
	err := s.DB.Where("room_id = ? AND pub_sub_id = ?", roomID, pubsubID).
		Order("timetoken asc").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// HistoryPage reads one page of the room's event log, newest first, strictly
// older than olderThan (0 means the newest page). A room with no events
// returns an empty page, not an error.
func (s *Service) HistoryPage(roomID string, olderThan int64, limit int) ([]models.EventRecord, error) {
	query := s.DB.Where("room_id = ?", roomID)
	if olderThan > 0 {
		query = query.Where("timetoken < ?", olderThan)
	}
	var rows []models.EventRecord
	if err := query.Order("timetoken desc").Limit(limit).Find(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rows, nil
		}
		log.Printf("ERROR: Failed to get history for room %s: %v", roomID, err)
		return nil, err
	}
	return rows, nil
}

// SaveReaction persists a reaction vote.
func (s *Service) SaveReaction(rec *models.ReactionRecord) error {
	return s.DB.Create(rec).Error
}

// DeleteReaction removes a vote by its action ID.
func (s *Service) DeleteReaction(messageID, actionID string) error {
	return s.DB.Where("message_id = ? AND action_id = ?", messageID, actionID).
		Delete(&models.ReactionRecord{}).Error
}

// SaveReport persists a user report for operator review.
func (s *Service) SaveReport(rec *models.ReportRecord) error {
	if err := s.DB.Create(rec).Error; err != nil {
		log.Printf("ERROR: Failed to save report for room %s: %v", rec.RoomID, err)
		return err
	}
	return nil
}

// SaveImage stores uploaded image bytes in Redis.
func (s *Service) SaveImage(id string, data []byte) error {
	return s.Redis.Set(s.Ctx, "image:"+id, data, 24*time.Hour).Err()
}

// GetImage fetches uploaded image bytes.
func (s *Service) GetImage(id string) ([]byte, error) {
	data, err := s.Redis.Get(s.Ctx, "image:"+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
