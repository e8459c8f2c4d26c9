package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ChatRoom represents a live chat room bound to a program/stream.
type ChatRoom struct {
	// RoomID is the unique identifier for the chat room (UUID).
	RoomID string `gorm:"primaryKey"`
	// Title is the operator-facing name of the room.
	Title string
	// ProgramID links the room to the video program it accompanies.
	ProgramID string `gorm:"index"`
	// IsActive indicates whether the room currently accepts messages.
	IsActive bool
	// StartedAt is the timestamp when the room was opened.
	StartedAt time.Time
	// EndedAt is the timestamp when the room was closed.
	EndedAt time.Time
}

// EventRecord is a persisted transport event. History pages are read straight
// from this table, so a page contains created and deleted events in the order
// they were published.
type EventRecord struct {
	ID uint `gorm:"primaryKey"`
	// RoomID is the room channel the event was published on.
	RoomID string `gorm:"type:uuid;not null;index:idx_room_timetoken"`
	// PubSubID is the transport-assigned ID of the carried message.
	PubSubID string `gorm:"index"`
	// Event is the wire event tag (message-created, image-deleted, ...).
	Event string `gorm:"not null"`
	// Payload is the raw event envelope as published.
	Payload []byte `gorm:"type:jsonb;not null"`
	// Timetoken is the transport timestamp, unix milliseconds.
	Timetoken int64     `gorm:"not null;index:idx_room_timetoken"`
	CreatedAt time.Time
}

// ReactionRecord is a persisted reaction vote on a message.
type ReactionRecord struct {
	// ActionID is the transport-assigned vote ID (UUID).
	ActionID string `gorm:"primaryKey"`
	// MessageID is the transport ID of the message the vote belongs to.
	MessageID string `gorm:"index"`
	RoomID    string `gorm:"type:uuid;index"`
	UserID    string
	// Value is the reaction kind identifier.
	Value     string
	CreatedAt time.Time
}

// ReportRecord is a user report against a message, reviewed by operators.
type ReportRecord struct {
	gorm.Model

	RoomID     string `gorm:"type:uuid;index"`
	MessageID  string `gorm:"index"`
	ReporterID string
	Reason     string `gorm:"type:text"`
}

// User represents an authenticated chat participant.
type User struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Nickname  string `gorm:"index" json:"nickname"`
	AvatarURL string `json:"avatar_url"`
	// Interests drive future room recommendations; stored as a text array.
	Interests pq.StringArray `gorm:"type:text[]" json:"interests,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// BeforeCreate is a GORM hook generating a fresh UUID when the ID is unset.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
