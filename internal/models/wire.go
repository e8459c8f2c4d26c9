package models

import (
	"encoding/json"
	"time"
)

// Wire event tags. The set is closed: decoders treat any other tag as a hard
// failure rather than passing unknown events through.
const (
	WireEventMessageCreated = "message-created"
	WireEventMessageDeleted = "message-deleted"
	WireEventImageCreated   = "image-created"
	WireEventImageDeleted   = "image-deleted"
)

// Message action types carried outside the event envelope.
const (
	ActionTypeReaction = "reaction"
)

// EventEnvelope is the outermost shape of every payload published on a room
// channel.
type EventEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MessagePayload is the payload shape shared by message-created and
// message-deleted. A deleted event physically carries the full shape but only
// the ID field is semantically meaningful.
type MessagePayload struct {
	ID              string     `json:"id"`
	Message         string     `json:"message"`
	SenderID        string     `json:"senderId"`
	SenderNickname  string     `json:"senderNickname"`
	SenderImageURL  string     `json:"senderImageUrl,omitempty"`
	BadgeImageURL   string     `json:"badgeImageUrl,omitempty"`
	ProgramDateTime *time.Time `json:"programDateTime,omitempty"`
	FilteredMessage string     `json:"filteredMessage,omitempty"`
	ContentFilter   []string   `json:"contentFilter,omitempty"`
}

// ImagePayload is the payload shape shared by image-created and
// image-deleted. It carries an image reference instead of message text.
type ImagePayload struct {
	ID              string     `json:"id"`
	SenderID        string     `json:"senderId"`
	SenderNickname  string     `json:"senderNickname"`
	SenderImageURL  string     `json:"senderImageUrl,omitempty"`
	BadgeImageURL   string     `json:"badgeImageUrl,omitempty"`
	ProgramDateTime *time.Time `json:"programDateTime,omitempty"`
	ImageURL        string     `json:"imageUrl"`
	ImageWidth      int        `json:"imageWidth"`
	ImageHeight     int        `json:"imageHeight"`
	FilteredMessage string     `json:"filteredMessage,omitempty"`
	ContentFilter   []string   `json:"contentFilter,omitempty"`
}

// MessageActionPayload is published on a room's action channel when a
// reaction is added to or removed from a message.
type MessageActionPayload struct {
	ActionID  string `json:"actionId"`
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	SenderID  string `json:"senderId"`
}

// ChatMessage materializes the payload into the store entity. createdAt is
// the transport timestamp of the event carrying the payload.
func (p MessagePayload) ChatMessage(roomID string, createdAt time.Time) ChatMessage {
	return ChatMessage{
		ID:     NormalizeChatMessageID(p.ID),
		RoomID: roomID,
		Text:   p.Message,
		Sender: Sender{
			ID:        p.SenderID,
			Nickname:  p.SenderNickname,
			AvatarURL: p.SenderImageURL,
			BadgeURL:  p.BadgeImageURL,
		},
		CreatedAt:       createdAt,
		ProgramDateTime: p.ProgramDateTime,
		Filter:          contentFilter(p.FilteredMessage, p.ContentFilter),
	}
}

// ChatMessage materializes an image payload. The message text is empty for
// image-only messages.
func (p ImagePayload) ChatMessage(roomID string, createdAt time.Time) ChatMessage {
	return ChatMessage{
		ID:     NormalizeChatMessageID(p.ID),
		RoomID: roomID,
		Sender: Sender{
			ID:        p.SenderID,
			Nickname:  p.SenderNickname,
			AvatarURL: p.SenderImageURL,
			BadgeURL:  p.BadgeImageURL,
		},
		CreatedAt:       createdAt,
		ProgramDateTime: p.ProgramDateTime,
		Image: &ImageRef{
			URL:    p.ImageURL,
			Width:  p.ImageWidth,
			Height: p.ImageHeight,
		},
		Filter: contentFilter(p.FilteredMessage, p.ContentFilter),
	}
}

func contentFilter(filteredText string, reasons []string) *ContentFilter {
	if filteredText == "" && len(reasons) == 0 {
		return nil
	}
	return &ContentFilter{FilteredText: filteredText, Reasons: reasons}
}

// MarshalEnvelope wraps a payload in an event envelope and serializes it.
func MarshalEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(EventEnvelope{Event: event, Payload: raw})
}
