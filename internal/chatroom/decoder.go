package chatroom

import (
	"encoding/json"
	"fmt"
	"time"

	"streamroom/sdk/internal/models"
)

// EventKind enumerates the decoded room events. The set is closed: an
// unrecognized wire tag is a decode failure, not a passthrough.
type EventKind int

const (
	EventMessageCreated EventKind = iota
	EventMessageDeleted
	EventImageCreated
	EventImageDeleted
)

// Event is a decoded room event with its typed payload. Message is set for
// the text variants, Image for the image variants; exactly one is non-nil.
type Event struct {
	Kind    EventKind
	Message *models.MessagePayload
	Image   *models.ImagePayload
}

// IsDeleted reports whether the event tombstones a message.
func (e Event) IsDeleted() bool {
	return e.Kind == EventMessageDeleted || e.Kind == EventImageDeleted
}

// LogicalID returns the case-normalized logical identity the event targets.
func (e Event) LogicalID() models.ChatMessageID {
	if e.Message != nil {
		return models.NormalizeChatMessageID(e.Message.ID)
	}
	return models.NormalizeChatMessageID(e.Image.ID)
}

// FilterReasons returns the moderation reasons carried by the payload.
func (e Event) FilterReasons() []string {
	if e.Message != nil {
		return e.Message.ContentFilter
	}
	return e.Image.ContentFilter
}

// ChatMessage materializes the event's payload. createdAt is the transport
// timestamp of the event.
func (e Event) ChatMessage(roomID string, createdAt time.Time) models.ChatMessage {
	if e.Message != nil {
		return e.Message.ChatMessage(roomID, createdAt)
	}
	return e.Image.ChatMessage(roomID, createdAt)
}

// DecodeEvent parses a raw pub/sub payload into a typed event. Decoding is
// pure and side-effect-free; failures name the offending field.
func DecodeEvent(raw []byte) (Event, error) {
	var env models.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, &DecodeError{Field: "envelope", Err: err}
	}
	if env.Event == "" {
		return Event{}, &DecodeError{Field: "event"}
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return Event{}, &DecodeError{Field: "payload"}
	}

	switch env.Event {
	case models.WireEventMessageCreated, models.WireEventMessageDeleted:
		var p models.MessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{}, &DecodeError{Field: "payload", Err: err}
		}
		if p.ID == "" {
			return Event{}, &DecodeError{Field: "payload.id"}
		}
		kind := EventMessageCreated
		if env.Event == models.WireEventMessageDeleted {
			kind = EventMessageDeleted
		}
		return Event{Kind: kind, Message: &p}, nil

	case models.WireEventImageCreated, models.WireEventImageDeleted:
		var p models.ImagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Event{}, &DecodeError{Field: "payload", Err: err}
		}
		if p.ID == "" {
			return Event{}, &DecodeError{Field: "payload.id"}
		}
		kind := EventImageCreated
		if env.Event == models.WireEventImageDeleted {
			kind = EventImageDeleted
		}
		return Event{Kind: kind, Image: &p}, nil

	default:
		return Event{}, &DecodeError{Field: "event", Err: fmt.Errorf("unrecognized tag %q", env.Event)}
	}
}
