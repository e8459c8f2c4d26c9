package chatroom_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"streamroom/sdk/internal/chatroom"
	"streamroom/sdk/internal/models"
)

func TestDecodeEventMessageCreated(t *testing.T) {
	raw := mustEnvelope(models.WireEventMessageCreated, models.MessagePayload{
		ID:             "MSG-1",
		Message:        "hello",
		SenderID:       "u1",
		SenderNickname: "ana",
	})

	ev, err := chatroom.DecodeEvent(raw)
	assert.NoError(t, err)
	assert.Equal(t, chatroom.EventMessageCreated, ev.Kind)
	assert.False(t, ev.IsDeleted())
	assert.NotNil(t, ev.Message)
	assert.Nil(t, ev.Image)
	// logical identity is case normalized
	assert.Equal(t, models.ChatMessageID("msg-1"), ev.LogicalID())

	msg := ev.ChatMessage("room-1", time.UnixMilli(1000))
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "ana", msg.Sender.Nickname)
	assert.Equal(t, "room-1", msg.RoomID)
}

func TestDecodeEventImageCreated(t *testing.T) {
	raw := mustEnvelope(models.WireEventImageCreated, models.ImagePayload{
		ID:          "img-1",
		SenderID:    "u1",
		ImageURL:    "https://cdn.example/img.png",
		ImageWidth:  640,
		ImageHeight: 480,
	})

	ev, err := chatroom.DecodeEvent(raw)
	assert.NoError(t, err)
	assert.Equal(t, chatroom.EventImageCreated, ev.Kind)
	assert.NotNil(t, ev.Image)

	msg := ev.ChatMessage("room-1", time.UnixMilli(1000))
	if assert.NotNil(t, msg.Image) {
		assert.Equal(t, "https://cdn.example/img.png", msg.Image.URL)
		assert.Equal(t, 640, msg.Image.Width)
		assert.Equal(t, 480, msg.Image.Height)
	}
}

func TestDecodeEventDeletedVariants(t *testing.T) {
	for _, tag := range []string{models.WireEventMessageDeleted, models.WireEventImageDeleted} {
		raw := mustEnvelope(tag, models.MessagePayload{ID: "gone-1"})
		ev, err := chatroom.DecodeEvent(raw)
		assert.NoError(t, err, tag)
		assert.True(t, ev.IsDeleted(), tag)
		assert.Equal(t, models.ChatMessageID("gone-1"), ev.LogicalID(), tag)
	}
}

func TestDecodeEventFilterReasons(t *testing.T) {
	raw := mustEnvelope(models.WireEventMessageCreated, models.MessagePayload{
		ID:              "msg-1",
		Message:         "***",
		FilteredMessage: "***",
		ContentFilter:   []string{"profanity"},
	})

	ev, err := chatroom.DecodeEvent(raw)
	assert.NoError(t, err)
	assert.Equal(t, []string{"profanity"}, ev.FilterReasons())

	msg := ev.ChatMessage("room-1", time.UnixMilli(1000))
	if assert.NotNil(t, msg.Filter) {
		assert.Equal(t, "***", msg.Filter.FilteredText)
	}
}

func TestDecodeEventFailures(t *testing.T) {
	tests := []struct {
		name  string
		raw   []byte
		field string
	}{
		{"not json", []byte("{nope"), "envelope"},
		{"missing event tag", []byte(`{"payload":{"id":"m1"}}`), "event"},
		{"unknown event tag", []byte(`{"event":"message-pinned","payload":{"id":"m1"}}`), "event"},
		{"missing payload", []byte(`{"event":"message-created"}`), "payload"},
		{"null payload", []byte(`{"event":"message-created","payload":null}`), "payload"},
		{"malformed payload", []byte(`{"event":"message-created","payload":[1,2]}`), "payload"},
		{"missing message id", []byte(`{"event":"message-created","payload":{"message":"hi"}}`), "payload.id"},
		{"missing image id", []byte(`{"event":"image-created","payload":{"imageUrl":"x"}}`), "payload.id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chatroom.DecodeEvent(tt.raw)
			var decodeErr *chatroom.DecodeError
			if assert.ErrorAs(t, err, &decodeErr) {
				assert.Equal(t, tt.field, decodeErr.Field)
			}
		})
	}
}

func TestDecodeErrorUnwrap(t *testing.T) {
	_, err := chatroom.DecodeEvent([]byte(`{"event":"reaction-created","payload":{"id":"m1"}}`))
	var decodeErr *chatroom.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.NotNil(t, errors.Unwrap(decodeErr))
	assert.Contains(t, decodeErr.Error(), "reaction-created")
}
