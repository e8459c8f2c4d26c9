package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"streamroom/sdk/internal/models"
)

// Store is the persistence the transport backend needs: every published event
// is appended to the room's event log, which is also what history pages are
// read from.
type Store interface {
	AppendEvent(rec *models.EventRecord) error
	EventByPubSubID(roomID, pubsubID string) (*models.EventRecord, error)
	HistoryPage(roomID string, olderThan int64, limit int) ([]models.EventRecord, error)
	SaveReaction(rec *models.ReactionRecord) error
	DeleteReaction(messageID, actionID string) error
}

// wireMessage is the frame published on a room's redis channel.
type wireMessage struct {
	PubSubID  string          `json:"pubsubId"`
	Timetoken int64           `json:"timetoken"`
	Payload   json.RawMessage `json:"payload"`
}

// wireAction is the frame published on a room's action channel.
type wireAction struct {
	Event   string                      `json:"event"` // "action-created" or "action-deleted"
	Payload models.MessageActionPayload `json:"payload"`
}

const (
	wireActionCreated = "action-created"
	wireActionDeleted = "action-deleted"
)

// RoomChannelName is the redis channel events for a room are published on.
func RoomChannelName(roomID string) string { return "room:" + roomID }

// RoomActionChannelName is the redis channel message actions are published on.
func RoomActionChannelName(roomID string) string { return "room:" + roomID + ":actions" }

// RedisBackend publishes room events on redis pub/sub and persists them
// through a Store. It is shared by the per-room Channel implementation and
// the HTTP server.
type RedisBackend struct {
	RDB   *redis.Client
	Store Store
}

func NewRedisBackend(rdb *redis.Client, store Store) *RedisBackend {
	return &RedisBackend{RDB: rdb, Store: store}
}

// Publish assigns an identity and timetoken to the envelope, persists it and
// broadcasts it on the room channel. The payload's id field is rewritten to
// the assigned identity so every subscriber sees the canonical ID.
func (b *RedisBackend) Publish(ctx context.Context, roomID string, payload []byte) (Message, error) {
	id := uuid.NewString()
	timetoken := time.Now().UnixMilli()

	event, rewritten, err := assignPayloadID(payload, id)
	if err != nil {
		return Message{}, fmt.Errorf("assign payload id: %w", err)
	}

	if err := b.Store.AppendEvent(&models.EventRecord{
		RoomID:    roomID,
		PubSubID:  id,
		Event:     event,
		Payload:   rewritten,
		Timetoken: timetoken,
	}); err != nil {
		return Message{}, fmt.Errorf("append event: %w", err)
	}

	frame, err := json.Marshal(wireMessage{PubSubID: id, Timetoken: timetoken, Payload: rewritten})
	if err != nil {
		return Message{}, err
	}
	if err := b.RDB.Publish(ctx, RoomChannelName(roomID), frame).Err(); err != nil {
		return Message{}, fmt.Errorf("publish event: %w", err)
	}

	return Message{ID: models.NormalizePubSubID(id), Timetoken: timetoken, Payload: rewritten}, nil
}

// PublishDeleted re-emits the payload of a published message under its
// deleted event tag. A deleted event carries the created payload shape; only
// the id is meaningful to consumers.
func (b *RedisBackend) PublishDeleted(ctx context.Context, roomID string, pubsubID string) (Message, error) {
	rec, err := b.Store.EventByPubSubID(roomID, string(pubsubID))
	if err != nil {
		return Message{}, fmt.Errorf("lookup message %s: %w", pubsubID, err)
	}

	var env models.EventEnvelope
	if err := json.Unmarshal(rec.Payload, &env); err != nil {
		return Message{}, fmt.Errorf("decode stored event: %w", err)
	}
	deletedTag := models.WireEventMessageDeleted
	if env.Event == models.WireEventImageCreated || env.Event == models.WireEventImageDeleted {
		deletedTag = models.WireEventImageDeleted
	}
	payload, err := json.Marshal(models.EventEnvelope{Event: deletedTag, Payload: env.Payload})
	if err != nil {
		return Message{}, err
	}
	return b.Publish(ctx, roomID, payload)
}

// PublishAction persists a reaction vote and broadcasts it on the room's
// action channel.
func (b *RedisBackend) PublishAction(ctx context.Context, roomID string, action MessageAction) (MessageAction, error) {
	action.ActionID = uuid.NewString()
	if err := b.Store.SaveReaction(&models.ReactionRecord{
		ActionID:  action.ActionID,
		MessageID: string(action.MessageID),
		RoomID:    roomID,
		UserID:    action.SenderID,
		Value:     action.Value,
		CreatedAt: time.Now(),
	}); err != nil {
		return MessageAction{}, fmt.Errorf("save reaction: %w", err)
	}
	if err := b.publishAction(ctx, roomID, wireActionCreated, action); err != nil {
		return MessageAction{}, err
	}
	return action, nil
}

// RemoveAction deletes a reaction vote and broadcasts the removal.
func (b *RedisBackend) RemoveAction(ctx context.Context, roomID string, action MessageAction) error {
	if err := b.Store.DeleteReaction(string(action.MessageID), action.ActionID); err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return b.publishAction(ctx, roomID, wireActionDeleted, action)
}

func (b *RedisBackend) publishAction(ctx context.Context, roomID, event string, action MessageAction) error {
	frame, err := json.Marshal(wireAction{Event: event, Payload: models.MessageActionPayload{
		ActionID:  action.ActionID,
		MessageID: string(action.MessageID),
		Type:      action.Type,
		Value:     action.Value,
		SenderID:  action.SenderID,
	}})
	if err != nil {
		return err
	}
	if err := b.RDB.Publish(ctx, RoomActionChannelName(roomID), frame).Err(); err != nil {
		return fmt.Errorf("publish action: %w", err)
	}
	return nil
}

// History reads one page of the room's event log, newest first.
func (b *RedisBackend) History(ctx context.Context, roomID string, olderThan int64, limit int) (History, error) {
	rows, err := b.Store.HistoryPage(roomID, olderThan, limit)
	if err != nil {
		return History{}, fmt.Errorf("history page: %w", err)
	}
	if len(rows) == 0 {
		return History{}, ErrNoHistory
	}
	hist := History{Messages: make([]Message, 0, len(rows))}
	for _, row := range rows {
		hist.Messages = append(hist.Messages, Message{
			ID:        models.NormalizePubSubID(row.PubSubID),
			Timetoken: row.Timetoken,
			Payload:   row.Payload,
		})
	}
	hist.OldestTimetoken = hist.Messages[len(hist.Messages)-1].Timetoken
	return hist, nil
}

// assignPayloadID rewrites the envelope's payload id field and returns the
// event tag alongside the rewritten envelope.
func assignPayloadID(envelope []byte, id string) (event string, rewritten []byte, err error) {
	var env models.EventEnvelope
	if err := json.Unmarshal(envelope, &env); err != nil {
		return "", nil, err
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("envelope has no event tag")
	}
	var payload map[string]any
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return "", nil, err
	}
	payload["id"] = id
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}
	out, err := json.Marshal(models.EventEnvelope{Event: env.Event, Payload: raw})
	if err != nil {
		return "", nil, err
	}
	return env.Event, out, nil
}

// RedisChannel is the Channel implementation for one room on a RedisBackend.
type RedisChannel struct {
	backend *RedisBackend
	roomID  string
	userID  string

	pubsub *redis.PubSub
}

// NewRedisChannel binds a room on the backend. userID is stamped on outgoing
// message actions.
func NewRedisChannel(backend *RedisBackend, roomID, userID string) *RedisChannel {
	return &RedisChannel{backend: backend, roomID: roomID, userID: userID}
}

// Subscribe starts the delivery goroutine for the room's event and action
// channels. The goroutine runs until Unsubscribe closes the subscription.
func (c *RedisChannel) Subscribe(delegate Delegate) error {
	pubsub := c.backend.RDB.Subscribe(context.Background(),
		RoomChannelName(c.roomID), RoomActionChannelName(c.roomID))
	c.pubsub = pubsub

	go func() {
		actions := RoomActionChannelName(c.roomID)
		for msg := range pubsub.Channel() {
			if msg.Channel == actions {
				c.dispatchAction(delegate, []byte(msg.Payload))
				continue
			}
			var frame wireMessage
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				log.Printf("ERROR: undecodable frame on %s: %v", msg.Channel, err)
				continue
			}
			delegate.OnMessage(Message{
				ID:        models.NormalizePubSubID(frame.PubSubID),
				Timetoken: frame.Timetoken,
				Payload:   frame.Payload,
			})
		}
	}()
	return nil
}

func (c *RedisChannel) dispatchAction(delegate Delegate, payload []byte) {
	var frame wireAction
	if err := json.Unmarshal(payload, &frame); err != nil {
		log.Printf("ERROR: undecodable action frame on room %s: %v", c.roomID, err)
		return
	}
	action := MessageAction{
		ActionID:  frame.Payload.ActionID,
		MessageID: models.NormalizePubSubID(frame.Payload.MessageID),
		Type:      frame.Payload.Type,
		Value:     frame.Payload.Value,
		SenderID:  frame.Payload.SenderID,
	}
	switch frame.Event {
	case wireActionCreated:
		delegate.OnMessageActionCreated(action)
	case wireActionDeleted:
		delegate.OnMessageActionDeleted(action)
	default:
		log.Printf("ERROR: unknown action event %q on room %s", frame.Event, c.roomID)
	}
}

// Unsubscribe closes the subscription, which drains pubsub.Channel() and ends
// the delivery goroutine.
func (c *RedisChannel) Unsubscribe() {
	if c.pubsub == nil {
		return
	}
	if err := c.pubsub.Close(); err != nil {
		log.Printf("ERROR: closing subscription for room %s: %v", c.roomID, err)
	}
	c.pubsub = nil
}

func (c *RedisChannel) Send(ctx context.Context, payload []byte) (Message, error) {
	return c.backend.Publish(ctx, c.roomID, payload)
}

func (c *RedisChannel) SendMessageAction(ctx context.Context, actionType, value string, target models.PubSubID) (MessageAction, error) {
	return c.backend.PublishAction(ctx, c.roomID, MessageAction{
		MessageID: target,
		Type:      actionType,
		Value:     value,
		SenderID:  c.userID,
	})
}

func (c *RedisChannel) RemoveMessageAction(ctx context.Context, target models.PubSubID, actionID string) error {
	return c.backend.RemoveAction(ctx, c.roomID, MessageAction{
		MessageID: target,
		ActionID:  actionID,
		Type:      models.ActionTypeReaction,
		SenderID:  c.userID,
	})
}

func (c *RedisChannel) FetchHistory(ctx context.Context, olderThan int64, limit int) (History, error) {
	return c.backend.History(ctx, c.roomID, olderThan, limit)
}
