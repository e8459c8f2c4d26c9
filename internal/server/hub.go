package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

// wsFrame wraps a relayed pub/sub payload with its source channel so clients
// can tell room events from message actions.
type wsFrame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans live room traffic out to websocket subscribers. One hub serves
// every room: it pattern-subscribes to all room channels and relays frames
// to the clients watching the matching room.
type Hub struct {
	RDB *redis.Client

	RegisterCh   chan *WSClient
	UnregisterCh chan *WSClient

	clients map[*WSClient]struct{}
}

func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		RDB:          rdb,
		RegisterCh:   make(chan *WSClient),
		UnregisterCh: make(chan *WSClient),
		clients:      make(map[*WSClient]struct{}),
	}
}

// Run is the hub's dispatch loop.
func (h *Hub) Run() {
	ctx := context.Background()
	pubsub := h.RDB.PSubscribe(ctx, "room:*")
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case client := <-h.RegisterCh:
			h.clients[client] = struct{}{}
			log.Printf("ws client %s joined room %s", client.UserID, client.RoomID)

		case client := <-h.UnregisterCh:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			roomID := roomIDFromChannel(msg.Channel)
			if roomID == "" {
				continue
			}
			frame, err := json.Marshal(wsFrame{Channel: msg.Channel, Payload: json.RawMessage(msg.Payload)})
			if err != nil {
				log.Printf("ERROR: Failed to encode ws frame for %s: %v", msg.Channel, err)
				continue
			}
			for client := range h.clients {
				if client.RoomID != roomID {
					continue
				}
				select {
				case client.Send <- frame:
				default:
					// slow client, drop it
					delete(h.clients, client)
					close(client.Send)
				}
			}
		}
	}
}

// roomIDFromChannel extracts the room ID from an event or action channel
// name.
func roomIDFromChannel(channel string) string {
	if !strings.HasPrefix(channel, "room:") {
		return ""
	}
	id := strings.TrimPrefix(channel, "room:")
	return strings.TrimSuffix(id, ":actions")
}
