package transport

import (
	"context"
	"errors"

	"streamroom/sdk/internal/models"
)

// ErrNoHistory is returned by FetchHistory when the channel has no stored
// events in the requested range. Sessions treat it as an empty page rather
// than a failure.
var ErrNoHistory = errors.New("transport: no history for channel")

// Message is a raw transport event together with the identity and timestamp
// assigned by the backend at publish time.
type Message struct {
	ID        models.PubSubID
	Timetoken int64 // unix milliseconds
	Payload   []byte
}

// MessageAction is an out-of-band action targeting a published message,
// currently always a reaction vote.
type MessageAction struct {
	ActionID  string
	MessageID models.PubSubID
	Type      string
	Value     string
	SenderID  string
}

// History is one page of a room's event log, newest first.
type History struct {
	Messages        []Message
	OldestTimetoken int64
}

// Delegate receives live channel traffic. Callbacks are invoked from the
// channel's delivery goroutine in arrival order.
type Delegate interface {
	OnMessage(msg Message)
	OnMessageActionCreated(action MessageAction)
	OnMessageActionDeleted(action MessageAction)
}

// Channel is the publish/subscribe backend a room session talks to.
type Channel interface {
	// Subscribe starts delivering live traffic to the delegate.
	Subscribe(delegate Delegate) error
	// Unsubscribe stops delivery. Operations already in flight run to
	// completion; they are not cancelled.
	Unsubscribe()
	// Send publishes an event envelope and returns the message identity the
	// backend assigned to it.
	Send(ctx context.Context, payload []byte) (Message, error)
	// SendMessageAction attaches an action to a published message.
	SendMessageAction(ctx context.Context, actionType, value string, target models.PubSubID) (MessageAction, error)
	// RemoveMessageAction detaches a previously created action.
	RemoveMessageAction(ctx context.Context, target models.PubSubID, actionID string) error
	// FetchHistory returns events strictly older than olderThan (0 means
	// newest first page), newest first, at most limit entries.
	FetchHistory(ctx context.Context, olderThan int64, limit int) (History, error)
}
