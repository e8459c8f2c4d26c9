package chatroom

import "streamroom/sdk/internal/models"

// Observer receives session notifications. All callbacks are invoked
// synchronously from the goroutine that processed the triggering event and
// always receive value snapshots, never the store's canonical copies.
type Observer interface {
	OnNewMessage(msg models.ChatMessage)
	OnMessageHistory(msgs []models.ChatMessage)
	OnMessageUpdated(msg models.ChatMessage)
	OnMessageDeleted(id models.ChatMessageID)
	OnError(err error)
}

// ObserverToken identifies a registered observer for later removal.
type ObserverToken uint64

type observerEntry struct {
	token    ObserverToken
	observer Observer
}

// observerRegistry is the session-scoped fan-out list. Notification order is
// registration order. Not safe for concurrent use on its own; the session
// guards it.
type observerRegistry struct {
	next    ObserverToken
	entries []observerEntry
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{next: 1}
}

func (r *observerRegistry) add(obs Observer) ObserverToken {
	token := r.next
	r.next++
	r.entries = append(r.entries, observerEntry{token: token, observer: obs})
	return token
}

func (r *observerRegistry) remove(token ObserverToken) {
	for i, e := range r.entries {
		if e.token == token {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// list returns the observers in registration order. The slice is a copy so
// fan-out can happen without holding the session lock.
func (r *observerRegistry) list() []Observer {
	out := make([]Observer, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.observer)
	}
	return out
}
