// Package chatroom implements the chat room session: the reconciliation core
// that merges live pub/sub events, paginated history and optimistic local
// sends into one ordered, observable message list with at-most-once delivery
// per logical message identity.
package chatroom

import (
	"sync"
	"time"

	"streamroom/sdk/internal/imageclient"
	"streamroom/sdk/internal/moderation"
	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/transport"
)

const defaultHistoryLimit = 50

// Config describes one user's membership of one room.
type Config struct {
	RoomID    string
	UserID    string
	Nickname  string
	AvatarURL string
	BadgeURL  string

	// FilterReasons is the moderation filter set: messages whose content
	// filter reasons intersect it are suppressed, live and in history.
	FilterReasons []string

	// RollbackFailedSends removes the optimistic message when a send fails
	// terminally. Off by default: the reference behavior keeps the message
	// visible and leaves failure handling to the caller.
	RollbackFailedSends bool

	// HistoryLimit is the page size for history fetches.
	HistoryLimit int

	// ProgramTime supplies the video-relative timestamp stamped on outgoing
	// messages. Optional.
	ProgramTime func() *time.Time
}

// Session owns a room's message store, identity mapping, tombstone set and
// observer registry. All store mutations are serialized by the session's
// mutex; observers are notified outside of it.
type Session struct {
	cfg      Config
	channel  transport.Channel
	uploader imageclient.Uploader
	cache    imageclient.Cache
	reporter moderation.Reporter
	filters  moderation.FilterSet

	mu              sync.Mutex
	store           *messageStore
	observers       *observerRegistry
	cursor          int64 // oldest seen transport timetoken, 0 = unset
	historyInFlight bool
}

// NewSession builds a session over the given transport channel and image
// collaborators. Call Connect to start receiving live events.
func NewSession(cfg Config, channel transport.Channel, uploader imageclient.Uploader, cache imageclient.Cache) *Session {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Session{
		cfg:       cfg,
		channel:   channel,
		uploader:  uploader,
		cache:     cache,
		filters:   moderation.NewFilterSet(cfg.FilterReasons...),
		store:     newMessageStore(),
		observers: newObserverRegistry(),
	}
}

// SetReporter wires the optional message reporter collaborator.
func (s *Session) SetReporter(r moderation.Reporter) {
	s.reporter = r
}

// Connect subscribes the session to the room's transport channel.
func (s *Session) Connect() error {
	return s.channel.Subscribe(s)
}

// Disconnect unsubscribes from the transport channel. Outstanding sends and
// history loads run to completion.
func (s *Session) Disconnect() {
	s.channel.Unsubscribe()
}

// Messages returns a value snapshot of the visible message list, oldest
// first.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.snapshot()
}

// AddObserver registers an observer. Notifications fan out in registration
// order.
func (s *Session) AddObserver(obs Observer) ObserverToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observers.add(obs)
}

// RemoveObserver unregisters the observer behind the token.
func (s *Session) RemoveObserver(token ObserverToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers.remove(token)
}

// eachObserver snapshots the registry and fans out without holding the
// session lock, so observers may call back into the session.
func (s *Session) eachObserver(fn func(Observer)) {
	s.mu.Lock()
	list := s.observers.list()
	s.mu.Unlock()
	for _, obs := range list {
		fn(obs)
	}
}

func (s *Session) notifyNewMessage(msg models.ChatMessage) {
	s.eachObserver(func(o Observer) { o.OnNewMessage(msg) })
}

func (s *Session) notifyHistory(msgs []models.ChatMessage) {
	s.eachObserver(func(o Observer) { o.OnMessageHistory(msgs) })
}

func (s *Session) notifyUpdated(msg models.ChatMessage) {
	s.eachObserver(func(o Observer) { o.OnMessageUpdated(msg) })
}

func (s *Session) notifyDeleted(id models.ChatMessageID) {
	s.eachObserver(func(o Observer) { o.OnMessageDeleted(id) })
}

func (s *Session) notifyError(err error) {
	s.eachObserver(func(o Observer) { o.OnError(err) })
}
