package chatroom

import (
	"log"
	"time"

	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/transport"
)

// OnMessage implements transport.Delegate for live room events. Undecodable
// payloads are logged and dropped without notifying observers or touching
// the store.
func (s *Session) OnMessage(msg transport.Message) {
	ev, err := DecodeEvent(msg.Payload)
	if err != nil {
		log.Printf("ERROR: dropping undecodable event on room %s: %v", s.cfg.RoomID, err)
		return
	}
	if ev.IsDeleted() {
		s.handleDeleted(ev)
		return
	}
	s.handleCreated(ev, msg)
}

func (s *Session) handleCreated(ev Event, msg transport.Message) {
	if s.filters.Intersects(ev.FilterReasons()) {
		return
	}
	incoming := ev.ChatMessage(s.cfg.RoomID, time.UnixMilli(msg.Timetoken))

	s.mu.Lock()
	if s.store.isTombstoned(incoming.ID) {
		s.mu.Unlock()
		return
	}
	if s.store.contains(incoming.ID) {
		// The echo of a message this session sent itself: refresh the body
		// in place, no second new-message notification.
		updated, err := s.store.mutateByLogicalID(incoming.ID, func(m *models.ChatMessage) {
			m.Text = incoming.Text
			m.Image = incoming.Image
			m.Filter = incoming.Filter
		})
		s.store.bind(incoming.ID, msg.ID)
		s.mu.Unlock()
		if err == nil {
			s.notifyUpdated(updated)
		}
		return
	}
	if err := s.store.appendMessage(incoming); err != nil {
		s.mu.Unlock()
		log.Printf("ERROR: %v", err)
		return
	}
	s.store.bind(incoming.ID, msg.ID)
	s.mu.Unlock()

	s.notifyNewMessage(incoming.Clone())
}

func (s *Session) handleDeleted(ev Event) {
	id := ev.LogicalID()
	s.mu.Lock()
	removed := s.store.removeByLogicalID(id)
	s.mu.Unlock()
	if removed {
		s.notifyDeleted(id)
	}
}

// OnMessageActionCreated implements transport.Delegate for reaction votes.
// Actions targeting a transport ID with no local message are logged and
// dropped.
func (s *Session) OnMessageActionCreated(action transport.MessageAction) {
	if action.Type != models.ActionTypeReaction {
		return
	}
	if _, _, err := s.applyReactionCreated(action.ActionID, action.MessageID, action.Value, action.SenderID); err != nil {
		log.Printf("ERROR: reaction %s for unresolved message: %v", action.ActionID, err)
	}
}

// OnMessageActionDeleted implements transport.Delegate.
func (s *Session) OnMessageActionDeleted(action transport.MessageAction) {
	if action.Type != models.ActionTypeReaction {
		return
	}
	if _, _, err := s.applyReactionDeleted(action.ActionID, action.MessageID); err != nil {
		log.Printf("ERROR: reaction removal %s for unresolved message: %v", action.ActionID, err)
	}
}
