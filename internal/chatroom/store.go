package chatroom

import (
	"fmt"

	"streamroom/sdk/internal/models"
)

// messageStore is the ordered message list of one room session, oldest
// first, together with the logical/transport identity mapping and the
// deleted-ID tombstone set. It is not safe for concurrent use; the owning
// session serializes access.
//
// The tombstone set and identity mapping grow for the life of the session.
// Sessions are scoped to one viewing session, so there is no eviction;
// evicting tombstones would risk re-materializing deleted messages.
type messageStore struct {
	ordered     []*models.ChatMessage
	byLogical   map[models.ChatMessageID]*models.ChatMessage
	toLogical   map[models.PubSubID]models.ChatMessageID
	toTransport map[models.ChatMessageID]models.PubSubID
	tombstones  map[models.ChatMessageID]struct{}
}

func newMessageStore() *messageStore {
	return &messageStore{
		byLogical:   make(map[models.ChatMessageID]*models.ChatMessage),
		toLogical:   make(map[models.PubSubID]models.ChatMessageID),
		toTransport: make(map[models.ChatMessageID]models.PubSubID),
		tombstones:  make(map[models.ChatMessageID]struct{}),
	}
}

func (st *messageStore) length() int { return len(st.ordered) }

func (st *messageStore) contains(id models.ChatMessageID) bool {
	_, ok := st.byLogical[id]
	return ok
}

func (st *messageStore) isTombstoned(id models.ChatMessageID) bool {
	_, ok := st.tombstones[id]
	return ok
}

func (st *messageStore) tombstone(id models.ChatMessageID) {
	st.tombstones[id] = struct{}{}
}

// appendMessage adds a message at the newest end. Logical identity must be
// unique in the store.
func (st *messageStore) appendMessage(msg models.ChatMessage) error {
	if st.contains(msg.ID) {
		return fmt.Errorf("chatroom: duplicate logical id %s in store", msg.ID)
	}
	cp := msg.Clone()
	st.ordered = append(st.ordered, &cp)
	st.byLogical[cp.ID] = &cp
	return nil
}

// prependMessages adds a batch at the oldest end, preserving the batch's
// internal order. Callers pre-filter duplicates and tombstoned IDs.
func (st *messageStore) prependMessages(msgs []models.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	front := make([]*models.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		if st.contains(msg.ID) {
			continue
		}
		cp := msg.Clone()
		front = append(front, &cp)
		st.byLogical[cp.ID] = &cp
	}
	st.ordered = append(front, st.ordered...)
}

// bind records the association between a logical ID and the transport ID the
// backend assigned to it.
func (st *messageStore) bind(logical models.ChatMessageID, pubsub models.PubSubID) {
	st.toLogical[pubsub] = logical
	st.toTransport[logical] = pubsub
}

func (st *messageStore) logicalFor(pubsub models.PubSubID) (models.ChatMessageID, bool) {
	id, ok := st.toLogical[pubsub]
	return id, ok
}

func (st *messageStore) transportFor(logical models.ChatMessageID) (models.PubSubID, bool) {
	id, ok := st.toTransport[logical]
	return id, ok
}

// findByLogicalID returns a value snapshot of the message.
func (st *messageStore) findByLogicalID(id models.ChatMessageID) (models.ChatMessage, bool) {
	msg, ok := st.byLogical[id]
	if !ok {
		return models.ChatMessage{}, false
	}
	return msg.Clone(), true
}

// mutateByLogicalID applies an in-place transform to the canonical message
// and returns a snapshot of the result.
func (st *messageStore) mutateByLogicalID(id models.ChatMessageID, transform func(*models.ChatMessage)) (models.ChatMessage, error) {
	msg, ok := st.byLogical[id]
	if !ok {
		return models.ChatMessage{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	transform(msg)
	return msg.Clone(), nil
}

// mutateByTransportID applies a transform to the message currently bound to
// the transport ID.
func (st *messageStore) mutateByTransportID(pubsub models.PubSubID, transform func(*models.ChatMessage)) (models.ChatMessage, error) {
	logical, ok := st.toLogical[pubsub]
	if !ok {
		return models.ChatMessage{}, fmt.Errorf("%w: transport id %s unbound", ErrMessageNotFound, pubsub)
	}
	return st.mutateByLogicalID(logical, transform)
}

// removeByLogicalID removes the message from the live view and records the
// ID in the tombstone set. Tombstoning happens even when the message was
// never present.
func (st *messageStore) removeByLogicalID(id models.ChatMessageID) bool {
	st.tombstone(id)
	return st.discard(id)
}

// discard drops a message from the live view without tombstoning it. Used
// when an optimistic mock loses the race against its own live echo.
func (st *messageStore) discard(id models.ChatMessageID) bool {
	if !st.contains(id) {
		return false
	}
	for i, msg := range st.ordered {
		if msg.ID == id {
			st.ordered = append(st.ordered[:i], st.ordered[i+1:]...)
			break
		}
	}
	delete(st.byLogical, id)
	if pubsub, ok := st.toTransport[id]; ok {
		delete(st.toTransport, id)
		delete(st.toLogical, pubsub)
	}
	return true
}

// rebind moves a message from its optimistic logical ID to the
// transport-assigned one and records the mapping. Fails when the target ID
// is already materialized.
func (st *messageStore) rebind(oldID, newID models.ChatMessageID, pubsub models.PubSubID) error {
	if oldID == newID {
		st.bind(newID, pubsub)
		return nil
	}
	if st.contains(newID) {
		return fmt.Errorf("chatroom: logical id %s already in store", newID)
	}
	msg, ok := st.byLogical[oldID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, oldID)
	}
	delete(st.byLogical, oldID)
	if prev, bound := st.toTransport[oldID]; bound {
		delete(st.toTransport, oldID)
		delete(st.toLogical, prev)
	}
	msg.ID = newID
	st.byLogical[newID] = msg
	st.bind(newID, pubsub)
	return nil
}

// snapshot returns value copies of the visible messages, oldest first.
func (st *messageStore) snapshot() []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(st.ordered))
	for _, msg := range st.ordered {
		out = append(out, msg.Clone())
	}
	return out
}

// clearMessages empties the live view and identity mapping. The tombstone
// set survives: deletions are permanent for the session.
func (st *messageStore) clearMessages() {
	st.ordered = nil
	st.byLogical = make(map[models.ChatMessageID]*models.ChatMessage)
	st.toLogical = make(map[models.PubSubID]models.ChatMessageID)
	st.toTransport = make(map[models.ChatMessageID]models.PubSubID)
}
