package chatroom

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/transport"
)

// materialized pairs a history message with the transport identity it came
// in under, so the identity mapping can be rebuilt alongside the store.
type materialized struct {
	msg      models.ChatMessage
	pubsubID models.PubSubID
}

// LoadInitialHistory replaces the session's messages with the newest page of
// the room's history and primes the history cursor. A channel with no
// history yet is an empty success, not an error.
func (s *Session) LoadInitialHistory(ctx context.Context) error {
	hist, err := s.channel.FetchHistory(ctx, 0, s.cfg.HistoryLimit)
	if err != nil && !errors.Is(err, transport.ErrNoHistory) {
		return fmt.Errorf("fetch history: %w", err)
	}

	s.mu.Lock()
	s.store.clearMessages()
	batch := s.mergeHistoryLocked(hist.Messages)
	for _, it := range batch {
		if err := s.store.appendMessage(it.msg); err != nil {
			log.Printf("ERROR: %v", err)
			continue
		}
		s.store.bind(it.msg.ID, it.pubsubID)
	}
	s.advanceCursorLocked(hist.OldestTimetoken)
	s.mu.Unlock()

	s.notifyHistory(cloneBatch(batch))
	return nil
}

// LoadPreviousMessagesFromHistory fetches the page strictly older than the
// current cursor and prepends it. At most one incremental load may be in
// flight; a concurrent call fails immediately with ErrHistoryLoadInFlight.
func (s *Session) LoadPreviousMessagesFromHistory(ctx context.Context) error {
	s.mu.Lock()
	if s.historyInFlight {
		s.mu.Unlock()
		return ErrHistoryLoadInFlight
	}
	s.historyInFlight = true
	olderThan := s.cursor
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.historyInFlight = false
		s.mu.Unlock()
	}()

	hist, err := s.channel.FetchHistory(ctx, olderThan, s.cfg.HistoryLimit)
	if err != nil {
		if errors.Is(err, transport.ErrNoHistory) {
			s.notifyHistory(nil)
			return nil
		}
		return fmt.Errorf("fetch history: %w", err)
	}

	s.mu.Lock()
	batch := s.mergeHistoryLocked(hist.Messages)
	msgs := make([]models.ChatMessage, 0, len(batch))
	for _, it := range batch {
		msgs = append(msgs, it.msg)
	}
	s.store.prependMessages(msgs)
	for _, it := range batch {
		s.store.bind(it.msg.ID, it.pubsubID)
	}
	s.advanceCursorLocked(hist.OldestTimetoken)
	s.mu.Unlock()

	s.notifyHistory(cloneBatch(batch))
	return nil
}

// HistoryCursor returns the oldest transport timestamp seen so far, the
// exclusive upper bound of the next incremental load. Zero means no history
// has been fetched yet.
func (s *Session) HistoryCursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// advanceCursorLocked moves the cursor to the batch's oldest timestamp. The
// cursor only ever moves backwards in time.
func (s *Session) advanceCursorLocked(oldest int64) {
	if oldest <= 0 {
		return
	}
	if s.cursor == 0 || oldest < s.cursor {
		s.cursor = oldest
	}
}

// mergeHistoryLocked turns a raw history page (newest first) into an
// oldest-first batch of materialized messages. Single pass over deletions
// first: every deleted event in the page lands in the tombstone set before
// creates are materialized, so a delete suppresses its create even when both
// sit in the same page. Filtered, tombstoned, duplicate and already-present
// IDs are excluded.
func (s *Session) mergeHistoryLocked(raw []transport.Message) []materialized {
	type decoded struct {
		ev  Event
		msg transport.Message
	}
	creates := make([]decoded, 0, len(raw))
	for _, m := range raw {
		ev, err := DecodeEvent(m.Payload)
		if err != nil {
			log.Printf("ERROR: skipping undecodable history entry on room %s: %v", s.cfg.RoomID, err)
			continue
		}
		if ev.IsDeleted() {
			s.store.tombstone(ev.LogicalID())
			continue
		}
		creates = append(creates, decoded{ev: ev, msg: m})
	}

	batch := make([]materialized, 0, len(creates))
	seen := make(map[models.ChatMessageID]struct{}, len(creates))
	for i := len(creates) - 1; i >= 0; i-- { // newest-first source, reversed
		d := creates[i]
		id := d.ev.LogicalID()
		if s.store.isTombstoned(id) {
			continue
		}
		if s.filters.Intersects(d.ev.FilterReasons()) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if s.store.contains(id) {
			continue
		}
		seen[id] = struct{}{}
		batch = append(batch, materialized{
			msg:      d.ev.ChatMessage(s.cfg.RoomID, time.UnixMilli(d.msg.Timetoken)),
			pubsubID: d.msg.ID,
		})
	}
	return batch
}

func cloneBatch(batch []materialized) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(batch))
	for _, it := range batch {
		out = append(out, it.msg.Clone())
	}
	return out
}
