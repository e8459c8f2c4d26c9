package chatroom

import (
	"context"
	"fmt"
	"log"

	"streamroom/sdk/internal/models"
)

// SendReaction adds the local user's reaction to a message and returns the
// transport-assigned vote ID. When replacesVoteID is set, the previous vote
// is removed first (switching reactions is remove-then-add). The message
// must already be bound to a transport ID.
func (s *Session) SendReaction(ctx context.Context, id models.ChatMessageID, reactionID, replacesVoteID string) (string, error) {
	s.mu.Lock()
	pubsubID, ok := s.store.transportFor(id)
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoTransportID, id)
	}

	if replacesVoteID != "" {
		if err := s.RemoveReaction(ctx, id, replacesVoteID); err != nil {
			return "", fmt.Errorf("remove replaced reaction: %w", err)
		}
	}

	action, err := s.channel.SendMessageAction(ctx, models.ActionTypeReaction, reactionID, pubsubID)
	if err != nil {
		return "", fmt.Errorf("send reaction: %w", err)
	}

	// Apply locally right away; the echoed action event is deduplicated by
	// vote ID in the receive path. The message can disappear between the
	// binding lookup and the apply, in which case the vote is dropped.
	if _, _, err := s.applyReactionCreated(action.ActionID, pubsubID, reactionID, s.cfg.UserID); err != nil {
		log.Printf("ERROR: local reaction %s for unresolved message: %v", action.ActionID, err)
	}
	return action.ActionID, nil
}

// RemoveReaction removes a vote from a message.
func (s *Session) RemoveReaction(ctx context.Context, id models.ChatMessageID, voteID string) error {
	s.mu.Lock()
	pubsubID, ok := s.store.transportFor(id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTransportID, id)
	}

	if err := s.channel.RemoveMessageAction(ctx, pubsubID, voteID); err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	if _, _, err := s.applyReactionDeleted(voteID, pubsubID); err != nil {
		log.Printf("ERROR: local reaction removal %s for unresolved message: %v", voteID, err)
	}
	return nil
}

// ReportMessage forwards a report about a message to the moderation backend.
func (s *Session) ReportMessage(ctx context.Context, id models.ChatMessageID, reason string) error {
	if s.reporter == nil {
		return ErrNoMessageReporter
	}
	s.mu.Lock()
	msg, ok := s.store.findByLogicalID(id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return s.reporter.Report(ctx, s.cfg.RoomID, msg, reason)
}

// applyReactionCreated mutates the owning message's vote collection. A vote
// ID already present is a no-op, which is what deduplicates local optimistic
// votes against their echoed action events.
func (s *Session) applyReactionCreated(voteID string, pubsubID models.PubSubID, reactionID, senderID string) (models.ChatMessage, bool, error) {
	duplicate := false
	s.mu.Lock()
	updated, err := s.store.mutateByTransportID(pubsubID, func(m *models.ChatMessage) {
		for _, v := range m.Reactions {
			if v.VoteID == voteID {
				duplicate = true
				return
			}
		}
		m.Reactions = append(m.Reactions, models.ReactionVote{
			VoteID:      voteID,
			ReactionID:  reactionID,
			IsLocalUser: senderID == s.cfg.UserID,
		})
	})
	s.mu.Unlock()
	if err != nil || duplicate {
		return updated, false, err
	}
	s.notifyUpdated(updated)
	return updated, true, nil
}

// applyReactionDeleted removes a vote from the owning message.
func (s *Session) applyReactionDeleted(voteID string, pubsubID models.PubSubID) (models.ChatMessage, bool, error) {
	removed := false
	s.mu.Lock()
	updated, err := s.store.mutateByTransportID(pubsubID, func(m *models.ChatMessage) {
		for i, v := range m.Reactions {
			if v.VoteID == voteID {
				m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
				removed = true
				return
			}
		}
	})
	s.mu.Unlock()
	if err != nil || !removed {
		return updated, false, err
	}
	s.notifyUpdated(updated)
	return updated, true, nil
}
