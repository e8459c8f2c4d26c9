package chatroom

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/transport"
)

// SendMessage publishes a text message. The message becomes visible to
// observers immediately as an optimistic mock; on transport acknowledgment
// its logical ID is rebound to the transport-assigned one, which is returned.
func (s *Session) SendMessage(ctx context.Context, text string) (models.ChatMessageID, error) {
	if s.cfg.Nickname == "" {
		return "", ErrNoNickname
	}

	mock := s.newMockMessage()
	mock.Text = text
	s.addMock(mock)

	payload := s.messagePayload(mock)
	payload.Message = text
	raw, err := models.MarshalEnvelope(models.WireEventMessageCreated, payload)
	if err != nil {
		return "", s.failSend(mock.ID, fmt.Errorf("encode payload: %w", err))
	}
	return s.publish(ctx, mock.ID, raw)
}

// SendImageMessage publishes an image message. The mock message shows the
// image from the local cache while the upload is in flight; the published
// payload carries the remote URL.
func (s *Session) SendImageMessage(ctx context.Context, localURL string, width, height int) (models.ChatMessageID, error) {
	if s.cfg.Nickname == "" {
		return "", ErrNoNickname
	}

	mock := s.newMockMessage()
	mock.Image = &models.ImageRef{URL: localURL, Width: width, Height: height}
	s.addMock(mock)

	data, err := s.cache.GetImage(ctx, localURL)
	if err != nil {
		return "", s.failSend(mock.ID, fmt.Errorf("resolve image: %w", err))
	}
	uploaded, err := s.uploader.Upload(ctx, data)
	if err != nil {
		return "", s.failSend(mock.ID, fmt.Errorf("upload image: %w", err))
	}

	base := s.messagePayload(mock)
	payload := models.ImagePayload{
		ID:              base.ID,
		SenderID:        base.SenderID,
		SenderNickname:  base.SenderNickname,
		SenderImageURL:  base.SenderImageURL,
		BadgeImageURL:   base.BadgeImageURL,
		ProgramDateTime: base.ProgramDateTime,
		ImageURL:        uploaded.URL,
		ImageWidth:      width,
		ImageHeight:     height,
	}
	raw, err := models.MarshalEnvelope(models.WireEventImageCreated, payload)
	if err != nil {
		return "", s.failSend(mock.ID, fmt.Errorf("encode payload: %w", err))
	}
	return s.publish(ctx, mock.ID, raw)
}

// newMockMessage synthesizes the optimistic message for an outbound send.
func (s *Session) newMockMessage() models.ChatMessage {
	msg := models.ChatMessage{
		ID:     models.ChatMessageID(uuid.NewString()),
		RoomID: s.cfg.RoomID,
		Sender: models.Sender{
			ID:        s.cfg.UserID,
			Nickname:  s.cfg.Nickname,
			AvatarURL: s.cfg.AvatarURL,
			BadgeURL:  s.cfg.BadgeURL,
		},
		CreatedAt: time.Now(),
	}
	if s.cfg.ProgramTime != nil {
		msg.ProgramDateTime = s.cfg.ProgramTime()
	}
	return msg
}

func (s *Session) messagePayload(mock models.ChatMessage) models.MessagePayload {
	return models.MessagePayload{
		ID:              string(mock.ID),
		SenderID:        mock.Sender.ID,
		SenderNickname:  mock.Sender.Nickname,
		SenderImageURL:  mock.Sender.AvatarURL,
		BadgeImageURL:   mock.Sender.BadgeURL,
		ProgramDateTime: mock.ProgramDateTime,
	}
}

// addMock appends the optimistic message and notifies observers.
func (s *Session) addMock(mock models.ChatMessage) {
	s.mu.Lock()
	err := s.store.appendMessage(mock)
	s.mu.Unlock()
	if err != nil {
		// a freshly minted UUID colliding would be a store desync
		log.Printf("ERROR: %v", err)
		return
	}
	s.notifyNewMessage(mock.Clone())
}

// publish sends the envelope and rebinds the mock on acknowledgment.
func (s *Session) publish(ctx context.Context, mockID models.ChatMessageID, raw []byte) (models.ChatMessageID, error) {
	sent, err := s.channel.Send(ctx, raw)
	if err != nil {
		return "", s.failSend(mockID, fmt.Errorf("publish message: %w", err))
	}
	return s.bindSent(mockID, sent), nil
}

// bindSent rebinds the optimistic message to the transport-assigned ID. When
// the live echo of the same send has already materialized under that ID, the
// mock is discarded in its favor and its removal is notified, so observers
// that materialize their view from notifications end up with exactly one
// message per send.
func (s *Session) bindSent(mockID models.ChatMessageID, sent transport.Message) models.ChatMessageID {
	boundID := models.NormalizeChatMessageID(string(sent.ID))

	s.mu.Lock()
	err := s.store.rebind(mockID, boundID, sent.ID)
	discarded := false
	if err != nil {
		discarded = s.store.discard(mockID)
	}
	s.mu.Unlock()
	if err != nil {
		log.Printf("dropping optimistic message %s, echo for %s arrived first", mockID, boundID)
	}
	if discarded {
		s.notifyDeleted(mockID)
	}
	return boundID
}

// failSend surfaces a terminal send failure. The optimistic message stays
// visible unless rollback is configured.
func (s *Session) failSend(mockID models.ChatMessageID, err error) error {
	if s.cfg.RollbackFailedSends {
		s.mu.Lock()
		removed := s.store.discard(mockID)
		s.mu.Unlock()
		if removed {
			s.notifyDeleted(mockID)
		}
	}
	s.notifyError(err)
	return err
}
