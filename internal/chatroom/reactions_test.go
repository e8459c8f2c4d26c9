package chatroom_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"streamroom/sdk/internal/chatroom"
	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/transport"
)

// MockReporter is a testify mock of moderation.Reporter.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, roomID string, msg models.ChatMessage, reason string) error {
	args := m.Called(ctx, roomID, msg, reason)
	return args.Error(0)
}

func TestSendReactionAppliesLocalVote(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	ch.Delegate.OnMessage(liveMessage("ps-1", 1000, models.MessagePayload{ID: "m1", Message: "hi", SenderID: "u2"}))

	ch.On("SendMessageAction", mock.Anything, models.ActionTypeReaction, "clap", models.PubSubID("ps-1")).
		Return(transport.MessageAction{ActionID: "vote-9", MessageID: "ps-1"}, nil)

	voteID, err := session.SendReaction(context.Background(), "m1", "clap", "")
	assert.NoError(t, err)
	assert.Equal(t, "vote-9", voteID)

	msgs := session.Messages()
	if assert.Len(t, msgs, 1) && assert.Len(t, msgs[0].Reactions, 1) {
		vote := msgs[0].Reactions[0]
		assert.Equal(t, "vote-9", vote.VoteID)
		assert.True(t, vote.IsLocalUser)
	}
	assert.Len(t, obs.Updated(), 1)

	// the echoed action event for the local vote is deduplicated by vote ID
	ch.Delegate.OnMessageActionCreated(transport.MessageAction{
		ActionID:  "vote-9",
		MessageID: "ps-1",
		Type:      models.ActionTypeReaction,
		Value:     "clap",
		SenderID:  "u-local",
	})
	msgs = session.Messages()
	assert.Len(t, msgs[0].Reactions, 1)
	assert.Len(t, obs.Updated(), 1)
	ch.AssertExpectations(t)
}

func TestSendReactionReplacesPreviousVote(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())

	ch.Delegate.OnMessage(liveMessage("ps-1", 1000, models.MessagePayload{ID: "m1", Message: "hi"}))
	ch.Delegate.OnMessageActionCreated(transport.MessageAction{
		ActionID: "vote-old", MessageID: "ps-1", Type: models.ActionTypeReaction, Value: "clap", SenderID: "u-local",
	})

	ch.On("RemoveMessageAction", mock.Anything, models.PubSubID("ps-1"), "vote-old").Return(nil)
	ch.On("SendMessageAction", mock.Anything, models.ActionTypeReaction, "heart", models.PubSubID("ps-1")).
		Return(transport.MessageAction{ActionID: "vote-new", MessageID: "ps-1"}, nil)

	voteID, err := session.SendReaction(context.Background(), "m1", "heart", "vote-old")
	assert.NoError(t, err)
	assert.Equal(t, "vote-new", voteID)

	msgs := session.Messages()
	if assert.Len(t, msgs, 1) && assert.Len(t, msgs[0].Reactions, 1) {
		assert.Equal(t, "heart", msgs[0].Reactions[0].ReactionID)
	}
	ch.AssertExpectations(t)
}

func TestSendReactionFailsForUnacknowledgedMessage(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())

	// a failed send leaves the optimistic message without a transport binding
	ch.On("Send", mock.Anything, mock.Anything).
		Return(transport.Message{}, errors.New("broker down"))
	_, err := session.SendMessage(context.Background(), "hello")
	assert.Error(t, err)

	msgs := session.Messages()
	if !assert.Len(t, msgs, 1) {
		return
	}
	_, err = session.SendReaction(context.Background(), msgs[0].ID, "clap", "")
	assert.ErrorIs(t, err, chatroom.ErrNoTransportID)
	ch.AssertNotCalled(t, "SendMessageAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendReactionMessageDeletedMidFlight(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	ch.Delegate.OnMessage(liveMessage("ps-1", 1000, models.MessagePayload{ID: "m1", Message: "hi"}))

	// the message is deleted while the action publish is in flight; the local
	// vote is dropped without disturbing the caller
	ch.On("SendMessageAction", mock.Anything, models.ActionTypeReaction, "clap", models.PubSubID("ps-1")).
		Run(func(mock.Arguments) {
			ch.Delegate.OnMessage(liveDeleted("ps-2", 1001, "m1"))
		}).
		Return(transport.MessageAction{ActionID: "vote-1", MessageID: "ps-1"}, nil)

	voteID, err := session.SendReaction(context.Background(), "m1", "clap", "")
	assert.NoError(t, err)
	assert.Equal(t, "vote-1", voteID)

	assert.Empty(t, session.Messages())
	assert.Len(t, obs.Deleted(), 1)
	assert.Empty(t, obs.Updated())
}

func TestRemoveReaction(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	ch.Delegate.OnMessage(liveMessage("ps-1", 1000, models.MessagePayload{ID: "m1", Message: "hi"}))
	ch.Delegate.OnMessageActionCreated(transport.MessageAction{
		ActionID: "vote-1", MessageID: "ps-1", Type: models.ActionTypeReaction, Value: "clap", SenderID: "u-local",
	})

	ch.On("RemoveMessageAction", mock.Anything, models.PubSubID("ps-1"), "vote-1").Return(nil)
	assert.NoError(t, session.RemoveReaction(context.Background(), "m1", "vote-1"))

	msgs := session.Messages()
	if assert.Len(t, msgs, 1) {
		assert.Empty(t, msgs[0].Reactions)
	}
	assert.Len(t, obs.Updated(), 2)
	ch.AssertExpectations(t)
}

func TestReportMessageRequiresReporter(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())
	ch.Delegate.OnMessage(liveMessage("ps-1", 1000, models.MessagePayload{ID: "m1", Message: "hi"}))

	err := session.ReportMessage(context.Background(), "m1", "spam")
	assert.ErrorIs(t, err, chatroom.ErrNoMessageReporter)
}

func TestReportMessageForwardsToReporter(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())
	reporter := &MockReporter{}
	session.SetReporter(reporter)

	ch.Delegate.OnMessage(liveMessage("ps-1", 1000, models.MessagePayload{ID: "m1", Message: "hi"}))

	reporter.On("Report", mock.Anything, "room-1", mock.MatchedBy(func(msg models.ChatMessage) bool {
		return msg.ID == "m1"
	}), "spam").Return(nil)

	assert.NoError(t, session.ReportMessage(context.Background(), "m1", "spam"))
	reporter.AssertExpectations(t)
}

func TestReportMessageUnknownMessage(t *testing.T) {
	session, _, _ := connectedSession(t, baseConfig())
	session.SetReporter(&MockReporter{})

	err := session.ReportMessage(context.Background(), "ghost", "spam")
	assert.ErrorIs(t, err, chatroom.ErrMessageNotFound)
}
