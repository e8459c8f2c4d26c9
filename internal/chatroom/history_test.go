package chatroom_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"streamroom/sdk/internal/chatroom"
	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/transport"
)

func TestLoadInitialHistoryOrdersOldestFirst(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	// transport pages are newest first
	page := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-3", 300, models.MessagePayload{ID: "m3", Message: "third"}),
			liveMessage("ps-2", 200, models.MessagePayload{ID: "m2", Message: "second"}),
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(page, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))

	msgs := session.Messages()
	if assert.Len(t, msgs, 3) {
		assert.Equal(t, models.ChatMessageID("m1"), msgs[0].ID)
		assert.Equal(t, models.ChatMessageID("m2"), msgs[1].ID)
		assert.Equal(t, models.ChatMessageID("m3"), msgs[2].ID)
	}
	assert.Equal(t, int64(100), session.HistoryCursor())

	histories := obs.Histories()
	if assert.Len(t, histories, 1) && assert.Len(t, histories[0], 3) {
		assert.Equal(t, models.ChatMessageID("m1"), histories[0][0].ID)
	}
	assert.Empty(t, obs.NewMessages())
}

func TestLoadInitialHistoryEmptyChannel(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	ch.On("FetchHistory", mock.Anything, int64(0), 50).
		Return(transport.History{}, transport.ErrNoHistory)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))
	assert.Empty(t, session.Messages())
	assert.Zero(t, session.HistoryCursor())
	if assert.Len(t, obs.Histories(), 1) {
		assert.Empty(t, obs.Histories()[0])
	}
}

func TestLoadInitialHistoryTransportFailure(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	ch.On("FetchHistory", mock.Anything, int64(0), 50).
		Return(transport.History{}, errors.New("timeout"))

	err := session.LoadInitialHistory(context.Background())
	assert.Error(t, err)
	assert.Empty(t, obs.Histories())
}

func TestLoadInitialHistoryReplacesLiveMessages(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())

	ch.Delegate.OnMessage(liveMessage("ps-9", 900, models.MessagePayload{ID: "m9", Message: "live"}))

	page := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(page, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))

	msgs := session.Messages()
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, models.ChatMessageID("m1"), msgs[0].ID)
	}
}

func TestHistoryDeleteSuppressesCreateInSamePage(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	// the page carries both the create and the delete of m2
	page := transport.History{
		Messages: []transport.Message{
			liveDeleted("ps-4", 400, "m2"),
			liveMessage("ps-3", 300, models.MessagePayload{ID: "m3", Message: "third"}),
			liveMessage("ps-2", 200, models.MessagePayload{ID: "m2", Message: "second"}),
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(page, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))

	msgs := session.Messages()
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, models.ChatMessageID("m1"), msgs[0].ID)
		assert.Equal(t, models.ChatMessageID("m3"), msgs[1].ID)
	}

	// the tombstone outlives the page: a live replay of the create stays out
	ch.Delegate.OnMessage(liveMessage("ps-2", 200, models.MessagePayload{ID: "m2", Message: "second"}))
	assert.Len(t, session.Messages(), 2)
	assert.Empty(t, obs.NewMessages())
}

func TestHistorySkipsDuplicateAndPresentIDs(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())

	initial := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-2", 200, models.MessagePayload{ID: "m2", Message: "original"}),
		},
		OldestTimetoken: 200,
	}
	// the older page replays m2 and carries m1 twice, once in upper case
	older := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-2", 190, models.MessagePayload{ID: "m2", Message: "replayed"}),
			liveMessage("ps-1b", 150, models.MessagePayload{ID: "M1", Message: "dup"}),
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(initial, nil)
	ch.On("FetchHistory", mock.Anything, int64(200), 50).Return(older, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))
	assert.NoError(t, session.LoadPreviousMessagesFromHistory(context.Background()))

	msgs := session.Messages()
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, models.ChatMessageID("m1"), msgs[0].ID)
		assert.Equal(t, "first", msgs[0].Text)
		assert.Equal(t, models.ChatMessageID("m2"), msgs[1].ID)
		assert.Equal(t, "original", msgs[1].Text)
	}
}

func TestHistoryExcludesFilteredContent(t *testing.T) {
	cfg := baseConfig()
	cfg.FilterReasons = []string{"profanity"}
	session, ch, _ := connectedSession(t, cfg)

	page := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-2", 200, models.MessagePayload{ID: "m2", Message: "***", ContentFilter: []string{"profanity"}}),
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(page, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))

	msgs := session.Messages()
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, models.ChatMessageID("m1"), msgs[0].ID)
	}
}

func TestHistorySkipsUndecodableEntries(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())

	page := transport.History{
		Messages: []transport.Message{
			{ID: "ps-2", Timetoken: 200, Payload: []byte("{broken")},
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(page, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))
	assert.Len(t, session.Messages(), 1)
}

func TestLoadPreviousPrependsOlderPage(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	initial := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-4", 400, models.MessagePayload{ID: "m4", Message: "fourth"}),
			liveMessage("ps-3", 300, models.MessagePayload{ID: "m3", Message: "third"}),
		},
		OldestTimetoken: 300,
	}
	older := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-2", 200, models.MessagePayload{ID: "m2", Message: "second"}),
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(initial, nil)
	ch.On("FetchHistory", mock.Anything, int64(300), 50).Return(older, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))
	assert.NoError(t, session.LoadPreviousMessagesFromHistory(context.Background()))

	msgs := session.Messages()
	if assert.Len(t, msgs, 4) {
		for i, want := range []models.ChatMessageID{"m1", "m2", "m3", "m4"} {
			assert.Equal(t, want, msgs[i].ID)
		}
	}
	assert.Equal(t, int64(100), session.HistoryCursor())
	assert.Len(t, obs.Histories(), 2)
	ch.AssertExpectations(t)
}

func TestLoadPreviousNoOlderHistory(t *testing.T) {
	session, ch, obs := connectedSession(t, baseConfig())

	initial := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-1", 100, models.MessagePayload{ID: "m1", Message: "first"}),
		},
		OldestTimetoken: 100,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(initial, nil)
	ch.On("FetchHistory", mock.Anything, int64(100), 50).
		Return(transport.History{}, transport.ErrNoHistory)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))
	assert.NoError(t, session.LoadPreviousMessagesFromHistory(context.Background()))

	// reaching the beginning of history is an empty success
	assert.Len(t, session.Messages(), 1)
	assert.Equal(t, int64(100), session.HistoryCursor())
	histories := obs.Histories()
	if assert.Len(t, histories, 2) {
		assert.Empty(t, histories[1])
	}
}

func TestLoadPreviousRejectsConcurrentLoad(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())

	started := make(chan struct{})
	release := make(chan struct{})
	ch.On("FetchHistory", mock.Anything, int64(0), 50).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(transport.History{}, transport.ErrNoHistory).
		Once()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- session.LoadPreviousMessagesFromHistory(context.Background())
	}()

	<-started
	err := session.LoadPreviousMessagesFromHistory(context.Background())
	assert.ErrorIs(t, err, chatroom.ErrHistoryLoadInFlight)

	close(release)
	select {
	case err := <-firstDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first history load did not finish")
	}

	// the guard is released once the load finishes
	ch.On("FetchHistory", mock.Anything, int64(0), 50).
		Return(transport.History{}, transport.ErrNoHistory)
	assert.NoError(t, session.LoadPreviousMessagesFromHistory(context.Background()))
}

func TestHistoryCursorOnlyMovesBackwards(t *testing.T) {
	session, ch, _ := connectedSession(t, baseConfig())

	initial := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-2", 200, models.MessagePayload{ID: "m2", Message: "second"}),
		},
		OldestTimetoken: 200,
	}
	// a page reporting a newer oldest timestamp must not move the cursor up
	newerAgain := transport.History{
		Messages: []transport.Message{
			liveMessage("ps-3", 300, models.MessagePayload{ID: "m3", Message: "third"}),
		},
		OldestTimetoken: 300,
	}
	ch.On("FetchHistory", mock.Anything, int64(0), 50).Return(initial, nil)
	ch.On("FetchHistory", mock.Anything, int64(200), 50).Return(newerAgain, nil)

	assert.NoError(t, session.LoadInitialHistory(context.Background()))
	assert.Equal(t, int64(200), session.HistoryCursor())

	assert.NoError(t, session.LoadPreviousMessagesFromHistory(context.Background()))
	assert.Equal(t, int64(200), session.HistoryCursor())
}
