package chatroom_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"streamroom/sdk/internal/chatroom"
	"streamroom/sdk/internal/imageclient"
	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/transport"
)

// MockChannel is a testify mock of the transport.Channel interface. The
// delegate passed to Subscribe is kept so tests can inject live events.
type MockChannel struct {
	mock.Mock

	Delegate transport.Delegate
}

func (m *MockChannel) Subscribe(delegate transport.Delegate) error {
	m.Delegate = delegate
	args := m.Called(delegate)
	return args.Error(0)
}

func (m *MockChannel) Unsubscribe() {
	m.Called()
}

func (m *MockChannel) Send(ctx context.Context, payload []byte) (transport.Message, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(transport.Message), args.Error(1)
}

func (m *MockChannel) SendMessageAction(ctx context.Context, actionType, value string, target models.PubSubID) (transport.MessageAction, error) {
	args := m.Called(ctx, actionType, value, target)
	return args.Get(0).(transport.MessageAction), args.Error(1)
}

func (m *MockChannel) RemoveMessageAction(ctx context.Context, target models.PubSubID, actionID string) error {
	args := m.Called(ctx, target, actionID)
	return args.Error(0)
}

func (m *MockChannel) FetchHistory(ctx context.Context, olderThan int64, limit int) (transport.History, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).(transport.History), args.Error(1)
}

// MockUploader is a testify mock of imageclient.Uploader.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, data []byte) (imageclient.UploadResult, error) {
	args := m.Called(ctx, data)
	return args.Get(0).(imageclient.UploadResult), args.Error(1)
}

// MockCache is a testify mock of imageclient.Cache.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetImage(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCache) SetImage(ctx context.Context, url string, data []byte) error {
	args := m.Called(ctx, url, data)
	return args.Error(0)
}

// recordingObserver captures every notification for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	newMsgs   []models.ChatMessage
	histories [][]models.ChatMessage
	updated   []models.ChatMessage
	deleted   []models.ChatMessageID
	errors    []error
}

func (o *recordingObserver) OnNewMessage(msg models.ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.newMsgs = append(o.newMsgs, msg)
}

func (o *recordingObserver) OnMessageHistory(msgs []models.ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.histories = append(o.histories, msgs)
}

func (o *recordingObserver) OnMessageUpdated(msg models.ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updated = append(o.updated, msg)
}

func (o *recordingObserver) OnMessageDeleted(id models.ChatMessageID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, id)
}

func (o *recordingObserver) OnError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

func (o *recordingObserver) NewMessages() []models.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ChatMessage(nil), o.newMsgs...)
}

func (o *recordingObserver) Histories() [][]models.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]models.ChatMessage(nil), o.histories...)
}

func (o *recordingObserver) Updated() []models.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ChatMessage(nil), o.updated...)
}

func (o *recordingObserver) Deleted() []models.ChatMessageID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ChatMessageID(nil), o.deleted...)
}

func (o *recordingObserver) Errors() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errors...)
}

// newTestSession builds a session with a fresh observer already attached.
func newTestSession(cfg chatroom.Config, ch *MockChannel, up *MockUploader, cache *MockCache) (*chatroom.Session, *recordingObserver) {
	session := chatroom.NewSession(cfg, ch, up, cache)
	obs := &recordingObserver{}
	session.AddObserver(obs)
	return session, obs
}

// mustEnvelope builds a raw wire envelope for tests.
func mustEnvelope(event string, payload any) []byte {
	raw, err := models.MarshalEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	return raw
}
