package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/quocanhngo/lighttalk/internal/broker"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"github.com/quocanhngo/lighttalk/internal/service"
	"github.com/quocanhngo/lighttalk/internal/testutil"
	"github.com/quocanhngo/lighttalk/pkg/logger"
	"github.com/quocanhngo/lighttalk/pkg/notification"
	"github.com/stretchr/testify/require"
)

type recordingPush struct {
	mu   sync.Mutex
	sent []notification.PushRequest
}

func (p *recordingPush) Send(_ context.Context, req notification.PushRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, req)
	return nil
}

func (p *recordingPush) byUser() map[int64]notification.PushRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int64]notification.PushRequest, len(p.sent))
	for _, r := range p.sent {
		out[r.UserID] = r
	}
	return out
}

type fakePresence map[int64]bool

func (f fakePresence) OnlineAmong(_ context.Context, userIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		out[id] = f[id]
	}
	return out, nil
}

type fixture struct {
	store    *repository.Store
	bus      *broker.MemoryBus
	push     *recordingPush
	notifier *service.NotificationService
	clock    *testutil.Clock
	rooms    *service.ChatRoomService
	messages *service.MessageService
}

type fixtureConfig struct {
	users    int
	groupMax int
	presence service.OnlineChecker
	media    service.MediaStore
	// concurrent opens a database that runs transactions in parallel
	concurrent bool
}

func newFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()
	if cfg.users == 0 {
		cfg.users = 4
	}

	db := testutil.NewDB(t)
	if cfg.concurrent {
		db = testutil.NewConcurrentDB(t)
	}
	testutil.SeedUsers(t, db, cfg.users)

	f := &fixture{
		store: repository.NewStore(db),
		bus:   broker.NewMemoryBus(),
		push:  &recordingPush{},
		clock: testutil.NewClock(),
	}
	log := logger.Discard()
	f.notifier = service.NewNotificationService(f.store, f.bus, f.push, log)
	t.Cleanup(f.notifier.Wait)

	opts := []service.Option{service.WithClock(f.clock.Now), service.WithLogger(log)}
	f.rooms = service.NewChatRoomService(f.store, f.notifier, cfg.presence, cfg.groupMax, opts...)
	if cfg.media != nil {
		opts = append(opts, service.WithMediaStore(cfg.media))
	}
	f.messages = service.NewMessageService(f.store, f.notifier, opts...)
	return f
}

// settle waits for background fan-out and clears the recorded events
func (f *fixture) settle() {
	f.notifier.Wait()
	f.bus.Reset()
}

func (f *fixture) group(t *testing.T, owner int64, members ...int64) *model.ChatRoomResponse {
	t.Helper()
	room, err := f.rooms.CreateGroupChat(context.Background(), owner, "Trip", members, nil)
	require.NoError(t, err)
	f.settle()
	return room
}

func (f *fixture) send(t *testing.T, roomID, senderID int64, content string) *model.MessageResponse {
	t.Helper()
	msg, err := f.messages.SendMessage(context.Background(), roomID, senderID, content, model.MessageTypeText)
	require.NoError(t, err)
	return msg
}

func (f *fixture) member(t *testing.T, roomID, userID int64) *model.ChatMember {
	t.Helper()
	rows, err := f.store.Members.FindByRoomAndUsers(context.Background(), roomID, []int64{userID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return &rows[0]
}

func eventTypes(events []model.ChatEvent) []model.EventType {
	types := make([]model.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
