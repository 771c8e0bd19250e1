package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"github.com/quocanhngo/lighttalk/internal/service"
	"github.com/quocanhngo/lighttalk/internal/testutil"
	"github.com/quocanhngo/lighttalk/pkg/logger"
	"github.com/quocanhngo/lighttalk/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBus struct{}

func (failingBus) Publish(context.Context, string, model.ChatEvent) error {
	return errors.New("broker down")
}

type failingPush struct{}

func (failingPush) Send(context.Context, notification.PushRequest) error {
	return errors.New("fcm unavailable")
}

func TestNotificationService_FailuresDoNotReachCaller(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUsers(t, db, 2)
	store := repository.NewStore(db)

	notifier := service.NewNotificationService(store, failingBus{}, failingPush{}, logger.Discard())
	t.Cleanup(notifier.Wait)
	rooms := service.NewChatRoomService(store, notifier, nil, 0)
	messages := service.NewMessageService(store, notifier)

	ctx := context.Background()
	room, err := rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	msg, err := messages.SendMessage(ctx, room.ID, 1, "still stored", model.MessageTypeText)
	require.NoError(t, err)
	notifier.Wait()

	stored, err := store.Messages.FindInRoom(ctx, room.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "still stored", stored.Content)
}

func TestNotificationService_MemberEventsReachEveryQueue(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()
	room := f.group(t, 1, 2, 3)

	f.notifier.NotifyRoleChanged(ctx, room.ID, 2, model.MemberRoleAdmin)
	f.notifier.Wait()

	for _, userID := range []int64{1, 2, 3} {
		events := f.bus.To(model.UserQueue(userID))
		require.Len(t, events, 1, "user %d", userID)
		assert.Equal(t, model.EventRoleChanged, events[0].Type)
	}
	assert.Empty(t, f.bus.To(model.UserQueue(4)))
	assert.Empty(t, f.push.byUser(), "only new messages are pushed")
}
