package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkAsRead_UnreadCount(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()

	room, err := f.rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	f.send(t, room.ID, 1, "one")
	second := f.send(t, room.ID, 1, "two")
	f.send(t, room.ID, 1, "three")

	unread, err := f.messages.UnreadCount(ctx, room.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	require.NoError(t, f.messages.MarkAsRead(ctx, room.ID, 2, second.ID))

	unread, err = f.messages.UnreadCount(ctx, room.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestMarkAsRead_IsMonotonic(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()

	room, err := f.rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)
	first := f.send(t, room.ID, 1, "one")
	last := f.send(t, room.ID, 1, "two")
	f.settle()

	require.NoError(t, f.messages.MarkAsRead(ctx, room.ID, 2, last.ID))
	require.NoError(t, f.messages.MarkAsRead(ctx, room.ID, 2, first.ID))
	require.NoError(t, f.messages.MarkAsRead(ctx, room.ID, 2, last.ID))
	f.notifier.Wait()

	assert.Equal(t, last.ID, f.member(t, room.ID, 2).LastRead())

	receipts := f.bus.To(model.RoomTopic(room.ID))
	require.Len(t, receipts, 1, "only the advancing call emits")
	assert.Equal(t, model.EventReadReceipt, receipts[0].Type)
	assert.Equal(t, int64(2), receipts[0].UserID)
	assert.Equal(t, last.ID, receipts[0].LastReadMessageID)
	assert.Empty(t, f.bus.To(model.UserQueue(1)), "receipts stay on the room topic")
}

func TestMarkAsRead_Rejects(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()

	room, err := f.rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)
	other, err := f.rooms.CreateDirectChat(ctx, 1, 3)
	require.NoError(t, err)
	foreign := f.send(t, other.ID, 1, "elsewhere")

	assert.ErrorIs(t, f.messages.MarkAsRead(ctx, room.ID, 2, foreign.ID), apperror.MessageNotFound)
	assert.ErrorIs(t, f.messages.MarkAsRead(ctx, room.ID, 3, foreign.ID), apperror.NotChatMember)
	assert.ErrorIs(t, f.messages.MarkAsRead(ctx, 404, 2, foreign.ID), apperror.ChatRoomNotFound)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()
	room := f.group(t, 1, 2, 3)

	_, err := f.messages.SendMessage(ctx, room.ID, 4, "intruder", model.MessageTypeText)
	assert.ErrorIs(t, err, apperror.NotChatMember)

	_, err = f.messages.SendMessage(ctx, 404, 1, "nowhere", model.MessageTypeText)
	assert.ErrorIs(t, err, apperror.ChatRoomNotFound)

	_, err = f.messages.SendMessage(ctx, room.ID, 1, "   ", model.MessageTypeText)
	assert.ErrorIs(t, err, apperror.EmptyMessageContent)

	msg, err := f.messages.SendMessage(ctx, room.ID, 2, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeText, msg.Type)
	assert.Equal(t, "user2", msg.SenderNickname)
	assert.False(t, msg.IsRead)
}

func TestSendMessage_FansOut(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()
	room := f.group(t, 1, 2, 3)

	msg, err := f.messages.SendMessage(ctx, room.ID, 1, "see you at the airport", model.MessageTypeText)
	require.NoError(t, err)
	f.notifier.Wait()

	topic := f.bus.To(model.RoomTopic(room.ID))
	require.Len(t, topic, 1)
	assert.Equal(t, model.EventNewMessage, topic[0].Type)
	assert.Equal(t, msg.ID, topic[0].Message.ID)

	assert.Empty(t, f.bus.To(model.UserQueue(1)), "sender is excluded")
	assert.Len(t, f.bus.To(model.UserQueue(2)), 1)
	assert.Len(t, f.bus.To(model.UserQueue(3)), 1)

	pushes := f.push.byUser()
	require.Len(t, pushes, 2)
	assert.NotContains(t, pushes, int64(1))
	assert.Equal(t, "user1", pushes[2].Title)
	assert.Equal(t, "see you at the airport", pushes[2].Body)
	assert.Equal(t, 2, pushes[2].Badge, "creation notice plus the new message")
	assert.Equal(t, room.ID, pushes[3].ChatRoomID)
}

func TestSendMessage_MediaPushBody(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()

	room, err := f.rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	_, err = f.messages.SendMessage(ctx, room.ID, 1, "https://cdn.example.com/chats/1/a.png", model.MessageTypeImage)
	require.NoError(t, err)
	f.notifier.Wait()
	assert.Equal(t, "사진을 보냈습니다.", f.push.byUser()[2].Body)

	_, err = f.messages.SendMessage(ctx, room.ID, 1, "https://cdn.example.com/chats/1/b.mp4", model.MessageTypeVideo)
	require.NoError(t, err)
	f.notifier.Wait()
	assert.Equal(t, "동영상을 보냈습니다.", f.push.byUser()[2].Body)
	assert.Equal(t, 2, f.push.byUser()[2].Badge)
}

func TestGetMessages_Pagination(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()

	room, err := f.rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, f.send(t, room.ID, 1, "m").ID)
	}

	page, err := f.messages.GetMessages(ctx, room.ID, 2, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, ids[4], page.Messages[0].ID)
	assert.Equal(t, ids[3], page.Messages[1].ID)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, ids[3], *page.NextCursor)

	page, err = f.messages.GetMessages(ctx, room.ID, 2, page.NextCursor, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[1]}, []int64{page.Messages[0].ID, page.Messages[1].ID})
	assert.True(t, page.HasMore)

	page, err = f.messages.GetMessages(ctx, room.ID, 2, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, ids[0], page.Messages[0].ID)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)

	page, err = f.messages.GetMessages(ctx, room.ID, 2, nil, 0)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1, "size is clamped to at least one")

	page, err = f.messages.GetMessages(ctx, room.ID, 2, nil, 1000)
	require.NoError(t, err)
	assert.Len(t, page.Messages, 5)
}

func TestGetMessages_ReadFlagAndDeletedContent(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()

	room, err := f.rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)
	first := f.send(t, room.ID, 1, "first")
	second := f.send(t, room.ID, 1, "second")

	require.NoError(t, f.messages.MarkAsRead(ctx, room.ID, 2, first.ID))
	require.NoError(t, f.messages.DeleteMessage(ctx, room.ID, first.ID, 1))

	page, err := f.messages.GetMessages(ctx, room.ID, 1, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)

	assert.Equal(t, second.ID, page.Messages[0].ID)
	assert.False(t, page.Messages[0].IsRead)
	assert.Equal(t, "second", page.Messages[0].Content)

	assert.True(t, page.Messages[1].IsRead)
	assert.Empty(t, page.Messages[1].Content)
	assert.NotNil(t, page.Messages[1].DeletedAt)
}

func TestDeleteMessage_Rules(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()
	room := f.group(t, 1, 2, 3)

	msg := f.send(t, room.ID, 1, "oops")
	f.settle()

	assert.ErrorIs(t, f.messages.DeleteMessage(ctx, room.ID, msg.ID, 4), apperror.NotChatMember)
	assert.ErrorIs(t, f.messages.DeleteMessage(ctx, room.ID, msg.ID+100, 1), apperror.MessageNotFound)
	assert.ErrorIs(t, f.messages.DeleteMessage(ctx, room.ID, msg.ID, 2), apperror.MessageDeleteForbidden)

	require.NoError(t, f.messages.DeleteMessage(ctx, room.ID, msg.ID, 1))
	assert.ErrorIs(t, f.messages.DeleteMessage(ctx, room.ID, msg.ID, 1), apperror.MessageAlreadyDeleted)
	f.notifier.Wait()

	events := f.bus.To(model.RoomTopic(room.ID))
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMessageDeleted, events[0].Type)
	assert.Equal(t, msg.ID, events[0].MessageID)
	assert.Len(t, f.bus.To(model.UserQueue(1)), 1)
}

func TestDeleteMessage_Window(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()

	room, err := f.rooms.CreateDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	f.clock.Step = 0
	inTime := f.send(t, room.ID, 1, "quick")
	f.clock.Advance(service.MessageDeleteWindow - time.Second)
	require.NoError(t, f.messages.DeleteMessage(ctx, room.ID, inTime.ID, 1))

	late := f.send(t, room.ID, 1, "slow")
	f.clock.Advance(service.MessageDeleteWindow)
	assert.ErrorIs(t, f.messages.DeleteMessage(ctx, room.ID, late.ID, 1), apperror.MessageDeleteExpired)
}

type recordingMedia struct {
	mu      sync.Mutex
	deleted []string
}

func (m *recordingMedia) ObjectKey(publicURL string) (string, bool) {
	return strings.CutPrefix(publicURL, "https://cdn.example.com/")
}

func (m *recordingMedia) Delete(_ context.Context, objectKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, objectKey)
	return nil
}

func TestDeleteMessage_RemovesRoomMedia(t *testing.T) {
	media := &recordingMedia{}
	f := newFixture(t, fixtureConfig{media: media})
	ctx := context.Background()
	room := f.group(t, 1, 2)

	own := fmt.Sprintf("https://cdn.example.com/chats/%d/a.png", room.ID)
	sent := []struct {
		content string
		msgType model.MessageType
	}{
		{own, model.MessageTypeImage},
		{"https://cdn.example.com/chats/999/b.mp4", model.MessageTypeVideo},
		{"https://elsewhere.example.com/c.png", model.MessageTypeImage},
		{fmt.Sprintf("https://cdn.example.com/chats/%d/d.png", room.ID), model.MessageTypeText},
	}
	for _, m := range sent {
		msg, err := f.messages.SendMessage(ctx, room.ID, 1, m.content, m.msgType)
		require.NoError(t, err)
		require.NoError(t, f.messages.DeleteMessage(ctx, room.ID, msg.ID, 1))
	}

	assert.Equal(t, []string{fmt.Sprintf("chats/%d/a.png", room.ID)}, media.deleted,
		"only media messages pointing into this room's directory lose their object")
}
