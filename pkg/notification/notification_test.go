package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/quocanhngo/lighttalk/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

type recordingSender struct {
	got []PushRequest
	err error
}

func (s *recordingSender) Send(_ context.Context, req PushRequest) error {
	s.got = append(s.got, req)
	return s.err
}

func delivery(t *testing.T, ack *fakeAcknowledger, body any) amqp.Delivery {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: raw}
}

func TestHandleDelivery(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()

	t.Run("sends and acks", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		sender := &recordingSender{}
		req := PushRequest{UserID: 2, ChatRoomID: 5, Title: "alice", Body: "hi", Badge: 3}

		HandleDelivery(ctx, delivery(t, ack, req), sender, log)

		assert.True(t, ack.acked)
		require.Len(t, sender.got, 1)
		assert.Equal(t, req, sender.got[0])
	})

	t.Run("malformed message goes to the DLQ", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		sender := &recordingSender{}

		HandleDelivery(ctx, amqp.Delivery{Acknowledger: ack, Body: []byte("{nope")}, sender, log)

		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
		assert.Empty(t, sender.got)
	})

	t.Run("send failure is rejected", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		sender := &recordingSender{err: errors.New("fcm down")}

		HandleDelivery(ctx, delivery(t, ack, PushRequest{UserID: 9}), sender, log)

		assert.True(t, ack.nacked)
		assert.False(t, ack.acked)
	})
}

func TestBuildMulticast(t *testing.T) {
	msg := buildMulticast([]string{"t1", "t2"}, PushRequest{UserID: 4, ChatRoomID: 12, Title: "bob", Body: "hello", Badge: 7})

	assert.Equal(t, []string{"t1", "t2"}, msg.Tokens)
	assert.Equal(t, "bob", msg.Notification.Title)
	assert.Equal(t, "chat_message", msg.Data["type"])
	assert.Equal(t, "12", msg.Data["chat_room_id"])
	require.NotNil(t, msg.APNS.Payload.Aps.Badge)
	assert.Equal(t, 7, *msg.APNS.Payload.Aps.Badge)
	assert.Equal(t, "high", msg.Android.Priority)
}

func TestStubSender(t *testing.T) {
	assert.NoError(t, NewStubSender(logger.Discard()).Send(context.Background(), PushRequest{UserID: 1}))
}
