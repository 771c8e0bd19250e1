package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quocanhngo/lighttalk/internal/metrics"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"github.com/quocanhngo/lighttalk/pkg/notification"
	"golang.org/x/sync/errgroup"
)

const (
	fanOutTimeout     = 15 * time.Second
	fanOutConcurrency = 16
)

// NotificationService fans events out to the room topic, to each active
// member's private queue and, for new messages, to offline push.
//
// The room broadcast happens on the caller's goroutine. Private queues and
// pushes run in the background; failures are logged and never reach the
// caller.
type NotificationService struct {
	store  *repository.Store
	bus    EventPublisher
	push   notification.PushSender
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewNotificationService(store *repository.Store, bus EventPublisher, push notification.PushSender, logger *slog.Logger) *NotificationService {
	return &NotificationService{store: store, bus: bus, push: push, logger: logger}
}

// Wait blocks until all background fan-out work has finished
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) NotifyNewMessage(ctx context.Context, msg model.MessageResponse) {
	senderID := msg.SenderID
	s.broadcast(ctx, msg.ChatRoomID, model.NewMessageEvent(msg), &senderID)
	s.background(ctx, func(ctx context.Context) { s.sendPushes(ctx, msg) })
}

func (s *NotificationService) NotifyMessageDeleted(ctx context.Context, roomID, messageID int64) {
	s.broadcast(ctx, roomID, model.MessageDeletedEvent(roomID, messageID), nil)
}

// NotifyReadReceipt only reaches clients viewing the room
func (s *NotificationService) NotifyReadReceipt(ctx context.Context, roomID, userID, messageID int64, readAt time.Time) {
	s.publish(ctx, model.RoomTopic(roomID), model.ReadReceiptEvent(roomID, userID, messageID, readAt), "room")
}

func (s *NotificationService) NotifyMemberJoined(ctx context.Context, roomID int64, members []model.ChatMemberInfo) {
	s.broadcast(ctx, roomID, model.MemberJoinedEvent(roomID, members), nil)
}

func (s *NotificationService) NotifyMemberLeft(ctx context.Context, roomID, userID int64, newOwnerID *int64) {
	s.broadcast(ctx, roomID, model.MemberLeftEvent(roomID, userID, newOwnerID), nil)
}

func (s *NotificationService) NotifyChatRoomUpdated(ctx context.Context, roomID int64, name, imageURL *string) {
	s.broadcast(ctx, roomID, model.ChatRoomUpdatedEvent(roomID, name, imageURL), nil)
}

func (s *NotificationService) NotifyRoleChanged(ctx context.Context, roomID, userID int64, role model.MemberRole) {
	s.broadcast(ctx, roomID, model.RoleChangedEvent(roomID, userID, role), nil)
}

func (s *NotificationService) broadcast(ctx context.Context, roomID int64, event model.ChatEvent, exclude *int64) {
	s.publish(ctx, model.RoomTopic(roomID), event, "room")

	s.background(ctx, func(ctx context.Context) {
		userIDs, err := s.store.Members.ActiveUserIDs(ctx, roomID)
		if err != nil {
			s.logger.Warn("fan-out: failed to load members", "chat_room_id", roomID, "error", err)
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(fanOutConcurrency)
		for _, userID := range userIDs {
			if exclude != nil && userID == *exclude {
				continue
			}
			destination := model.UserQueue(userID)
			g.Go(func() error {
				s.publish(gctx, destination, event, "user")
				return nil
			})
		}
		_ = g.Wait()
	})
}

func (s *NotificationService) sendPushes(ctx context.Context, msg model.MessageResponse) {
	userIDs, err := s.store.Members.ActiveUserIDs(ctx, msg.ChatRoomID)
	if err != nil {
		s.logger.Warn("push: failed to load members", "message_id", msg.ID, "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutConcurrency)
	for _, userID := range userIDs {
		if userID == msg.SenderID {
			continue
		}
		g.Go(func() error {
			badge, err := s.store.Messages.CountTotalUnreadByUser(gctx, userID)
			if err != nil {
				s.logger.Warn("push: unread count failed", "user_id", userID, "error", err)
				badge = 1
			}
			err = s.push.Send(gctx, notification.PushRequest{
				UserID:     userID,
				ChatRoomID: msg.ChatRoomID,
				Title:      msg.SenderNickname,
				Body:       pushBody(msg),
				Badge:      int(badge),
			})
			if err != nil {
				metrics.PushRequests.WithLabelValues("failed").Inc()
				s.logger.Warn("push failed", "user_id", userID, "message_id", msg.ID, "error", err)
				return nil
			}
			metrics.PushRequests.WithLabelValues("sent").Inc()
			return nil
		})
	}
	_ = g.Wait()
}

func pushBody(msg model.MessageResponse) string {
	switch msg.Type {
	case model.MessageTypeImage:
		return "사진을 보냈습니다."
	case model.MessageTypeVideo:
		return "동영상을 보냈습니다."
	}
	return msg.Content
}

func (s *NotificationService) publish(ctx context.Context, destination string, event model.ChatEvent, scope string) {
	if err := s.bus.Publish(ctx, destination, event); err != nil {
		metrics.EventPublishFailures.WithLabelValues(scope).Inc()
		s.logger.Warn("publish failed", "destination", destination, "type", event.Type, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type), scope).Inc()
}

// background runs fn detached from the request's cancellation
func (s *NotificationService) background(ctx context.Context, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fanOutTimeout)
		defer cancel()
		fn(bctx)
	}()
}
