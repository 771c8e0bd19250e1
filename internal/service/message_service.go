package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MessageDeleteWindow is how long after sending a sender may delete
	MessageDeleteWindow = 5 * time.Minute
)

// MessageService stores messages and tracks read pointers
type MessageService struct {
	store    *repository.Store
	notifier Notifier
	media    MediaStore
	now      func() time.Time
	logger   *slog.Logger
}

func NewMessageService(store *repository.Store, notifier Notifier, opts ...Option) *MessageService {
	o := buildOptions(opts)
	return &MessageService{
		store:    store,
		notifier: notifier,
		media:    o.media,
		now:      o.now,
		logger:   o.logger,
	}
}

// SendMessage persists a message from an active member and broadcasts it
func (s *MessageService) SendMessage(ctx context.Context, roomID, senderID int64, content string, msgType model.MessageType) (*model.MessageResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperror.EmptyMessageContent
	}
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	if err := s.requireMember(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ChatRoomID: roomID,
		SenderID:   senderID,
		Content:    content,
		Type:       msgType,
		CreatedAt:  s.now(),
	}
	if err := s.store.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	sender, err := s.store.Users.FindByIDs(ctx, []int64{senderID})
	if err != nil {
		return nil, err
	}

	resp := toMessageResponse(msg, nickname(sender, senderID), false)
	s.notifier.NotifyNewMessage(ctx, resp)
	return &resp, nil
}

// GetMessages pages backwards through the history visible to userID.
// Messages sent before the caller joined are never returned.
func (s *MessageService) GetMessages(ctx context.Context, roomID, userID int64, cursor *int64, size int) (*model.MessagePageResponse, error) {
	size = clampPageSize(size)

	if _, err := s.store.Rooms.FindByID(ctx, roomID); err != nil {
		return nil, notFound(err, apperror.ChatRoomNotFound)
	}
	member, err := s.store.Members.FindActive(ctx, roomID, userID)
	if err != nil {
		return nil, notFound(err, apperror.NotChatMember)
	}

	messages, err := s.store.Messages.ListPage(ctx, roomID, member.JoinedAt, cursor, size+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > size
	if hasMore {
		messages = messages[:size]
	}

	senderIDs := make([]int64, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := s.store.Users.FindByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	// highest read pointer among the other active members
	others, err := s.store.Members.FindActiveByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var readUpTo int64
	for _, m := range others {
		if m.UserID != userID && m.LastRead() > readUpTo {
			readUpTo = m.LastRead()
		}
	}

	page := &model.MessagePageResponse{
		Messages: make([]model.MessageResponse, 0, len(messages)),
		HasMore:  hasMore,
	}
	for i := range messages {
		m := &messages[i]
		page.Messages = append(page.Messages, toMessageResponse(m, nickname(senders, m.SenderID), m.ID <= readUpTo))
	}
	if hasMore && len(messages) > 0 {
		next := messages[len(messages)-1].ID
		page.NextCursor = &next
	}
	return page, nil
}

// MarkAsRead moves the caller's read pointer forward to messageID. Moving it
// backwards is a no-op and emits nothing.
func (s *MessageService) MarkAsRead(ctx context.Context, roomID, userID, messageID int64) error {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}

	if _, err := s.store.Messages.FindInRoom(ctx, roomID, messageID); err != nil {
		return notFound(err, apperror.MessageNotFound)
	}

	advanced, err := s.store.Members.AdvanceLastRead(ctx, roomID, userID, messageID)
	if err != nil {
		return err
	}
	if !advanced {
		return nil
	}

	s.notifier.NotifyReadReceipt(ctx, roomID, userID, messageID, s.now())
	return nil
}

// DeleteMessage soft-deletes a message. Only the sender may delete, and only
// within MessageDeleteWindow of sending.
func (s *MessageService) DeleteMessage(ctx context.Context, roomID, messageID, userID int64) error {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return err
	}

	msg, err := s.store.Messages.FindInRoom(ctx, roomID, messageID)
	if err != nil {
		return notFound(err, apperror.MessageNotFound)
	}
	if msg.IsDeleted() {
		return apperror.MessageAlreadyDeleted
	}
	if msg.SenderID != userID {
		return apperror.MessageDeleteForbidden
	}

	now := s.now()
	if now.Sub(msg.CreatedAt) >= MessageDeleteWindow {
		return apperror.MessageDeleteExpired
	}

	deleted, err := s.store.Messages.SoftDelete(ctx, messageID, now)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.MessageAlreadyDeleted
	}

	s.logger.Info("message deleted", "chat_room_id", roomID, "message_id", messageID, "user_id", userID)
	s.notifier.NotifyMessageDeleted(ctx, roomID, messageID)
	s.removeMedia(ctx, msg)
	return nil
}

// removeMedia drops the uploaded file of a deleted media message. Only
// objects stored under the room's own media directory are touched.
func (s *MessageService) removeMedia(ctx context.Context, msg *model.Message) {
	if s.media == nil || (msg.Type != model.MessageTypeImage && msg.Type != model.MessageTypeVideo) {
		return
	}
	key, ok := s.media.ObjectKey(strings.TrimSpace(msg.Content))
	if !ok || !strings.HasPrefix(key, chatMediaDir(msg.ChatRoomID)+"/") {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.Warn("media cleanup failed", "message_id", msg.ID, "object_key", key, "error", err)
	}
}

// UnreadCount returns how many visible messages in the room userID has not read
func (s *MessageService) UnreadCount(ctx context.Context, roomID, userID int64) (int64, error) {
	member, err := s.store.Members.FindActive(ctx, roomID, userID)
	if err != nil {
		return 0, notFound(err, apperror.NotChatMember)
	}
	return s.store.Messages.CountUnread(ctx, roomID, member.LastRead(), member.JoinedAt)
}

func (s *MessageService) requireMember(ctx context.Context, roomID, userID int64) error {
	exists, err := s.store.Rooms.Exists(ctx, roomID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.ChatRoomNotFound
	}

	active, err := s.store.Members.IsActiveMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !active {
		return apperror.NotChatMember
	}
	return nil
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return 1
	case size > MaxPageSize:
		return MaxPageSize
	}
	return size
}

func toMessageResponse(m *model.Message, senderNickname string, isRead bool) model.MessageResponse {
	return model.MessageResponse{
		ID:             m.ID,
		ChatRoomID:     m.ChatRoomID,
		SenderID:       m.SenderID,
		SenderNickname: senderNickname,
		Content:        m.VisibleContent(),
		Type:           m.Type,
		CreatedAt:      m.CreatedAt,
		IsRead:         isRead,
		DeletedAt:      m.DeletedAt,
	}
}
