// Package notification delivers offline push notifications.
package notification

import (
	"context"
	"log/slog"
)

// PushRequest is one notification for one user
type PushRequest struct {
	UserID     int64  `json:"user_id"`
	ChatRoomID int64  `json:"chat_room_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Badge      int    `json:"badge"`
}

// PushSender delivers a push notification to every device of a user
type PushSender interface {
	Send(ctx context.Context, req PushRequest) error
}

// StubSender only logs. It is the default when no provider is configured.
type StubSender struct {
	logger *slog.Logger
}

func NewStubSender(logger *slog.Logger) *StubSender {
	return &StubSender{logger: logger}
}

func (s *StubSender) Send(_ context.Context, req PushRequest) error {
	s.logger.Debug("push (stub)",
		"user_id", req.UserID,
		"chat_room_id", req.ChatRoomID,
		"title", req.Title,
		"badge", req.Badge,
	)
	return nil
}
