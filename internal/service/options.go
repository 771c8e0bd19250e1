package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/model"
	"gorm.io/gorm"
)

// EventPublisher delivers an event to every subscriber of a destination
type EventPublisher interface {
	Publish(ctx context.Context, destination string, event model.ChatEvent) error
}

// OnlineChecker answers presence questions for room views
type OnlineChecker interface {
	OnlineAmong(ctx context.Context, userIDs []int64) (map[int64]bool, error)
}

// Notifier receives domain events after the owning transaction committed
type Notifier interface {
	NotifyNewMessage(ctx context.Context, msg model.MessageResponse)
	NotifyMessageDeleted(ctx context.Context, roomID, messageID int64)
	NotifyReadReceipt(ctx context.Context, roomID, userID, messageID int64, readAt time.Time)
	NotifyMemberJoined(ctx context.Context, roomID int64, members []model.ChatMemberInfo)
	NotifyMemberLeft(ctx context.Context, roomID, userID int64, newOwnerID *int64)
	NotifyChatRoomUpdated(ctx context.Context, roomID int64, name, imageURL *string)
	NotifyRoleChanged(ctx context.Context, roomID, userID int64, role model.MemberRole)
}

// MediaStore resolves and removes uploaded objects
type MediaStore interface {
	ObjectKey(publicURL string) (string, bool)
	Delete(ctx context.Context, objectKey string) error
}

type options struct {
	now    func() time.Time
	logger *slog.Logger
	media  MediaStore
}

// Option customizes a service
type Option func(*options)

// WithClock replaces the wall clock. Times must be UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMediaStore lets the message service remove the object behind a
// deleted IMAGE or VIDEO message
func WithMediaStore(media MediaStore) Option {
	return func(o *options) { o.media = media }
}

func buildOptions(opts []Option) options {
	o := options{
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// notFound maps gorm.ErrRecordNotFound to a domain error and leaves other
// errors untouched
func notFound(err error, domainErr *apperror.Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}
