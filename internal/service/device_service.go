package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/repository"
)

// DeviceService keeps the push token registry
type DeviceService struct {
	store  *repository.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewDeviceService(store *repository.Store, opts ...Option) *DeviceService {
	o := buildOptions(opts)
	return &DeviceService{store: store, now: o.now, logger: o.logger}
}

// RegisterDevice binds token to userID. A token already registered to
// another user moves to userID.
func (s *DeviceService) RegisterDevice(ctx context.Context, userID int64, token, deviceType string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.InvalidInput.WithMessage("fcm_token is required")
	}

	if _, err := s.store.Users.FindByID(ctx, userID); err != nil {
		return notFound(err, apperror.UserNotFound)
	}

	if err := s.store.Devices.Upsert(ctx, userID, token, deviceType, s.now()); err != nil {
		return err
	}
	s.logger.Debug("device registered", "user_id", userID, "device_type", deviceType)
	return nil
}
