package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
)

const (
	DefaultPresignExpiry = 5 * time.Minute

	maxImageSize = 10 << 20
	maxVideoSize = 50 << 20
)

var (
	allowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
		"image/gif":  true,
	}
	allowedVideoTypes = map[string]bool{
		"video/mp4":       true,
		"video/quicktime": true,
		"video/webm":      true,
	}
)

// ObjectPresigner hands out direct-to-storage upload URLs
func chatMediaDir(roomID int64) string {
	return fmt.Sprintf("chats/%d", roomID)
}

type ObjectPresigner interface {
	PresignUpload(ctx context.Context, objectKey, contentType string, expiry time.Duration) (string, error)
	PublicURL(objectKey string) string
}

// UploadService validates media uploads and issues presigned URLs for them
type UploadService struct {
	store     *repository.Store
	presigner ObjectPresigner
	expiry    time.Duration
	now       func() time.Time
}

func NewUploadService(store *repository.Store, presigner ObjectPresigner, expiry time.Duration, opts ...Option) *UploadService {
	o := buildOptions(opts)
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &UploadService{store: store, presigner: presigner, expiry: expiry, now: o.now}
}

// Presign checks type and size for the purpose and, for chat media, that
// the caller is an active member of the target room
func (s *UploadService) Presign(ctx context.Context, userID int64, req model.PresignRequest) (*model.PresignResponse, error) {
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if err := validateUpload(req.Purpose, contentType, req.ContentLength); err != nil {
		return nil, err
	}

	var dir string
	switch req.Purpose {
	case model.UploadPurposeProfile:
		dir = fmt.Sprintf("profiles/%d", userID)
	default:
		if req.ChatRoomID == nil {
			return nil, apperror.InvalidInput.WithMessage("chat_room_id is required for chat media")
		}
		active, err := s.store.Members.IsActiveMember(ctx, *req.ChatRoomID, userID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, apperror.NotChatMember
		}
		dir = chatMediaDir(*req.ChatRoomID)
	}

	key := dir + "/" + objectName(req.FileName)
	uploadURL, err := s.presigner.PresignUpload(ctx, key, contentType, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}

	return &model.PresignResponse{
		UploadURL: uploadURL,
		PublicURL: s.presigner.PublicURL(key),
		ObjectKey: key,
		ExpiresAt: s.now().Add(s.expiry),
	}, nil
}

func validateUpload(purpose model.UploadPurpose, contentType string, size int64) error {
	switch purpose {
	case model.UploadPurposeProfile, model.UploadPurposeChatImage:
		if !allowedImageTypes[contentType] {
			return apperror.UnsupportedFileType.WithMessage("images must be JPEG, PNG, WebP or GIF")
		}
		if size > maxImageSize {
			return apperror.FileTooLarge.WithMessage("images must be 10MB or smaller")
		}
	case model.UploadPurposeChatVideo:
		if !allowedVideoTypes[contentType] {
			return apperror.UnsupportedFileType.WithMessage("videos must be MP4, MOV or WebM")
		}
		if size > maxVideoSize {
			return apperror.FileTooLarge.WithMessage("videos must be 50MB or smaller")
		}
	default:
		return apperror.InvalidInput.WithMessage("unknown upload purpose")
	}
	return nil
}

// objectName keeps the client's extension and nothing else of its name
func objectName(fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(fileName)))
	if len(ext) <= 1 || len(ext) > 10 {
		return uuid.NewString()
	}
	return uuid.NewString() + ext
}
