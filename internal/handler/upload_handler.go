package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/middleware"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/service"
)

// UploadHandler hands out presigned upload URLs. File bodies go straight to
// object storage.
type UploadHandler struct {
	uploads *service.UploadService
	logger  *slog.Logger
}

// NewUploadHandler creates a new upload handler. uploads is nil when object
// storage is not configured.
func NewUploadHandler(uploads *service.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

// Presign godoc
// @Summary Get a presigned upload URL
// @Description PROFILE and CHAT_IMAGE accept JPEG, PNG, WebP and GIF up to 10MB. CHAT_VIDEO accepts MP4, MOV and WebM up to 50MB. Chat purposes require chat_room_id and membership.
// @Tags Upload
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.PresignRequest true "Upload description"
// @Success 200 {object} model.PresignResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /upload/presign [post]
func (h *UploadHandler) Presign(c *gin.Context) {
	if h.uploads == nil {
		respondError(c, h.logger, apperror.Unavailable.WithMessage("file upload service unavailable"))
		return
	}

	var req model.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.uploads.Presign(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
