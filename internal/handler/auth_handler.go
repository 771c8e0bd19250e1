package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/middleware"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/service"
)

// TokenRevoker blocks a token until it would have expired
type TokenRevoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// AuthHandler handles session and device endpoints of the signed-in user.
// Account creation and login live in the identity service.
type AuthHandler struct {
	revoker TokenRevoker
	devices *service.DeviceService
	logger  *slog.Logger
}

func NewAuthHandler(revoker TokenRevoker, devices *service.DeviceService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{revoker: revoker, devices: devices, logger: logger}
}

// Logout godoc
// @Summary Logout
// @Description Invalidate the current token for both REST and WebSocket use
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.SuccessResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.ContextToken)
	if token == "" {
		respondError(c, h.logger, apperror.Unauthorized)
		return
	}

	ttl := time.Hour
	if expiresAt, ok := middleware.TokenExpiry(c); ok {
		ttl = time.Until(expiresAt)
	}

	if err := h.revoker.Revoke(c.Request.Context(), token, ttl); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Logged out successfully"})
}

// RegisterDevice godoc
// @Summary Register device for push notifications
// @Description A token already registered to another user moves to the caller.
// @Tags Devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest true "Register device request"
// @Success 200 {object} model.SuccessResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /devices [post]
func (h *AuthHandler) RegisterDevice(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.devices.RegisterDevice(c.Request.Context(), middleware.UserID(c), req.FCMToken, req.DeviceType); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Device registered successfully"})
}
