package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/middleware"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/service"
)

// MessageHandler handles message history, sending, reading and deleting
type MessageHandler struct {
	messages *service.MessageService
	logger   *slog.Logger
}

func NewMessageHandler(messages *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// GetMessages godoc
// @Summary Get message history
// @Description Newest first. Pass next_cursor from the previous page as cursor to go further back.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param cursor query int false "Return messages older than this id"
// @Param size query int false "Page size (1-100, default 20)"
// @Success 200 {object} model.MessagePageResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{roomId}/messages [get]
func (h *MessageHandler) GetMessages(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}

	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Size == 0 {
		req.Size = service.DefaultPageSize
	}

	page, err := h.messages.GetMessages(c.Request.Context(), roomID, middleware.UserID(c), req.Cursor, req.Size)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// SendMessage godoc
// @Summary Send a message
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param body body model.SendMessageRequest true "Message"
// @Success 201 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{roomId}/messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.messages.SendMessage(c.Request.Context(), roomID, middleware.UserID(c), req.Content, req.Type)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkAsRead godoc
// @Summary Mark messages as read
// @Description Moves the read pointer forward. Older ids are ignored.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param body body model.MarkAsReadRequest true "Last read message"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /chats/{roomId}/read [put]
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}

	var req model.MarkAsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.messages.MarkAsRead(c.Request.Context(), roomID, middleware.UserID(c), req.MessageID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Marked as read"})
}

// DeleteMessage godoc
// @Summary Delete a message
// @Description Sender only, within 5 minutes of sending.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param messageId path int true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /chats/{roomId}/messages/{messageId} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}

	if err := h.messages.DeleteMessage(c.Request.Context(), roomID, messageID, middleware.UserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Message deleted"})
}
