package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/middleware"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/service"
)

// ChatHandler handles chat room and membership endpoints
type ChatHandler struct {
	rooms  *service.ChatRoomService
	logger *slog.Logger
}

func NewChatHandler(rooms *service.ChatRoomService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{rooms: rooms, logger: logger}
}

// CreateDirectChat godoc
// @Summary Create or restart a direct chat
// @Description Returns the existing direct chat with the target user, bringing back a member who left, or creates it.
// @Tags Chats
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateDirectChatRequest true "Target user"
// @Success 200 {object} model.ChatRoomResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /chats [post]
func (h *ChatHandler) CreateDirectChat(c *gin.Context) {
	var req model.CreateDirectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	room, err := h.rooms.CreateDirectChat(c.Request.Context(), middleware.UserID(c), req.TargetUserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// CreateGroupChat godoc
// @Summary Create a group chat
// @Tags Chats
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateGroupChatRequest true "Group name and members"
// @Success 201 {object} model.ChatRoomResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /chats/group [post]
func (h *ChatHandler) CreateGroupChat(c *gin.Context) {
	var req model.CreateGroupChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	room, err := h.rooms.CreateGroupChat(c.Request.Context(), middleware.UserID(c), req.Name, req.MemberIDs, req.ImageURL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

// GetMyChatRooms godoc
// @Summary List my chat rooms
// @Description Most recently active first; rooms without messages last.
// @Tags Chats
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ChatRoomResponse
// @Router /chats [get]
func (h *ChatHandler) GetMyChatRooms(c *gin.Context) {
	rooms, err := h.rooms.GetMyChatRooms(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

// GetChatRoom godoc
// @Summary Get a chat room
// @Tags Chats
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Success 200 {object} model.ChatRoomResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /chats/{roomId} [get]
func (h *ChatHandler) GetChatRoom(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}

	room, err := h.rooms.GetChatRoom(c.Request.Context(), roomID, middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// UpdateChatRoom godoc
// @Summary Rename a group or change its image
// @Tags Chats
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param body body model.UpdateChatRoomRequest true "Fields to change"
// @Success 200 {object} model.ChatRoomResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{roomId} [put]
func (h *ChatHandler) UpdateChatRoom(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}

	var req model.UpdateChatRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	room, err := h.rooms.UpdateRoom(c.Request.Context(), roomID, middleware.UserID(c), req.Name, req.ImageURL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// InviteMembers godoc
// @Summary Invite users to a group
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param body body model.InviteMembersRequest true "Users to invite"
// @Success 200 {object} model.ChatRoomResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{roomId}/members [post]
func (h *ChatHandler) InviteMembers(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}

	var req model.InviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	room, err := h.rooms.InviteMembers(c.Request.Context(), roomID, middleware.UserID(c), req.UserIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// RemoveMember godoc
// @Summary Remove a member from a group
// @Description Owner only.
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param userId path int true "User to remove"
// @Success 200 {object} model.ChatRoomResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{roomId}/members/{userId} [delete]
func (h *ChatHandler) RemoveMember(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	room, err := h.rooms.RemoveMember(c.Request.Context(), roomID, middleware.UserID(c), targetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// ChangeRole godoc
// @Summary Change a member's role
// @Description Owner only. Granting OWNER transfers ownership.
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Param userId path int true "Target user"
// @Param body body model.ChangeRoleRequest true "New role"
// @Success 200 {object} model.ChatRoomResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{roomId}/members/{userId}/role [put]
func (h *ChatHandler) ChangeRole(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	var req model.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	room, err := h.rooms.ChangeRole(c.Request.Context(), roomID, middleware.UserID(c), targetID, req.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// LeaveChatRoom godoc
// @Summary Leave a chat room
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param roomId path int true "Chat room ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{roomId}/leave [post]
func (h *ChatHandler) LeaveChatRoom(c *gin.Context) {
	roomID, ok := pathID(c, "roomId")
	if !ok {
		return
	}

	if err := h.rooms.LeaveRoom(c.Request.Context(), roomID, middleware.UserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Left chat room"})
}
