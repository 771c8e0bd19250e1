package handler

import "github.com/gin-gonic/gin"

// Handlers groups every authenticated API handler
type Handlers struct {
	Chat     *ChatHandler
	Messages *MessageHandler
	Auth     *AuthHandler
	Upload   *UploadHandler
}

// RegisterRoutes mounts the API on rg. rg must already require authentication.
func RegisterRoutes(rg *gin.RouterGroup, h Handlers) {
	// Auth
	rg.POST("/auth/logout", h.Auth.Logout)
	rg.POST("/devices", h.Auth.RegisterDevice)

	// Chat rooms
	rg.POST("/chats", h.Chat.CreateDirectChat)
	rg.POST("/chats/group", h.Chat.CreateGroupChat)
	rg.GET("/chats", h.Chat.GetMyChatRooms)
	rg.GET("/chats/:roomId", h.Chat.GetChatRoom)
	rg.PUT("/chats/:roomId", h.Chat.UpdateChatRoom)
	rg.POST("/chats/:roomId/leave", h.Chat.LeaveChatRoom)

	// Members
	rg.POST("/chats/:roomId/members", h.Chat.InviteMembers)
	rg.DELETE("/chats/:roomId/members/:userId", h.Chat.RemoveMember)
	rg.PUT("/chats/:roomId/members/:userId/role", h.Chat.ChangeRole)

	// Messages
	rg.GET("/chats/:roomId/messages", h.Messages.GetMessages)
	rg.POST("/chats/:roomId/messages", h.Messages.SendMessage)
	rg.PUT("/chats/:roomId/read", h.Messages.MarkAsRead)
	rg.DELETE("/chats/:roomId/messages/:messageId", h.Messages.DeleteMessage)

	// Upload
	rg.POST("/upload/presign", h.Upload.Presign)
}
