package model

import "time"

// ========== Chat Room DTOs ==========

type CreateDirectChatRequest struct {
	TargetUserID int64 `json:"target_user_id" binding:"required"`
}

type CreateGroupChatRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"member_ids"`
	ImageURL  *string `json:"image_url" binding:"omitempty,max=500"`
}

type InviteMembersRequest struct {
	UserIDs []int64 `json:"user_ids" binding:"required,min=1"`
}

type UpdateChatRoomRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=100"`
	ImageURL *string `json:"image_url" binding:"omitempty,max=500"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ChatMemberInfo is an active member as shown to clients
type ChatMemberInfo struct {
	UserID          int64      `json:"user_id"`
	Nickname        string     `json:"nickname"`
	ProfileImageURL *string    `json:"profile_image_url"`
	Role            MemberRole `json:"role"`
	JoinedAt        time.Time  `json:"joined_at"`
	Online          bool       `json:"online"`
}

// LastMessageInfo summarizes the newest message of a room. Content is blank
// when the message was deleted.
type LastMessageInfo struct {
	ID        int64       `json:"id"`
	Content   string      `json:"content"`
	SenderID  int64       `json:"sender_id"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

type ChatRoomResponse struct {
	ID          int64            `json:"id"`
	Type        ChatRoomType     `json:"type"`
	Name        *string          `json:"name"`
	ImageURL    *string          `json:"image_url"`
	OwnerID     *int64           `json:"owner_id"`
	MaxMembers  int              `json:"max_members"`
	Members     []ChatMemberInfo `json:"members"`
	LastMessage *LastMessageInfo `json:"last_message"`
	UnreadCount int64            `json:"unread_count"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	Content string      `json:"content" binding:"required,max=5000"`
	Type    MessageType `json:"type" binding:"omitempty,oneof=TEXT IMAGE VIDEO"`
}

type MarkAsReadRequest struct {
	MessageID int64 `json:"message_id" binding:"required,min=1"`
}

type MessageListRequest struct {
	Cursor *int64 `form:"cursor" binding:"omitempty,min=1"`
	Size   int    `form:"size"`
}

type MessageResponse struct {
	ID             int64       `json:"id"`
	ChatRoomID     int64       `json:"chat_room_id"`
	SenderID       int64       `json:"sender_id"`
	SenderNickname string      `json:"sender_nickname"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	CreatedAt      time.Time   `json:"created_at"`
	IsRead         bool        `json:"is_read"`
	DeletedAt      *time.Time  `json:"deleted_at"`
}

type MessagePageResponse struct {
	Messages   []MessageResponse `json:"messages"`
	HasMore    bool              `json:"has_more"`
	NextCursor *int64            `json:"next_cursor"`
}

// ========== Device DTOs ==========

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required,max=512"`
	DeviceType string `json:"device_type" binding:"omitempty,oneof=android ios web"`
}

// ========== Upload DTOs ==========

type UploadPurpose string

const (
	UploadPurposeProfile   UploadPurpose = "PROFILE"
	UploadPurposeChatImage UploadPurpose = "CHAT_IMAGE"
	UploadPurposeChatVideo UploadPurpose = "CHAT_VIDEO"
)

type PresignRequest struct {
	Purpose       UploadPurpose `json:"purpose" binding:"required,oneof=PROFILE CHAT_IMAGE CHAT_VIDEO"`
	ContentType   string        `json:"content_type" binding:"required"`
	ContentLength int64         `json:"content_length" binding:"required,min=1"`
	FileName      string        `json:"file_name" binding:"required,max=255"`
	ChatRoomID    *int64        `json:"chat_room_id"`
}

type PresignResponse struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}
