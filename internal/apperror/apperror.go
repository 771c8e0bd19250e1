// Package apperror defines the domain errors returned by services together
// with the HTTP status and stable code they map to.
package apperror

import (
	"errors"
	"net/http"
)

// Kind groups codes by the reason a request was rejected
type Kind string

const (
	KindInvalidInput           Kind = "INVALID_INPUT"
	KindUnauthorized           Kind = "UNAUTHORIZED"
	KindNotFound               Kind = "NOT_FOUND"
	KindNotAMember             Kind = "NOT_A_MEMBER"
	KindInsufficientRole       Kind = "INSUFFICIENT_ROLE"
	KindInvalidState           Kind = "INVALID_STATE"
	KindCapacityExceeded       Kind = "CAPACITY_EXCEEDED"
	KindExpired                Kind = "EXPIRED"
	KindAlreadyInTerminalState Kind = "ALREADY_IN_TERMINAL_STATE"
	KindUnavailable            Kind = "UNAVAILABLE"
	KindInternal               Kind = "INTERNAL"
)

// Error is a domain error. Two errors match with errors.Is when their codes
// are equal, so a copy with a custom message still matches its sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// From extracts the domain error from err. Unknown errors become Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal
}

func newError(kind Kind, status int, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: msg}
}

// Common
var (
	Internal     = newError(KindInternal, http.StatusInternalServerError, "C001", "internal server error")
	InvalidInput = newError(KindInvalidInput, http.StatusBadRequest, "C002", "invalid input value")
	Unavailable  = newError(KindUnavailable, http.StatusServiceUnavailable, "C006", "service temporarily unavailable")
)

// Auth
var (
	Unauthorized = newError(KindUnauthorized, http.StatusUnauthorized, "A001", "authentication required")
	AccessDenied = newError(KindInsufficientRole, http.StatusForbidden, "A002", "access denied")
	InvalidToken = newError(KindUnauthorized, http.StatusUnauthorized, "A003", "invalid token")
)

// User
var (
	UserNotFound = newError(KindNotFound, http.StatusNotFound, "U001", "user not found")
)

// Chat
var (
	ChatRoomNotFound       = newError(KindNotFound, http.StatusNotFound, "CH001", "chat room not found")
	NotChatMember          = newError(KindNotAMember, http.StatusForbidden, "CH002", "not a member of this chat room")
	NotChatOwner           = newError(KindInsufficientRole, http.StatusForbidden, "CH004", "only the owner can do this")
	NotChatAdmin           = newError(KindInsufficientRole, http.StatusForbidden, "CH005", "only the owner or an admin can do this")
	CannotModifyDirectChat = newError(KindInvalidState, http.StatusBadRequest, "CH006", "direct chats cannot be modified")
	GroupChatNameRequired  = newError(KindInvalidInput, http.StatusBadRequest, "CH007", "group chat name is required")
	GroupChatMinMembers    = newError(KindInvalidInput, http.StatusBadRequest, "CH008", "a group chat needs at least one other member")
	GroupChatMaxMembers    = newError(KindCapacityExceeded, http.StatusBadRequest, "CH009", "chat room is full")
	CannotChangeOwnRole    = newError(KindInvalidInput, http.StatusBadRequest, "CH010", "cannot change your own role")
	InvalidRole            = newError(KindInvalidInput, http.StatusBadRequest, "CH011", "invalid role")
)

// Message
var (
	MessageNotFound        = newError(KindNotFound, http.StatusNotFound, "M001", "message not found")
	EmptyMessageContent    = newError(KindInvalidInput, http.StatusBadRequest, "M002", "message content is empty")
	MessageDeleteForbidden = newError(KindInsufficientRole, http.StatusForbidden, "M003", "only the sender can delete this message")
	MessageDeleteExpired   = newError(KindExpired, http.StatusBadRequest, "M004", "message can no longer be deleted")
	MessageAlreadyDeleted  = newError(KindAlreadyInTerminalState, http.StatusConflict, "M005", "message is already deleted")
)

// Upload
var (
	UnsupportedFileType = newError(KindInvalidInput, http.StatusBadRequest, "UP001", "unsupported file type")
	FileTooLarge        = newError(KindInvalidInput, http.StatusBadRequest, "UP002", "file is too large")
)
