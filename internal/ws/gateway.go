package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/metrics"
	"github.com/quocanhngo/lighttalk/internal/middleware"
	"github.com/quocanhngo/lighttalk/internal/model"
)

const (
	appChatPrefix    = "/app/chat/"
	frameTimeout     = 10 * time.Second
	maxContentLength = 5000
)

// TokenValidator verifies the bearer token of a handshake
type TokenValidator interface {
	ValidateAndExtractUserID(token string) (int64, error)
}

// MembershipChecker answers whether a user may see a room
type MembershipChecker interface {
	IsActiveMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// ChatActions are the operations reachable through SEND frames
type ChatActions interface {
	SendMessage(ctx context.Context, roomID, senderID int64, content string, msgType model.MessageType) (*model.MessageResponse, error)
	MarkAsRead(ctx context.Context, roomID, userID, messageID int64) error
}

// Gateway authenticates WebSocket handshakes, authorizes subscriptions and
// routes SEND frames to the chat services
type Gateway struct {
	hub      *Hub
	tokens   TokenValidator
	revoked  middleware.RevocationChecker
	members  MembershipChecker
	chat     ChatActions
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewGateway builds a gateway. An allowedOrigins entry of "*" accepts any
// browser origin; requests without an Origin header are always accepted.
func NewGateway(hub *Hub, tokens TokenValidator, revoked middleware.RevocationChecker, members MembershipChecker, chat ChatActions, allowedOrigins []string, logger *slog.Logger) *Gateway {
	g := &Gateway{
		hub:     hub,
		tokens:  tokens,
		revoked: revoked,
		members: members,
		chat:    chat,
		logger:  logger,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		return set[origin]
	}
}

// Authenticate resolves the user of a handshake from the Authorization
// header, falling back to the token query parameter for browsers
func (g *Gateway) Authenticate(r *http.Request) (int64, error) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return 0, apperror.Unauthorized
	}

	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(r.Context(), token)
		if err != nil {
			g.logger.Error("token blacklist lookup failed", "error", err)
			return 0, apperror.Unavailable
		}
		if revoked {
			return 0, apperror.InvalidToken.WithMessage("token has been revoked")
		}
	}

	userID, err := g.tokens.ValidateAndExtractUserID(token)
	if err != nil {
		return 0, apperror.InvalidToken
	}
	return userID, nil
}

// AuthorizeSubscribe decides whether userID may subscribe to destination
// and returns the canonical form of it, the one events are published to.
// Room topics need active membership; user queues are private.
func (g *Gateway) AuthorizeSubscribe(ctx context.Context, userID int64, destination string) (string, error) {
	switch {
	case strings.HasPrefix(destination, model.RoomTopicPrefix):
		roomID, err := parseID(strings.TrimPrefix(destination, model.RoomTopicPrefix))
		if err != nil {
			return "", err
		}
		active, err := g.members.IsActiveMember(ctx, roomID, userID)
		if err != nil {
			return "", err
		}
		if !active {
			return "", apperror.NotChatMember
		}
		return model.RoomTopic(roomID), nil

	case strings.HasPrefix(destination, model.UserQueuePrefix):
		id, err := parseID(strings.TrimPrefix(destination, model.UserQueuePrefix))
		if err != nil {
			return "", err
		}
		if id != userID {
			return "", apperror.AccessDenied.WithMessage("cannot subscribe to another user's queue")
		}
		return model.UserQueue(id), nil
	}
	return "", apperror.InvalidInput.WithMessage("unknown destination")
}

// ServeHTTP upgrades an authenticated request and runs the connection
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := g.Authenticate(r)
	if err != nil {
		appErr := apperror.From(err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: appErr.Message, Code: appErr.Code})
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := NewClient(g.hub, conn, userID, uuid.NewString())
	g.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(g.handleFrame)
}

func (g *Gateway) handleFrame(client *Client, frame ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch frame.Command {
	case CommandSubscribe:
		if frame.ID == "" {
			g.fail(client, frame, apperror.InvalidInput.WithMessage("subscription id is required"))
			return
		}
		destination, err := g.AuthorizeSubscribe(ctx, client.UserID, frame.Destination)
		if err != nil {
			metrics.WSSubscriptionsRejected.Inc()
			g.fail(client, frame, err)
			return
		}
		if err := g.hub.Subscribe(client, frame.ID, destination); err != nil {
			g.fail(client, frame, apperror.InvalidInput.WithMessage(err.Error()))
			return
		}
		g.ack(client, frame)

	case CommandUnsubscribe:
		g.hub.Unsubscribe(client, frame.ID)
		g.ack(client, frame)

	case CommandSend:
		if err := g.handleSend(ctx, client, frame); err != nil {
			g.fail(client, frame, err)
			return
		}
		g.ack(client, frame)

	case CommandPing:
		g.hub.reply(client, ServerFrame{Command: CommandPong, ReceiptID: frame.Receipt})

	default:
		g.fail(client, frame, apperror.InvalidInput.WithMessage("unknown command"))
	}
}

// handleSend routes /app/chat/{roomId}/send and /app/chat/{roomId}/read
func (g *Gateway) handleSend(ctx context.Context, client *Client, frame ClientFrame) error {
	rest, ok := strings.CutPrefix(frame.Destination, appChatPrefix)
	if !ok {
		return apperror.InvalidInput.WithMessage("unknown destination")
	}
	rawID, action, ok := strings.Cut(rest, "/")
	if !ok {
		return apperror.InvalidInput.WithMessage("unknown destination")
	}
	roomID, err := parseID(rawID)
	if err != nil {
		return err
	}

	switch action {
	case "send":
		var body sendBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return apperror.InvalidInput.WithMessage("malformed body")
		}
		msgType, err := validateSend(body)
		if err != nil {
			return err
		}
		_, err = g.chat.SendMessage(ctx, roomID, client.UserID, body.Content, msgType)
		return err

	case "read":
		var body readBody
		if err := json.Unmarshal(frame.Body, &body); err != nil || body.MessageID <= 0 {
			return apperror.InvalidInput.WithMessage("message_id is required")
		}
		return g.chat.MarkAsRead(ctx, roomID, client.UserID, body.MessageID)
	}
	return apperror.InvalidInput.WithMessage("unknown destination")
}

func validateSend(body sendBody) (model.MessageType, error) {
	if strings.TrimSpace(body.Content) == "" {
		return "", apperror.EmptyMessageContent
	}
	if utf8.RuneCountInString(body.Content) > maxContentLength {
		return "", apperror.InvalidInput.WithMessage("content must be at most 5000 characters")
	}

	switch t := model.MessageType(strings.ToUpper(body.Type)); t {
	case "":
		return model.MessageTypeText, nil
	case model.MessageTypeText, model.MessageTypeImage, model.MessageTypeVideo:
		return t, nil
	}
	return "", apperror.InvalidInput.WithMessage("type must be TEXT, IMAGE or VIDEO")
}

func (g *Gateway) ack(client *Client, frame ClientFrame) {
	if frame.Receipt == "" {
		return
	}
	g.hub.reply(client, ServerFrame{Command: CommandReceipt, ReceiptID: frame.Receipt})
}

func (g *Gateway) fail(client *Client, frame ClientFrame, err error) {
	appErr := apperror.From(err)
	if appErr.Kind == apperror.KindInternal {
		g.logger.Error("websocket frame failed", "user_id", client.UserID, "command", frame.Command, "error", err)
	}

	reply := ServerFrame{
		Command:     CommandError,
		Destination: frame.Destination,
		ReceiptID:   frame.Receipt,
		Code:        appErr.Code,
		Message:     appErr.Message,
	}
	if frame.Command == CommandSubscribe {
		reply.Subscription = frame.ID
	}
	g.hub.reply(client, reply)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.InvalidInput.WithMessage("invalid id in destination")
	}
	return id, nil
}
