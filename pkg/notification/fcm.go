package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// TokenStore resolves and prunes device tokens
type TokenStore interface {
	TokensByUserID(ctx context.Context, userID int64) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

// FCMSender sends through Firebase Cloud Messaging
type FCMSender struct {
	client *messaging.Client
	tokens TokenStore
	logger *slog.Logger
}

// NewFCMSender initializes Firebase from a service account file
func NewFCMSender(ctx context.Context, credentialsFile string, tokens TokenStore, logger *slog.Logger) (*FCMSender, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("firebase credentials file is not configured")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &FCMSender{client: client, tokens: tokens, logger: logger}, nil
}

// Send delivers to all devices of the user. Tokens FCM reports as
// unregistered are removed.
func (s *FCMSender) Send(ctx context.Context, req PushRequest) error {
	tokens, err := s.tokens.TokensByUserID(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		s.logger.Debug("no FCM token, skipping push", "user_id", req.UserID)
		return nil
	}

	br, err := s.client.SendEachForMulticast(ctx, buildMulticast(tokens, req))
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		var stale []string
		for idx, resp := range br.Responses {
			if resp.Success {
				continue
			}
			if messaging.IsUnregistered(resp.Error) || messaging.IsInvalidArgument(resp.Error) {
				stale = append(stale, tokens[idx])
				continue
			}
			s.logger.Warn("FCM delivery failed", "user_id", req.UserID, "error", resp.Error)
		}
		if err := s.tokens.DeleteTokens(ctx, stale); err != nil {
			s.logger.Warn("failed to prune stale FCM tokens", "error", err)
		}
	}
	return nil
}

func buildMulticast(tokens []string, req PushRequest) *messaging.MulticastMessage {
	badge := req.Badge
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: req.Title,
			Body:  req.Body,
		},
		Data: map[string]string{
			"type":         "chat_message",
			"user_id":      strconv.FormatInt(req.UserID, 10),
			"chat_room_id": strconv.FormatInt(req.ChatRoomID, 10),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:    "default",
				Priority: messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
					Badge: &badge,
				},
			},
		},
	}
}
