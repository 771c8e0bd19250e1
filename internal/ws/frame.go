package ws

import "encoding/json"

// Command names a frame. Clients send SUBSCRIBE, UNSUBSCRIBE, SEND and
// PING; the server answers with CONNECTED, MESSAGE, RECEIPT, ERROR and PONG.
type Command string

const (
	CommandSubscribe   Command = "SUBSCRIBE"
	CommandUnsubscribe Command = "UNSUBSCRIBE"
	CommandSend        Command = "SEND"
	CommandPing        Command = "PING"

	CommandConnected Command = "CONNECTED"
	CommandMessage   Command = "MESSAGE"
	CommandReceipt   Command = "RECEIPT"
	CommandError     Command = "ERROR"
	CommandPong      Command = "PONG"
)

// ClientFrame is one JSON text message sent by a client.
//
// ID is the subscription id for SUBSCRIBE and UNSUBSCRIBE. When Receipt is
// set the server confirms success with a RECEIPT frame carrying it.
type ClientFrame struct {
	Command     Command         `json:"command"`
	ID          string          `json:"id,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Receipt     string          `json:"receipt,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// ServerFrame is one JSON text message sent to a client
type ServerFrame struct {
	Command      Command         `json:"command"`
	Subscription string          `json:"subscription,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	ReceiptID    string          `json:"receipt_id,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	UserID       int64           `json:"user_id,omitempty"`
	Code         string          `json:"code,omitempty"`
	Message      string          `json:"message,omitempty"`
	Body         json.RawMessage `json:"body,omitempty"`
}

// sendBody is the body of SEND to /app/chat/{id}/send
type sendBody struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

// readBody is the body of SEND to /app/chat/{id}/read
type readBody struct {
	MessageID int64 `json:"message_id"`
}
