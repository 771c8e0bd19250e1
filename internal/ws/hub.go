package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quocanhngo/lighttalk/internal/metrics"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	redisChannel    = "lighttalk:events"
	presenceTimeout = 2 * time.Second
)

var errClientGone = errors.New("client is not connected")

// SessionTracker is told about every connection that opens or closes
type SessionTracker interface {
	Connect(ctx context.Context, userID int64, sessionID string) (bool, error)
	Disconnect(ctx context.Context, userID int64, sessionID string) (bool, error)
}

// envelope is what travels over Redis between instances
type envelope struct {
	Destination string          `json:"destination"`
	Event       json.RawMessage `json:"event"`
}

// Hub manages all WebSocket connections and destination subscriptions.
// Events are published to Redis and every instance delivers them to its own
// subscribers, so a client may be connected to any instance.
type Hub struct {
	// Connected clients and, per destination, the subscribed clients with
	// their subscription id
	clients       map[*Client]bool
	subscriptions map[string]map[*Client]string
	mu            sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	rdb      *redis.Client
	sessions SessionTracker
	logger   *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// NewHub creates a new WebSocket Hub. sessions may be nil.
func NewHub(rdb *redis.Client, sessions SessionTracker, logger *slog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]string),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		rdb:           rdb,
		sessions:      sessions,
		logger:        logger,
		ready:         make(chan struct{}),
	}
}

// Run starts the Hub's main event loop. It returns when ctx is cancelled,
// after closing every local connection.
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeRedis(ctx)
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.addClient(ctx, client)

		case client := <-h.unregister:
			h.removeClient(ctx, client)
		}
	}
}

// Ready is closed once the Redis subscription is active
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.conn.Close()
	}
}

// Unregister queues a client for removal. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends event to every subscriber of destination on every instance
func (h *Hub) Publish(ctx context.Context, destination string, event model.ChatEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	data, err := json.Marshal(envelope{Destination: destination, Event: body})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := h.rdb.Publish(ctx, redisChannel, data).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

// Subscribe attaches client to destination under subscriptionID
func (h *Hub) Subscribe(client *Client, subscriptionID, destination string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return errClientGone
	}
	if _, taken := client.subs[subscriptionID]; taken {
		return fmt.Errorf("subscription id %q already in use", subscriptionID)
	}

	subs, ok := h.subscriptions[destination]
	if !ok {
		subs = make(map[*Client]string)
		h.subscriptions[destination] = subs
	}
	subs[client] = subscriptionID
	client.subs[subscriptionID] = destination
	return nil
}

// Unsubscribe detaches a subscription. It reports whether it existed.
func (h *Hub) Unsubscribe(client *Client, subscriptionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	destination, ok := client.subs[subscriptionID]
	if !ok {
		return false
	}
	delete(client.subs, subscriptionID)
	h.detach(client, destination)
	return true
}

// detach removes client from destination. Caller holds h.mu.
func (h *Hub) detach(client *Client, destination string) {
	subs := h.subscriptions[destination]
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.subscriptions, destination)
	}
}

// addClient registers a new client connection
func (h *Hub) addClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	metrics.WSConnections.Inc()

	if h.sessions != nil {
		pctx, cancel := context.WithTimeout(ctx, presenceTimeout)
		first, err := h.sessions.Connect(pctx, client.UserID, client.SessionID)
		cancel()
		if err != nil {
			h.logger.Warn("presence connect failed", "user_id", client.UserID, "error", err)
		} else if first {
			h.logger.Debug("👤 user online", "user_id", client.UserID)
		}
	}
	h.reply(client, ServerFrame{Command: CommandConnected, SessionID: client.SessionID, UserID: client.UserID})
	h.logger.Info("✅ Client connected", "user_id", client.UserID, "session_id", client.SessionID)
}

// removeClient unregisters a client connection and drops its subscriptions
func (h *Hub) removeClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for id, destination := range client.subs {
		h.detach(client, destination)
		delete(client.subs, id)
	}
	close(client.send)
	h.mu.Unlock()

	metrics.WSConnections.Dec()

	if h.sessions != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presenceTimeout)
		offline, err := h.sessions.Disconnect(pctx, client.UserID, client.SessionID)
		cancel()
		if err != nil {
			h.logger.Warn("presence disconnect failed", "user_id", client.UserID, "error", err)
		} else if offline {
			h.logger.Debug("👤 user offline", "user_id", client.UserID)
		}
	}
	h.logger.Info("❌ Client disconnected", "user_id", client.UserID, "session_id", client.SessionID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	for _, c := range clients {
		h.removeClient(ctx, c)
	}
}

// reply sends a frame to one local client
func (h *Hub) reply(client *Client, frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("marshal frame", "error", err)
		return
	}

	h.mu.RLock()
	ok := h.clients[client] && client.enqueue(data)
	h.mu.RUnlock()

	if !ok {
		h.dropSlow(client)
	}
}

// deliver hands a published event to the local subscribers of destination
func (h *Hub) deliver(destination string, event json.RawMessage) {
	var slow []*Client

	h.mu.RLock()
	for client, subscriptionID := range h.subscriptions[destination] {
		data, err := json.Marshal(ServerFrame{
			Command:      CommandMessage,
			Subscription: subscriptionID,
			Destination:  destination,
			Body:         event,
		})
		if err != nil {
			h.logger.Error("marshal frame", "error", err)
			continue
		}
		if !client.enqueue(data) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.dropSlow(c)
	}
}

// dropSlow disconnects a client whose send buffer is full
func (h *Hub) dropSlow(client *Client) {
	h.mu.RLock()
	connected := h.clients[client]
	h.mu.RUnlock()
	if !connected {
		return
	}
	h.logger.Warn("dropping slow client", "user_id", client.UserID, "session_id", client.SessionID)
	go h.Unregister(client)
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// subscribeRedis subscribes to Redis and delivers events to local clients
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			h.logger.Error("redis subscribe failed", "channel", redisChannel, "error", err)
		}
		return
	}
	h.readyOnce.Do(func() { close(h.ready) })

	ch := pubsub.Channel()
	h.logger.Info("📡 Redis Pub/Sub subscriber started", "channel", redisChannel)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("bad event on redis channel", "error", err)
				continue
			}
			h.deliver(env.Destination, env.Event)
		}
	}
}
