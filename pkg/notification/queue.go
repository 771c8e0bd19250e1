package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueSender hands push requests to RabbitMQ; a worker process delivers them
type QueueSender struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewQueueSender declares the main queue together with a dead-letter queue
func NewQueueSender(url, queue string) (*QueueSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &QueueSender{conn: conn, ch: ch, queue: queue}, nil
}

// DeclareQueues declares the push queue and its ".dlq" dead-letter queue.
// Publisher and worker must declare them identically.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	dlq := queue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	})
	if err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func (q *QueueSender) Send(ctx context.Context, req PushRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.PublishWithContext(cctx,
		"",      // default exchange
		q.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func (q *QueueSender) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// HandleDelivery decodes one queued request and sends it. Malformed bodies
// and failed sends are rejected without requeue so they land in the DLQ.
func HandleDelivery(ctx context.Context, d amqp.Delivery, sender PushSender, logger *slog.Logger) {
	var req PushRequest
	if err := json.Unmarshal(d.Body, &req); err != nil || req.UserID == 0 {
		logger.Warn("bad push message", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := sender.Send(ctx, req); err != nil {
		logger.Warn("push delivery failed", "user_id", req.UserID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		logger.Warn("ack failed", "user_id", req.UserID, "error", err)
	}
}
