// Command worker consumes queued push requests from RabbitMQ and delivers
// them through FCM. The API server enqueues them when PUSH_PROVIDER=queue.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/quocanhngo/lighttalk/internal/config"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"github.com/quocanhngo/lighttalk/pkg/logger"
	"github.com/quocanhngo/lighttalk/pkg/notification"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sendTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.New(cfg.App.Env, cfg.Log.Level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		fatal(log, "❌ Failed to connect to database", err)
	}
	store := repository.NewStore(db)

	var sender notification.PushSender = notification.NewStubSender(log)
	if cfg.Push.FirebaseCredentials != "" {
		fcm, err := notification.NewFCMSender(ctx, cfg.Push.FirebaseCredentials, store.Devices, log)
		if err != nil {
			fatal(log, "❌ Failed to init FCM", err)
		}
		sender = fcm
	} else {
		log.Warn("⚠️  FIREBASE_CREDENTIALS_FILE not set, pushes are only logged")
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		fatal(log, "❌ rabbit dial", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		fatal(log, "❌ rabbit channel", err)
	}
	defer ch.Close()

	if err := notification.DeclareQueues(ch, cfg.RabbitMQ.PushQueue); err != nil {
		fatal(log, "❌ queue declare", err)
	}

	concurrency := cfg.RabbitMQ.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		fatal(log, "❌ qos", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQ.PushQueue, "", false, false, false, false, nil)
	if err != nil {
		fatal(log, "❌ consume", err)
	}

	log.Info("🚀 Push worker started", "queue", cfg.RabbitMQ.PushQueue, "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With("worker", workerID)
			for d := range jobs {
				sctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
				notification.HandleDelivery(sctx, d, sender, wlog)
				cancel()
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("🛑 Push worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error("delivery channel closed")
				close(jobs)
				wg.Wait()
				os.Exit(1)
			}
			jobs <- d
		}
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
