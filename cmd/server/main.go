package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quocanhngo/lighttalk/internal/broker"
	"github.com/quocanhngo/lighttalk/internal/config"
	"github.com/quocanhngo/lighttalk/internal/handler"
	"github.com/quocanhngo/lighttalk/internal/middleware"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/presence"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"github.com/quocanhngo/lighttalk/internal/service"
	"github.com/quocanhngo/lighttalk/internal/telemetry"
	"github.com/quocanhngo/lighttalk/internal/ws"
	"github.com/quocanhngo/lighttalk/migrations"
	"github.com/quocanhngo/lighttalk/pkg/auth"
	"github.com/quocanhngo/lighttalk/pkg/logger"
	"github.com/quocanhngo/lighttalk/pkg/notification"
	"github.com/quocanhngo/lighttalk/pkg/storage"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           LightTalk API
// @version         1.0
// @description     Chat rooms, messages and real-time delivery over WebSocket with Redis Pub/Sub.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// ==================== Load Config ====================
	cfg := config.Load()
	log := logger.New(cfg.App.Env, cfg.Log.Level)
	slog.SetDefault(log)

	if flags.rollback {
		if err := migrations.Rollback(cfg.DB.URL(), log); err != nil {
			fatal(log, "❌ Rollback failed", err)
		}
		return
	}
	log.Info("🚀 Starting LightTalk API Server", "env", cfg.App.Env)

	ctx := context.Background()

	// ==================== Tracing ====================
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		Environment: cfg.App.Env,
		SampleRatio: cfg.OTEL.SampleRatio,
	})
	if err != nil {
		fatal(log, "❌ Failed to init tracing", err)
	}

	// ==================== Database (PostgreSQL) ====================
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if cfg.App.Env == "production" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	})
	if err != nil {
		fatal(log, "❌ Failed to connect to database", err)
	}
	log.Info("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL(), log); err != nil {
		log.Warn("⚠️  Migration failed, falling back to GORM AutoMigrate", "error", err)
		if err := db.AutoMigrate(
			&model.User{},
			&model.UserDevice{},
			&model.ChatRoom{},
			&model.ChatMember{},
			&model.Message{},
		); err != nil {
			fatal(log, "❌ Failed to migrate database", err)
		}
	}
	log.Info("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		fatal(log, "❌ Failed to connect to Redis", err)
	}
	log.Info("✅ Connected to Redis")

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	blacklist := auth.NewBlacklist(rdb)
	store := repository.NewStore(db)
	tracker := presence.NewRedisTracker(rdb)

	// WebSocket Hub (with Redis Pub/Sub for horizontal scaling)
	hub := ws.NewHub(rdb, tracker, log)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)
	select {
	case <-hub.Ready():
	case <-time.After(10 * time.Second):
		fatal(log, "❌ Redis Pub/Sub subscription not ready", errors.New("timeout"))
	}

	var publisher service.EventPublisher = hub
	var mirror *broker.KafkaMirror
	if cfg.Kafka.Brokers != "" {
		mirror = broker.NewKafkaMirror(hub, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		publisher = mirror
		log.Info("✅ Mirroring chat events to Kafka", "topic", cfg.Kafka.Topic)
	}

	pushSender, closePush := newPushSender(ctx, cfg, store, log)
	defer closePush()

	notifier := service.NewNotificationService(store, publisher, pushSender, log)

	// MinIO Storage
	minioStorage, err := storage.NewMinIO(ctx, storage.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		PublicURL: cfg.MinIO.PublicURL,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	}, log)
	if err != nil {
		log.Warn("⚠️  MinIO not available, file upload disabled", "error", err)
		minioStorage = nil
	} else {
		log.Info("✅ Connected to MinIO")
	}

	opts := []service.Option{service.WithLogger(log)}
	roomService := service.NewChatRoomService(store, notifier, tracker, cfg.Chat.GroupMaxMembers, opts...)
	deviceService := service.NewDeviceService(store, opts...)

	var uploadService *service.UploadService
	messageOpts := opts
	if minioStorage != nil {
		uploadService = service.NewUploadService(store, minioStorage, cfg.MinIO.PresignExpiry, opts...)
		messageOpts = append([]service.Option{service.WithMediaStore(minioStorage)}, opts...)
	}
	messageService := service.NewMessageService(store, notifier, messageOpts...)

	gateway := ws.NewGateway(hub, jwtManager, blacklist, store.Members, messageService, cfg.CORS.Origins, log)

	// Handlers
	handlers := handler.Handlers{
		Chat:     handler.NewChatHandler(roomService, log),
		Messages: handler.NewMessageHandler(messageService, log),
		Auth:     handler.NewAuthHandler(blacklist, deviceService, log),
		Upload:   handler.NewUploadHandler(uploadService, log),
	}
	wsHandler := handler.NewWSHandler(gateway)

	// ==================== Gin Router ====================
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.MetricsMiddleware())

	// Swagger: docs/swagger.json is generated by `swag init -g cmd/server/main.go`
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "lighttalk-api",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== API Routes ====================
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtManager, blacklist, log))
	handler.RegisterRoutes(api, handlers)

	// WebSocket endpoint (auth via Authorization header or ?token=)
	router.GET("/ws", wsHandler.HandleWebSocket)

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           otelhttp.NewHandler(router, "lighttalk-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "❌ Server failed", err)
		}
	}()

	log.Info("🌐 LightTalk API running", "addr", "http://0.0.0.0:"+cfg.App.Port)
	log.Info("📋 API docs", "url", "http://0.0.0.0:"+cfg.App.Port+"/swagger/index.html")
	log.Info("🔌 WebSocket", "url", "ws://0.0.0.0:"+cfg.App.Port+"/ws")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down server...")

	// Give ongoing requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("❌ Server forced to shutdown", "error", err)
	}

	// Let background fan-out and push work drain before the hub goes away
	notifier.Wait()
	hubCancel()

	if mirror != nil {
		if err := mirror.Close(); err != nil {
			log.Warn("kafka mirror close failed", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", "error", err)
	}
	if err := rdb.Close(); err != nil {
		log.Warn("redis close failed", "error", err)
	}
	log.Info("✅ Server exited gracefully")
}

// newPushSender picks the push provider. Misconfigured providers fall back
// to the stub so chat keeps working without push.
func newPushSender(ctx context.Context, cfg *config.Config, store *repository.Store, log *slog.Logger) (notification.PushSender, func()) {
	noop := func() {}

	switch cfg.Push.Provider {
	case config.PushProviderFCM:
		sender, err := notification.NewFCMSender(ctx, cfg.Push.FirebaseCredentials, store.Devices, log)
		if err != nil {
			log.Warn("⚠️  FCM not available, push disabled", "error", err)
			return notification.NewStubSender(log), noop
		}
		log.Info("✅ Push via FCM")
		return sender, noop

	case config.PushProviderQueue:
		sender, err := notification.NewQueueSender(cfg.RabbitMQ.URL, cfg.RabbitMQ.PushQueue)
		if err != nil {
			log.Warn("⚠️  RabbitMQ not available, push disabled", "error", err)
			return notification.NewStubSender(log), noop
		}
		log.Info("✅ Push via RabbitMQ", "queue", cfg.RabbitMQ.PushQueue)
		return sender, func() {
			if err := sender.Close(); err != nil {
				log.Warn("rabbitmq close failed", "error", err)
			}
		}
	}

	log.Info("📭 Push provider: stub (logging only)")
	return notification.NewStubSender(log), noop
}

type serverFlags struct {
	rollback bool
}

func parseFlags(args []string) (serverFlags, error) {
	var f serverFlags
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.BoolVar(&f.rollback, "rollback", false, "roll back the latest migration and exit")
	if err := fs.Parse(args); err != nil {
		return serverFlags{}, err
	}
	return f, nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
