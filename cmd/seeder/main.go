package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/quocanhngo/lighttalk/internal/broker"
	"github.com/quocanhngo/lighttalk/internal/config"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/internal/repository"
	"github.com/quocanhngo/lighttalk/internal/service"
	"github.com/quocanhngo/lighttalk/migrations"
	"github.com/quocanhngo/lighttalk/pkg/auth"
	"github.com/quocanhngo/lighttalk/pkg/logger"
	"github.com/quocanhngo/lighttalk/pkg/notification"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	seedUsers    = 10
	seedPassword = "password123"
	demoGroup    = "General Chat"
)

func main() {
	// Load config
	cfg := config.Load()
	log := logger.New(cfg.App.Env, cfg.Log.Level)
	ctx := context.Background()

	// Force DB logging off to avoid noise
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fatal(log, "❌ Failed to connect to database", err)
	}
	log.Info("✅ Connected to Database")

	if err := migrations.Run(cfg.DB.URL(), log); err != nil {
		fatal(log, "❌ Failed to migrate database", err)
	}

	store := repository.NewStore(db)

	// Events go nowhere: no client is connected while seeding
	notifier := service.NewNotificationService(store, broker.NewMemoryBus(), notification.NewStubSender(logger.Discard()), log)
	defer notifier.Wait()

	opts := []service.Option{service.WithLogger(log)}
	rooms := service.NewChatRoomService(store, notifier, nil, cfg.Chat.GroupMaxMembers, opts...)
	messages := service.NewMessageService(store, notifier, opts...)

	log.Info("🌱 Seeding users...", "count", seedUsers)
	users, err := seedUserAccounts(ctx, store, log)
	if err != nil {
		fatal(log, "❌ Failed to seed users", err)
	}

	if err := seedChats(ctx, rooms, messages, users, log); err != nil {
		fatal(log, "❌ Failed to seed chats", err)
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	for _, u := range users[:3] {
		token, err := jwtManager.GenerateToken(u.ID, u.Nickname)
		if err != nil {
			fatal(log, "❌ Failed to issue dev token", err)
		}
		fmt.Printf("%s (id=%d): %s\n", u.Email, u.ID, token)
	}

	log.Info("🎉 Seeding completed!")
}

func seedUserAccounts(ctx context.Context, store *repository.Store, log *slog.Logger) ([]model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	users := make([]model.User, 0, seedUsers)
	for i := 1; i <= seedUsers; i++ {
		email := fmt.Sprintf("user%d@lighttalk.local", i)

		existing, err := store.Users.FindByEmail(ctx, email)
		if err == nil {
			users = append(users, *existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		avatar := fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=user%d", i)
		user := model.User{
			Email:           email,
			PasswordHash:    string(hashed),
			Nickname:        fmt.Sprintf("User %d", i),
			ProfileImageURL: &avatar,
		}
		if err := store.Users.Create(ctx, &user); err != nil {
			return nil, fmt.Errorf("create %s: %w", email, err)
		}
		log.Info("✅ Created user", "email", email, "password", seedPassword)
		users = append(users, user)
	}
	return users, nil
}

func seedChats(ctx context.Context, rooms *service.ChatRoomService, messages *service.MessageService, users []model.User, log *slog.Logger) error {
	owner := users[0]

	mine, err := rooms.GetMyChatRooms(ctx, owner.ID)
	if err != nil {
		return err
	}
	for _, r := range mine {
		if r.Name != nil && *r.Name == demoGroup {
			log.Info("🔄 Demo chats already exist")
			return nil
		}
	}

	direct, err := rooms.CreateDirectChat(ctx, owner.ID, users[1].ID)
	if err != nil {
		return fmt.Errorf("direct chat: %w", err)
	}
	if _, err := messages.SendMessage(ctx, direct.ID, users[1].ID, "Hi! 👋", model.MessageTypeText); err != nil {
		return err
	}

	group, err := rooms.CreateGroupChat(ctx, owner.ID, demoGroup, []int64{users[1].ID, users[2].ID}, nil)
	if err != nil {
		return fmt.Errorf("group chat: %w", err)
	}
	if _, err := messages.SendMessage(ctx, group.ID, owner.ID, "Welcome everybody to LightTalk! 🚀", model.MessageTypeText); err != nil {
		return err
	}

	log.Info("✅ Created demo chats", "direct_id", direct.ID, "group_id", group.ID)
	return nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
