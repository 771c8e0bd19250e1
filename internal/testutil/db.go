// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/quocanhngo/lighttalk/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the chat schema.
// A single connection keeps the database alive for the duration of the test;
// code under test must therefore run every query of a transaction on the tx.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return open(t, dsn, 1)
}

// NewConcurrentDB opens a file-backed SQLite database in WAL mode with a
// pool of several connections, so transactions really overlap. A writer
// whose snapshot went stale fails with SQLITE_BUSY instead of waiting.
func NewConcurrentDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return open(t, dsn, 8)
}

func open(t *testing.T, dsn string, maxConns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.User{},
		&model.UserDevice{},
		&model.ChatRoom{},
		&model.ChatMember{},
		&model.Message{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// SeedUsers inserts users with ids 1..n named user1..userN
func SeedUsers(t *testing.T, db *gorm.DB, n int) []model.User {
	t.Helper()
	users := make([]model.User, 0, n)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		u := model.User{
			ID:        int64(i),
			Email:     fmt.Sprintf("user%d@lighttalk.local", i),
			Nickname:  fmt.Sprintf("user%d", i),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.WithContext(context.Background()).Create(&u).Error; err != nil {
			t.Fatalf("seed user %d: %v", i, err)
		}
		users = append(users, u)
	}
	return users
}

// Clock is a manual clock. Every call to Now advances it by Step.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	Step    time.Duration
}

func NewClock() *Clock {
	return &Clock{current: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), Step: time.Second}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(c.Step)
	return c.current
}

// Advance moves the clock forward without a call to Now
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
