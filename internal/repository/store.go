package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories that share one connection or one transaction
type Store struct {
	db       *gorm.DB
	Users    *UserRepository
	Devices  *DeviceRepository
	Rooms    *ChatRoomRepository
	Members  *ChatMemberRepository
	Messages *MessageRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Users:    NewUserRepository(db),
		Devices:  NewDeviceRepository(db),
		Rooms:    NewChatRoomRepository(db),
		Members:  NewChatMemberRepository(db),
		Messages: NewMessageRepository(db),
	}
}

// Transaction runs fn inside a database transaction. Every query issued by fn
// must go through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(NewStore(db))
	})
}

// LockKey takes a transaction-scoped advisory lock named key. It blocks
// until any other transaction holding the same key ends, on every server
// instance. Only postgres has advisory locks; elsewhere it is a no-op.
func (s *Store) LockKey(ctx context.Context, key string) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Error
}

// lockForUpdate adds SELECT ... FOR UPDATE on dialects that support row locks
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
