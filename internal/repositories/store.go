package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-core/internal/models"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Repos bundles every repository bound to the same connection or transaction.
type Repos struct {
	Rooms       RoomRepository
	Messages    MessageRepository
	Devices     DeviceRepository
	Invitations InvitationRepository
	Folders     FolderRepository
	Directory   DirectoryRepository
	Locks       Locker
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repos
	WithinTx(ctx context.Context, fn func(Repos) error) error
}

// Locker takes transaction-scoped advisory locks.
type Locker interface {
	LockPair(ctx context.Context, a, b string) error
	LockUser(ctx context.Context, userID string) error
}

// SQLStore is the Postgres-backed Store.
type SQLStore struct {
	db *sqlx.DB
}

// NewStore constructs a SQLStore.
func NewStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Repos() Repos {
	return reposFor(s.db)
}

// WithinTx runs fn inside one transaction, committing only when fn succeeds.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(Repos) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(reposFor(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func reposFor(q DBTX) Repos {
	return Repos{
		Rooms:       NewRoomRepo(q),
		Messages:    NewMessageRepo(q),
		Devices:     NewDeviceRepo(q),
		Invitations: NewInvitationRepo(q),
		Folders:     NewFolderRepo(q),
		Directory:   NewDirectoryRepo(q),
		Locks:       advisoryLocker{q: q},
	}
}

type advisoryLocker struct {
	q DBTX
}

func (l advisoryLocker) LockPair(ctx context.Context, a, b string) error {
	return l.lock(ctx, "pair:"+models.DirectKey(a, b))
}

func (l advisoryLocker) LockUser(ctx context.Context, userID string) error {
	return l.lock(ctx, "user:"+userID)
}

func (l advisoryLocker) lock(ctx context.Context, key string) error {
	if _, err := l.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
