package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Connect opens the pool and applies migrations.
func Connect(ctx context.Context, dsn string, log logrus.FieldLogger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(32)
	db.SetMaxIdleConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.WithField("statements", len(migrations)).Info("database migrations applied")

	return db, nil
}

// Migrate applies every statement in order. All statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Directory tables owned by the account and asset services; created here so
	// a fresh database is usable on its own.
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            profile_image TEXT,
            public_key TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS assets (
            id TEXT PRIMARY KEY,
            original_name TEXT NOT NULL DEFAULT '',
            content_type TEXT NOT NULL DEFAULT '',
            file_size BIGINT NOT NULL DEFAULT 0,
            url TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS friends (
            id TEXT PRIMARY KEY,
            requester_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            receiver_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (requester_id, receiver_id)
        );`,

	`CREATE TABLE IF NOT EXISTS chat_rooms (
            id TEXT PRIMARY KEY,
            room_type TEXT NOT NULL CHECK (room_type IN ('direct', 'group')),
            name TEXT,
            description TEXT,
            created_by TEXT REFERENCES users(id) ON DELETE SET NULL,
            direct_key TEXT UNIQUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS chat_room_members (
            id TEXT PRIMARY KEY,
            room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('owner', 'admin', 'member')),
            nickname TEXT,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_read_at TIMESTAMPTZ,
            UNIQUE (room_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS chat_room_members_user_idx ON chat_room_members (user_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            seq BIGSERIAL,
            room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id TEXT REFERENCES users(id) ON DELETE SET NULL,
            message_type TEXT NOT NULL DEFAULT 'text' CHECK (message_type IN ('text', 'image', 'file', 'system')),
            content TEXT NOT NULL DEFAULT '',
            encrypted_content TEXT,
            encrypted_session_key TEXT,
            self_encrypted_session_key TEXT,
            asset_id TEXT REFERENCES assets(id) ON DELETE SET NULL,
            reply_to_id TEXT REFERENCES messages(id) ON DELETE SET NULL,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_room_created_idx ON messages (room_id, created_at DESC, seq DESC);`,
	`CREATE TABLE IF NOT EXISTS user_devices (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            device_name TEXT NOT NULL,
            device_fingerprint TEXT NOT NULL UNIQUE,
            encrypted_private_key TEXT NOT NULL,
            is_primary BOOLEAN NOT NULL DEFAULT FALSE,
            last_active TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS user_devices_one_primary ON user_devices (user_id) WHERE is_primary;`,
	`CREATE TABLE IF NOT EXISTS direct_chat_invitations (
            id TEXT PRIMARY KEY,
            inviter_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            invitee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled')),
            room_id TEXT REFERENCES chat_rooms(id) ON DELETE SET NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS direct_invitations_one_pending
            ON direct_chat_invitations (LEAST(inviter_id, invitee_id), GREATEST(inviter_id, invitee_id))
            WHERE status = 'pending';`,
	`CREATE INDEX IF NOT EXISTS direct_invitations_invitee_idx ON direct_chat_invitations (invitee_id, status);`,
	`CREATE TABLE IF NOT EXISTS group_chat_invitations (
            id TEXT PRIMARY KEY,
            room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            inviter_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            invitee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS group_invitations_one_pending ON group_chat_invitations (room_id, invitee_id) WHERE status = 'pending';`,
	`CREATE TABLE IF NOT EXISTS chat_folders (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            color TEXT NOT NULL DEFAULT '#000000',
            sort_order INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS chat_folder_rooms (
            id TEXT PRIMARY KEY,
            folder_id TEXT NOT NULL REFERENCES chat_folders(id) ON DELETE CASCADE,
            room_id TEXT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sort_order INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (folder_id, room_id)
        );`,
}
