package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"messenger-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository abstracts message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID string) (models.Message, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Message, error)
	List(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	Count(ctx context.Context, roomID string) (int, error)
	Latest(ctx context.Context, roomID string) (models.Message, error)
	UpdateContent(ctx context.Context, messageID string, edit models.Message) (models.Message, error)
	Delete(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, roomID, readerID string, ids []string) (int, error)
	UnreadCount(ctx context.Context, roomID, viewerID string, since *time.Time) (int, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db DBTX
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db DBTX) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, seq, room_id, sender_id, message_type, content, encrypted_content,
        encrypted_session_key, self_encrypted_session_key, asset_id, reply_to_id, is_read, created_at, updated_at`

// Create inserts a message and returns it with server-assigned fields.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	var created models.Message
	err := r.db.GetContext(ctx, &created, `INSERT INTO messages
        (id, room_id, sender_id, message_type, content, encrypted_content, encrypted_session_key,
         self_encrypted_session_key, asset_id, reply_to_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING `+messageColumns,
		msg.ID, msg.RoomID, msg.SenderID, msg.Type, msg.Content, msg.EncryptedContent, msg.EncryptedSessionKey,
		msg.SelfEncryptedSessionKey, msg.AssetID, msg.ReplyToID)
	if err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}
	return created, nil
}

// Get fetches a message by id.
func (r *MessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// GetByIDs fetches every listed message that exists, in no particular order.
func (r *MessageRepo) GetByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return msgs, nil
}

// List returns one page of the room's history, newest first.
func (r *MessageRepo) List(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE room_id=$1
        ORDER BY created_at DESC, seq DESC
        LIMIT $2 OFFSET $3`, roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Count returns the number of messages in a room.
func (r *MessageRepo) Count(ctx context.Context, roomID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE room_id=$1`, roomID); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return total, nil
}

// Latest returns the newest message of a room.
func (r *MessageRepo) Latest(ctx context.Context, roomID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages
        WHERE room_id=$1 ORDER BY created_at DESC, seq DESC LIMIT 1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("latest message: %w", err)
	}
	return msg, nil
}

// UpdateContent replaces the content and envelope fields of a message.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID string, edit models.Message) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages
        SET content=$2, encrypted_content=$3, encrypted_session_key=$4, self_encrypted_session_key=$5, updated_at=NOW()
        WHERE id=$1 RETURNING `+messageColumns,
		messageID, edit.Content, edit.EncryptedContent, edit.EncryptedSessionKey, edit.SelfEncryptedSessionKey)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("update message: %w", err)
	}
	return msg, nil
}

// Delete removes a message. Replies to it keep existing with reply_to_id cleared.
func (r *MessageRepo) Delete(ctx context.Context, messageID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE messages SET reply_to_id=NULL WHERE reply_to_id=$1`, messageID); err != nil {
		return fmt.Errorf("detach replies: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkRead flags the listed messages of the room not written by the reader.
func (r *MessageRepo) MarkRead(ctx context.Context, roomID, readerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read=TRUE
        WHERE room_id=$1 AND id = ANY($2) AND (sender_id IS NULL OR sender_id<>$3)`,
		roomID, pq.Array(ids), readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return int(n), nil
}

// UnreadCount counts messages after since (all when nil) not written by the viewer.
func (r *MessageRepo) UnreadCount(ctx context.Context, roomID, viewerID string, since *time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE room_id=$1
          AND (sender_id IS NULL OR sender_id<>$2)
          AND ($3::timestamptz IS NULL OR created_at > $3)`, roomID, viewerID, since)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
