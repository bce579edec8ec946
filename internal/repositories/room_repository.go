package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"messenger-core/internal/models"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrAlreadyMember  = errors.New("already a member")
)

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room models.Room) (models.Room, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	LockRoom(ctx context.Context, roomID string) (models.Room, error)
	FindDirectRoom(ctx context.Context, a, b string) (models.Room, error)
	UpdateRoom(ctx context.Context, roomID string, name, description *string) (models.Room, error)
	TouchRoom(ctx context.Context, roomID string, at time.Time) error
	DeleteRoom(ctx context.Context, roomID string) error
	ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error)

	AddMember(ctx context.Context, member models.Member) (models.Member, error)
	GetMember(ctx context.Context, roomID, userID string) (models.Member, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	ListMembers(ctx context.Context, roomID string) ([]models.Member, error)
	RemoveMember(ctx context.Context, roomID, userID string) error
	SetRole(ctx context.Context, roomID, userID string, role models.Role) error
	NextOwnerCandidate(ctx context.Context, roomID, excludeUserID string) (models.Member, error)
	SetLastRead(ctx context.Context, roomID, userID string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db DBTX
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db DBTX) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomColumns = `id, room_type, name, description, created_by, direct_key, created_at, updated_at`

const memberColumns = `id, room_id, user_id, role, nickname, joined_at, last_read_at`

// CreateRoom inserts a room. Direct rooms must carry a DirectKey.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	var created models.Room
	err := r.db.GetContext(ctx, &created, `INSERT INTO chat_rooms (id, room_type, name, description, created_by, direct_key)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+roomColumns,
		room.ID, room.Type, room.Name, room.Description, room.CreatedBy, room.DirectKey)
	if err != nil {
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	return created, nil
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	return r.getRoom(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, roomID)
}

// LockRoom fetches a room and holds its row lock until the transaction ends.
func (r *RoomRepo) LockRoom(ctx context.Context, roomID string) (models.Room, error) {
	return r.getRoom(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1 FOR UPDATE`, roomID)
}

// FindDirectRoom returns the direct room shared by a and b.
func (r *RoomRepo) FindDirectRoom(ctx context.Context, a, b string) (models.Room, error) {
	return r.getRoom(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE room_type='direct' AND direct_key=$1`, models.DirectKey(a, b))
}

func (r *RoomRepo) getRoom(ctx context.Context, query string, args ...interface{}) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// UpdateRoom changes name and/or description; nil leaves a column untouched.
func (r *RoomRepo) UpdateRoom(ctx context.Context, roomID string, name, description *string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `UPDATE chat_rooms
        SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = NOW()
        WHERE id=$1 RETURNING `+roomColumns, roomID, name, description)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("update room: %w", err)
	}
	return room, nil
}

// TouchRoom bumps updated_at so the room sorts first in listings.
func (r *RoomRepo) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET updated_at=$2 WHERE id=$1`, roomID, at); err != nil {
		return fmt.Errorf("touch room: %w", err)
	}
	return nil
}

// DeleteRoom removes a room and everything hanging off it, child rows first.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID string) error {
	steps := []struct {
		what  string
		query string
	}{
		{"messages", `DELETE FROM messages WHERE room_id=$1`},
		{"group invitations", `DELETE FROM group_chat_invitations WHERE room_id=$1`},
		{"direct invitation links", `UPDATE direct_chat_invitations SET room_id=NULL WHERE room_id=$1`},
		{"folder links", `DELETE FROM chat_folder_rooms WHERE room_id=$1`},
		{"members", `DELETE FROM chat_room_members WHERE room_id=$1`},
	}
	for _, step := range steps {
		if _, err := r.db.ExecContext(ctx, step.query, roomID); err != nil {
			return fmt.Errorf("delete room %s: %w", step.what, err)
		}
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id=$1`, roomID)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ListRoomsForUser returns the user's rooms, most recently active first.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms, `SELECT r.id, r.room_type, r.name, r.description, r.created_by, r.direct_key, r.created_at, r.updated_at
        FROM chat_rooms r
        JOIN chat_room_members m ON m.room_id = r.id
        WHERE m.user_id=$1
        ORDER BY r.updated_at DESC, r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// AddMember inserts a membership. A duplicate (room, user) yields ErrAlreadyMember.
func (r *RoomRepo) AddMember(ctx context.Context, member models.Member) (models.Member, error) {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	if member.Role == "" {
		member.Role = models.RoleMember
	}
	var created models.Member
	err := r.db.GetContext(ctx, &created, `INSERT INTO chat_room_members (id, room_id, user_id, role, nickname)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+memberColumns,
		member.ID, member.RoomID, member.UserID, member.Role, member.Nickname)
	if isUniqueViolation(err) {
		return models.Member{}, ErrAlreadyMember
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("add member: %w", err)
	}
	return created, nil
}

// GetMember fetches one membership.
func (r *RoomRepo) GetMember(ctx context.Context, roomID, userID string) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM chat_room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

// IsMember checks whether a user belongs to the room.
func (r *RoomRepo) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_room_members WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return exists, nil
}

// ListMembers returns memberships in join order.
func (r *RoomRepo) ListMembers(ctx context.Context, roomID string) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members, `SELECT `+memberColumns+` FROM chat_room_members WHERE room_id=$1 ORDER BY joined_at, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// RemoveMember deletes a membership.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// SetRole updates a member's role.
func (r *RoomRepo) SetRole(ctx context.Context, roomID, userID string, role models.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_room_members SET role=$3 WHERE room_id=$1 AND user_id=$2`, roomID, userID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// NextOwnerCandidate picks the earliest-joined admin, else the earliest-joined member.
func (r *RoomRepo) NextOwnerCandidate(ctx context.Context, roomID, excludeUserID string) (models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member, `SELECT `+memberColumns+` FROM chat_room_members
        WHERE room_id=$1 AND user_id<>$2
        ORDER BY (role='admin') DESC, joined_at, id
        LIMIT 1`, roomID, excludeUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, ErrMemberNotFound
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("next owner: %w", err)
	}
	return member, nil
}

// SetLastRead moves the user's read marker to the database clock, the same
// clock that stamps messages.created_at. The marker never moves backwards.
func (r *RoomRepo) SetLastRead(ctx context.Context, roomID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE chat_room_members
        SET last_read_at = GREATEST(COALESCE(last_read_at, NOW()), NOW())
        WHERE room_id=$1 AND user_id=$2`, roomID, userID); err != nil {
		return fmt.Errorf("set last read: %w", err)
	}
	return nil
}
