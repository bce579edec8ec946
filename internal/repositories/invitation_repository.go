package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"messenger-core/internal/models"
)

var (
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrDuplicateInvitation = errors.New("pending invitation already exists")
)

// InvitationRepository abstracts direct and group invitation persistence.
type InvitationRepository interface {
	CreateDirect(ctx context.Context, inv models.DirectInvitation) (models.DirectInvitation, error)
	GetDirect(ctx context.Context, invitationID string) (models.DirectInvitation, error)
	LockDirect(ctx context.Context, invitationID string) (models.DirectInvitation, error)
	FindPendingDirect(ctx context.Context, inviterID, inviteeID string) (models.DirectInvitation, error)
	UpdateDirectStatus(ctx context.Context, invitationID string, status models.InvitationStatus, roomID *string) (models.DirectInvitation, error)
	ListDirectReceived(ctx context.Context, userID string) ([]models.DirectInvitation, error)
	ListDirectSent(ctx context.Context, userID string) ([]models.DirectInvitation, error)

	CreateGroup(ctx context.Context, inv models.GroupInvitation) (models.GroupInvitation, error)
	GetGroup(ctx context.Context, invitationID string) (models.GroupInvitation, error)
	LockGroup(ctx context.Context, invitationID string) (models.GroupInvitation, error)
	FindPendingGroup(ctx context.Context, roomID, inviteeID string) (models.GroupInvitation, error)
	UpdateGroupStatus(ctx context.Context, invitationID string, status models.InvitationStatus) (models.GroupInvitation, error)
	ListGroupReceived(ctx context.Context, userID string) ([]models.GroupInvitation, error)
}

// InvitationRepo is a sqlx implementation of InvitationRepository.
type InvitationRepo struct {
	db DBTX
}

// NewInvitationRepo constructs an InvitationRepo.
func NewInvitationRepo(db DBTX) *InvitationRepo {
	return &InvitationRepo{db: db}
}

const directColumns = `id, inviter_id, invitee_id, status, room_id, created_at, updated_at`

const groupColumns = `id, room_id, inviter_id, invitee_id, status, created_at, updated_at`

// CreateDirect inserts a pending direct invitation.
func (r *InvitationRepo) CreateDirect(ctx context.Context, inv models.DirectInvitation) (models.DirectInvitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationPending
	}
	var created models.DirectInvitation
	err := r.db.GetContext(ctx, &created, `INSERT INTO direct_chat_invitations (id, inviter_id, invitee_id, status, room_id)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+directColumns,
		inv.ID, inv.InviterID, inv.InviteeID, inv.Status, inv.RoomID)
	if isUniqueViolation(err) {
		return models.DirectInvitation{}, ErrDuplicateInvitation
	}
	if err != nil {
		return models.DirectInvitation{}, fmt.Errorf("create direct invitation: %w", err)
	}
	return created, nil
}

func (r *InvitationRepo) GetDirect(ctx context.Context, invitationID string) (models.DirectInvitation, error) {
	return r.getDirect(ctx, `SELECT `+directColumns+` FROM direct_chat_invitations WHERE id=$1`, invitationID)
}

// LockDirect fetches a direct invitation holding its row lock.
func (r *InvitationRepo) LockDirect(ctx context.Context, invitationID string) (models.DirectInvitation, error) {
	return r.getDirect(ctx, `SELECT `+directColumns+` FROM direct_chat_invitations WHERE id=$1 FOR UPDATE`, invitationID)
}

// FindPendingDirect returns the pending invitation sent by inviterID to inviteeID.
func (r *InvitationRepo) FindPendingDirect(ctx context.Context, inviterID, inviteeID string) (models.DirectInvitation, error) {
	return r.getDirect(ctx, `SELECT `+directColumns+` FROM direct_chat_invitations
        WHERE inviter_id=$1 AND invitee_id=$2 AND status='pending'`, inviterID, inviteeID)
}

func (r *InvitationRepo) getDirect(ctx context.Context, query string, args ...interface{}) (models.DirectInvitation, error) {
	var inv models.DirectInvitation
	err := r.db.GetContext(ctx, &inv, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectInvitation{}, ErrInvitationNotFound
	}
	if err != nil {
		return models.DirectInvitation{}, fmt.Errorf("get direct invitation: %w", err)
	}
	return inv, nil
}

func (r *InvitationRepo) UpdateDirectStatus(ctx context.Context, invitationID string, status models.InvitationStatus, roomID *string) (models.DirectInvitation, error) {
	var inv models.DirectInvitation
	err := r.db.GetContext(ctx, &inv, `UPDATE direct_chat_invitations
        SET status=$2, room_id=COALESCE($3, room_id), updated_at=NOW()
        WHERE id=$1 RETURNING `+directColumns, invitationID, status, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectInvitation{}, ErrInvitationNotFound
	}
	if err != nil {
		return models.DirectInvitation{}, fmt.Errorf("update direct invitation: %w", err)
	}
	return inv, nil
}

// ListDirectReceived returns pending invitations addressed to the user, newest first.
func (r *InvitationRepo) ListDirectReceived(ctx context.Context, userID string) ([]models.DirectInvitation, error) {
	return r.listDirect(ctx, `SELECT `+directColumns+` FROM direct_chat_invitations
        WHERE invitee_id=$1 AND status='pending' ORDER BY created_at DESC`, userID)
}

// ListDirectSent returns pending invitations the user sent, newest first.
func (r *InvitationRepo) ListDirectSent(ctx context.Context, userID string) ([]models.DirectInvitation, error) {
	return r.listDirect(ctx, `SELECT `+directColumns+` FROM direct_chat_invitations
        WHERE inviter_id=$1 AND status='pending' ORDER BY created_at DESC`, userID)
}

func (r *InvitationRepo) listDirect(ctx context.Context, query, userID string) ([]models.DirectInvitation, error) {
	var invs []models.DirectInvitation
	if err := r.db.SelectContext(ctx, &invs, query, userID); err != nil {
		return nil, fmt.Errorf("list direct invitations: %w", err)
	}
	return invs, nil
}

// CreateGroup inserts a pending group invitation.
func (r *InvitationRepo) CreateGroup(ctx context.Context, inv models.GroupInvitation) (models.GroupInvitation, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationPending
	}
	var created models.GroupInvitation
	err := r.db.GetContext(ctx, &created, `INSERT INTO group_chat_invitations (id, room_id, inviter_id, invitee_id, status)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+groupColumns,
		inv.ID, inv.RoomID, inv.InviterID, inv.InviteeID, inv.Status)
	if isUniqueViolation(err) {
		return models.GroupInvitation{}, ErrDuplicateInvitation
	}
	if err != nil {
		return models.GroupInvitation{}, fmt.Errorf("create group invitation: %w", err)
	}
	return created, nil
}

func (r *InvitationRepo) GetGroup(ctx context.Context, invitationID string) (models.GroupInvitation, error) {
	return r.getGroup(ctx, `SELECT `+groupColumns+` FROM group_chat_invitations WHERE id=$1`, invitationID)
}

// LockGroup fetches a group invitation holding its row lock.
func (r *InvitationRepo) LockGroup(ctx context.Context, invitationID string) (models.GroupInvitation, error) {
	return r.getGroup(ctx, `SELECT `+groupColumns+` FROM group_chat_invitations WHERE id=$1 FOR UPDATE`, invitationID)
}

func (r *InvitationRepo) FindPendingGroup(ctx context.Context, roomID, inviteeID string) (models.GroupInvitation, error) {
	return r.getGroup(ctx, `SELECT `+groupColumns+` FROM group_chat_invitations
        WHERE room_id=$1 AND invitee_id=$2 AND status='pending'`, roomID, inviteeID)
}

func (r *InvitationRepo) getGroup(ctx context.Context, query string, args ...interface{}) (models.GroupInvitation, error) {
	var inv models.GroupInvitation
	err := r.db.GetContext(ctx, &inv, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupInvitation{}, ErrInvitationNotFound
	}
	if err != nil {
		return models.GroupInvitation{}, fmt.Errorf("get group invitation: %w", err)
	}
	return inv, nil
}

func (r *InvitationRepo) UpdateGroupStatus(ctx context.Context, invitationID string, status models.InvitationStatus) (models.GroupInvitation, error) {
	var inv models.GroupInvitation
	err := r.db.GetContext(ctx, &inv, `UPDATE group_chat_invitations SET status=$2, updated_at=NOW()
        WHERE id=$1 RETURNING `+groupColumns, invitationID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupInvitation{}, ErrInvitationNotFound
	}
	if err != nil {
		return models.GroupInvitation{}, fmt.Errorf("update group invitation: %w", err)
	}
	return inv, nil
}

// ListGroupReceived returns pending group invitations addressed to the user.
func (r *InvitationRepo) ListGroupReceived(ctx context.Context, userID string) ([]models.GroupInvitation, error) {
	var invs []models.GroupInvitation
	err := r.db.SelectContext(ctx, &invs, `SELECT `+groupColumns+` FROM group_chat_invitations
        WHERE invitee_id=$1 AND status='pending' ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list group invitations: %w", err)
	}
	return invs, nil
}
