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
	ErrFolderNotFound      = errors.New("folder not found")
	ErrFolderRoomNotFound  = errors.New("room not in folder")
	ErrFolderRoomDuplicate = errors.New("room already in folder")
)

// FolderRepository abstracts per-user chat folder persistence.
type FolderRepository interface {
	Create(ctx context.Context, folder models.Folder) (models.Folder, error)
	GetOwned(ctx context.Context, userID, folderID string) (models.Folder, error)
	ListForUser(ctx context.Context, userID string) ([]models.Folder, error)
	Update(ctx context.Context, userID, folderID string, name, color *string) (models.Folder, error)
	Delete(ctx context.Context, userID, folderID string) error
	AddRoom(ctx context.Context, folderID, roomID string) (models.FolderRoom, error)
	RemoveRoom(ctx context.Context, folderID, roomID string) error
	ListRooms(ctx context.Context, folderID string) ([]models.FolderRoom, error)
}

// FolderRepo is a sqlx implementation of FolderRepository.
type FolderRepo struct {
	db DBTX
}

// NewFolderRepo constructs a FolderRepo.
func NewFolderRepo(db DBTX) *FolderRepo {
	return &FolderRepo{db: db}
}

const folderSelect = `SELECT f.id, f.user_id, f.name, f.color, f.sort_order, f.created_at, f.updated_at,
        (SELECT COUNT(*) FROM chat_folder_rooms fr WHERE fr.folder_id = f.id) AS room_count
        FROM chat_folders f`

func (r *FolderRepo) Create(ctx context.Context, folder models.Folder) (models.Folder, error) {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	var created models.Folder
	err := r.db.GetContext(ctx, &created, `INSERT INTO chat_folders (id, user_id, name, color, sort_order)
        VALUES ($1, $2, $3, $4,
                (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM chat_folders WHERE user_id=$2))
        RETURNING id, user_id, name, color, sort_order, created_at, updated_at, 0 AS room_count`,
		folder.ID, folder.UserID, folder.Name, folder.Color)
	if err != nil {
		return models.Folder{}, fmt.Errorf("create folder: %w", err)
	}
	return created, nil
}

// GetOwned fetches a folder only if userID owns it.
func (r *FolderRepo) GetOwned(ctx context.Context, userID, folderID string) (models.Folder, error) {
	var folder models.Folder
	err := r.db.GetContext(ctx, &folder, folderSelect+` WHERE f.id=$1 AND f.user_id=$2`, folderID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Folder{}, ErrFolderNotFound
	}
	if err != nil {
		return models.Folder{}, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

func (r *FolderRepo) ListForUser(ctx context.Context, userID string) ([]models.Folder, error) {
	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, folderSelect+` WHERE f.user_id=$1 ORDER BY f.sort_order, f.created_at`, userID); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// Update changes name and/or color; nil leaves a column untouched.
func (r *FolderRepo) Update(ctx context.Context, userID, folderID string, name, color *string) (models.Folder, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_folders
        SET name=COALESCE($3, name), color=COALESCE($4, color), updated_at=NOW()
        WHERE id=$1 AND user_id=$2`, folderID, userID, name, color)
	if err != nil {
		return models.Folder{}, fmt.Errorf("update folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Folder{}, ErrFolderNotFound
	}
	return r.GetOwned(ctx, userID, folderID)
}

// Delete removes a folder. Rooms inside it are untouched.
func (r *FolderRepo) Delete(ctx context.Context, userID, folderID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_folder_rooms WHERE folder_id IN
        (SELECT id FROM chat_folders WHERE id=$1 AND user_id=$2)`, folderID, userID); err != nil {
		return fmt.Errorf("delete folder rooms: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_folders WHERE id=$1 AND user_id=$2`, folderID, userID)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFolderNotFound
	}
	return nil
}

// AddRoom appends a room at the end of the folder.
func (r *FolderRepo) AddRoom(ctx context.Context, folderID, roomID string) (models.FolderRoom, error) {
	var link models.FolderRoom
	err := r.db.GetContext(ctx, &link, `INSERT INTO chat_folder_rooms (id, folder_id, room_id, sort_order)
        VALUES ($1, $2, $3, (SELECT COUNT(*) FROM chat_folder_rooms WHERE folder_id=$2))
        RETURNING id, folder_id, room_id, sort_order, created_at`, uuid.NewString(), folderID, roomID)
	if isUniqueViolation(err) {
		return models.FolderRoom{}, ErrFolderRoomDuplicate
	}
	if err != nil {
		return models.FolderRoom{}, fmt.Errorf("add folder room: %w", err)
	}
	return link, nil
}

func (r *FolderRepo) RemoveRoom(ctx context.Context, folderID, roomID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_folder_rooms WHERE folder_id=$1 AND room_id=$2`, folderID, roomID)
	if err != nil {
		return fmt.Errorf("remove folder room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFolderRoomNotFound
	}
	return nil
}

func (r *FolderRepo) ListRooms(ctx context.Context, folderID string) ([]models.FolderRoom, error) {
	var links []models.FolderRoom
	err := r.db.SelectContext(ctx, &links, `SELECT id, folder_id, room_id, sort_order, created_at
        FROM chat_folder_rooms WHERE folder_id=$1 ORDER BY sort_order, created_at`, folderID)
	if err != nil {
		return nil, fmt.Errorf("list folder rooms: %w", err)
	}
	return links, nil
}
