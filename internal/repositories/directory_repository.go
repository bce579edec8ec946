package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"messenger-core/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrAssetNotFound = errors.New("asset not found")
)

// DirectoryRepository reads the user, asset and friend tables owned by other services.
type DirectoryRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	BulkUsers(ctx context.Context, ids []string) (map[string]models.User, error)
	GetAsset(ctx context.Context, assetID string) (models.Asset, error)
	BulkAssets(ctx context.Context, ids []string) (map[string]models.Asset, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// DirectoryRepo is a read-only sqlx implementation of DirectoryRepository.
type DirectoryRepo struct {
	db DBTX
}

// NewDirectoryRepo constructs a DirectoryRepo.
func NewDirectoryRepo(db DBTX) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, name, profile_image, public_key FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// BulkUsers resolves many users at once; unknown ids are absent from the map.
func (r *DirectoryRepo) BulkUsers(ctx context.Context, ids []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, name, profile_image, public_key FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("bulk users: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *DirectoryRepo) GetAsset(ctx context.Context, assetID string) (models.Asset, error) {
	var asset models.Asset
	err := r.db.GetContext(ctx, &asset, `SELECT id, original_name, content_type, file_size, url FROM assets WHERE id=$1`, assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, ErrAssetNotFound
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func (r *DirectoryRepo) BulkAssets(ctx context.Context, ids []string) (map[string]models.Asset, error) {
	result := make(map[string]models.Asset, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var assets []models.Asset
	err := r.db.SelectContext(ctx, &assets, `SELECT id, original_name, content_type, file_size, url FROM assets WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("bulk assets: %w", err)
	}
	for _, a := range assets {
		result[a.ID] = a
	}
	return result, nil
}

// AreFriends reports an accepted friendship in either direction.
func (r *DirectoryRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS(SELECT 1 FROM friends
        WHERE status='accepted'
          AND ((requester_id=$1 AND receiver_id=$2) OR (requester_id=$2 AND receiver_id=$1)))`, a, b)
	if err != nil {
		return false, fmt.Errorf("are friends: %w", err)
	}
	return ok, nil
}
