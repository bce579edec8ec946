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
	ErrDeviceNotFound       = errors.New("device not found")
	ErrDuplicateFingerprint = errors.New("device fingerprint already registered")
)

// DeviceRepository abstracts device persistence.
type DeviceRepository interface {
	Create(ctx context.Context, device models.Device) (models.Device, error)
	Get(ctx context.Context, deviceID string) (models.Device, error)
	CountForUser(ctx context.Context, userID string) (int, error)
	ListForUser(ctx context.Context, userID string) ([]models.Device, error)
	FingerprintExists(ctx context.Context, fingerprint string) (bool, error)
	FindByFingerprint(ctx context.Context, userID, fingerprint string) (models.Device, error)
	TouchLastActive(ctx context.Context, deviceID string, at time.Time) error
	Delete(ctx context.Context, userID, deviceID string) error
}

// DeviceRepo is a sqlx implementation of DeviceRepository.
type DeviceRepo struct {
	db DBTX
}

// NewDeviceRepo constructs a DeviceRepo.
func NewDeviceRepo(db DBTX) *DeviceRepo {
	return &DeviceRepo{db: db}
}

const deviceColumns = `id, user_id, device_name, device_fingerprint, encrypted_private_key, is_primary, last_active, created_at`

// Create inserts a device. A fingerprint collision yields ErrDuplicateFingerprint.
func (r *DeviceRepo) Create(ctx context.Context, device models.Device) (models.Device, error) {
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	var created models.Device
	err := r.db.GetContext(ctx, &created, `INSERT INTO user_devices
        (id, user_id, device_name, device_fingerprint, encrypted_private_key, is_primary, last_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+deviceColumns,
		device.ID, device.UserID, device.DeviceName, device.DeviceFingerprint, device.EncryptedPrivateKey,
		device.IsPrimary, device.LastActive)
	if isUniqueViolation(err) {
		return models.Device{}, ErrDuplicateFingerprint
	}
	if err != nil {
		return models.Device{}, fmt.Errorf("create device: %w", err)
	}
	return created, nil
}

// Get fetches a device by id.
func (r *DeviceRepo) Get(ctx context.Context, deviceID string) (models.Device, error) {
	var device models.Device
	err := r.db.GetContext(ctx, &device, `SELECT `+deviceColumns+` FROM user_devices WHERE id=$1`, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Device{}, ErrDeviceNotFound
	}
	if err != nil {
		return models.Device{}, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

func (r *DeviceRepo) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_devices WHERE user_id=$1`, userID); err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return count, nil
}

// ListForUser returns the user's devices, primary first.
func (r *DeviceRepo) ListForUser(ctx context.Context, userID string) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.SelectContext(ctx, &devices, `SELECT `+deviceColumns+` FROM user_devices
        WHERE user_id=$1 ORDER BY is_primary DESC, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

func (r *DeviceRepo) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM user_devices WHERE device_fingerprint=$1)`, fingerprint)
	if err != nil {
		return false, fmt.Errorf("fingerprint exists: %w", err)
	}
	return exists, nil
}

// FindByFingerprint fetches the user's device with the given fingerprint.
func (r *DeviceRepo) FindByFingerprint(ctx context.Context, userID, fingerprint string) (models.Device, error) {
	var device models.Device
	err := r.db.GetContext(ctx, &device, `SELECT `+deviceColumns+` FROM user_devices
        WHERE user_id=$1 AND device_fingerprint=$2`, userID, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Device{}, ErrDeviceNotFound
	}
	if err != nil {
		return models.Device{}, fmt.Errorf("find device: %w", err)
	}
	return device, nil
}

func (r *DeviceRepo) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE user_devices SET last_active=$2 WHERE id=$1`, deviceID, at); err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

// Delete removes a device owned by userID.
func (r *DeviceRepo) Delete(ctx context.Context, userID, deviceID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_devices WHERE id=$1 AND user_id=$2`, deviceID, userID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
