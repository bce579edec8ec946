package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"messenger-core/internal/apperr"
	"messenger-core/internal/models"
	"messenger-core/internal/observability"
	"messenger-core/internal/repositories"
)

// FreshnessWindow is how recently a non-primary device must have been active
// to receive its encrypted private key.
const FreshnessWindow = 24 * time.Hour

// Auditor records security-relevant actions.
type Auditor interface {
	Emit(ctx context.Context, level, action, text, requestID, userID string, attrs map[string]string)
}

// RegisterInput is a device registration request.
type RegisterInput struct {
	DeviceName          string
	DeviceFingerprint   string
	EncryptedPrivateKey string
}

// DeviceCustodian registers devices and guards the encrypted private-key blobs.
type DeviceCustodian struct {
	store repositories.Store
	audit Auditor
	log   logrus.FieldLogger
	clock clock
}

// NewDeviceCustodian builds a DeviceCustodian. audit may be nil.
func NewDeviceCustodian(store repositories.Store, audit Auditor, log logrus.FieldLogger) *DeviceCustodian {
	return &DeviceCustodian{store: store, audit: audit, log: log}
}

// WithClock overrides the time source.
func (c *DeviceCustodian) WithClock(now func() time.Time) *DeviceCustodian {
	c.clock = now
	return c
}

// Register stores a new device for userID. The user's first device becomes primary.
func (c *DeviceCustodian) Register(ctx context.Context, userID string, in RegisterInput) (models.Device, error) {
	in.DeviceName = strings.TrimSpace(in.DeviceName)
	in.DeviceFingerprint = strings.TrimSpace(in.DeviceFingerprint)
	switch {
	case in.DeviceName == "":
		return models.Device{}, apperr.Validation("device_name", "device_name is required")
	case in.DeviceFingerprint == "":
		return models.Device{}, apperr.Validation("device_fingerprint", "device_fingerprint is required")
	case in.EncryptedPrivateKey == "":
		return models.Device{}, apperr.Validation("encrypted_private_key", "encrypted_private_key is required")
	}

	var device models.Device
	err := c.store.WithinTx(ctx, func(r repositories.Repos) error {
		if err := r.Locks.LockUser(ctx, userID); err != nil {
			return err
		}
		taken, err := r.Devices.FingerprintExists(ctx, in.DeviceFingerprint)
		if err != nil {
			return err
		}
		if taken {
			return repositories.ErrDuplicateFingerprint
		}
		count, err := r.Devices.CountForUser(ctx, userID)
		if err != nil {
			return err
		}
		device, err = r.Devices.Create(ctx, models.Device{
			UserID:              userID,
			DeviceName:          in.DeviceName,
			DeviceFingerprint:   in.DeviceFingerprint,
			EncryptedPrivateKey: in.EncryptedPrivateKey,
			IsPrimary:           count == 0,
			LastActive:          c.clock.now(),
		})
		return err
	})
	if err != nil {
		return models.Device{}, translate(err)
	}

	c.emit(ctx, "info", "device_registered", "device registered", userID, map[string]string{
		"device_id":  device.ID,
		"is_primary": boolString(device.IsPrimary),
	})
	emitEvent(ctx, c.log, observability.RoutingDeviceEvents, "device_registered", map[string]any{"device_id": device.ID, "user_id": userID, "is_primary": device.IsPrimary})
	return device, nil
}

// GetPrivateKeyBundle returns the encrypted key blob of one of the requester's
// devices. Primary devices always qualify; others only within FreshnessWindow.
func (c *DeviceCustodian) GetPrivateKeyBundle(ctx context.Context, requesterID, deviceID string) (models.PrivateKeyBundle, error) {
	device, err := c.store.Repos().Devices.Get(ctx, deviceID)
	if errors.Is(err, repositories.ErrDeviceNotFound) || (err == nil && device.UserID != requesterID) {
		return models.PrivateKeyBundle{}, apperr.NotFound("device not found")
	}
	if err != nil {
		return models.PrivateKeyBundle{}, translate(err)
	}

	if !device.IsPrimary && c.clock.now().Sub(device.LastActive) > FreshnessWindow {
		c.emit(ctx, "warn", "private_key_denied", "stale device requested private key", requesterID, map[string]string{"device_id": deviceID})
		return models.PrivateKeyBundle{}, apperr.Forbidden("device inactive for more than 24 hours; sign in again on this device to sync keys")
	}

	c.emit(ctx, "info", "private_key_issued", "private key bundle issued", requesterID, map[string]string{"device_id": deviceID})
	return models.PrivateKeyBundle{
		DeviceID:            device.ID,
		DeviceName:          device.DeviceName,
		EncryptedPrivateKey: device.EncryptedPrivateKey,
		IsPrimary:           device.IsPrimary,
		LastActive:          device.LastActive,
	}, nil
}

// TouchOnLogin refreshes last_active of the user's device with fingerprint.
// An unknown fingerprint is reported as false without error.
func (c *DeviceCustodian) TouchOnLogin(ctx context.Context, userID, fingerprint string) (bool, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return false, apperr.Validation("device_fingerprint", "device_fingerprint is required")
	}
	repos := c.store.Repos()
	device, err := repos.Devices.FindByFingerprint(ctx, userID, fingerprint)
	if errors.Is(err, repositories.ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, translate(err)
	}
	if err := repos.Devices.TouchLastActive(ctx, device.ID, c.clock.now()); err != nil {
		return false, translate(err)
	}
	return true, nil
}

// List returns the user's own devices.
func (c *DeviceCustodian) List(ctx context.Context, userID string) ([]models.Device, error) {
	devices, err := c.store.Repos().Devices.ListForUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	if devices == nil {
		devices = []models.Device{}
	}
	return devices, nil
}

// ListPublic returns the public view of another user's devices.
func (c *DeviceCustodian) ListPublic(ctx context.Context, targetID string) ([]models.PublicDevice, error) {
	devices, err := c.store.Repos().Devices.ListForUser(ctx, targetID)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]models.PublicDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Public())
	}
	return out, nil
}

// Delete removes one of the user's devices. No other device is promoted.
func (c *DeviceCustodian) Delete(ctx context.Context, userID, deviceID string) error {
	if err := c.store.Repos().Devices.Delete(ctx, userID, deviceID); err != nil {
		return translate(err)
	}
	c.emit(ctx, "info", "device_deleted", "device deleted", userID, map[string]string{"device_id": deviceID})
	emitEvent(ctx, c.log, observability.RoutingDeviceEvents, "device_deleted", map[string]any{"device_id": deviceID, "user_id": userID})
	return nil
}

func (c *DeviceCustodian) emit(ctx context.Context, level, action, text, userID string, attrs map[string]string) {
	if c.audit == nil {
		return
	}
	c.audit.Emit(ctx, level, action, text, observability.RequestIDFrom(ctx), userID, attrs)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
