package models

import "time"

// Device is a registered client device holding an encrypted copy of the user's private key.
type Device struct {
	ID                  string    `db:"id" json:"id"`
	UserID              string    `db:"user_id" json:"user_id"`
	DeviceName          string    `db:"device_name" json:"device_name"`
	DeviceFingerprint   string    `db:"device_fingerprint" json:"device_fingerprint"`
	EncryptedPrivateKey string    `db:"encrypted_private_key" json:"-"`
	IsPrimary           bool      `db:"is_primary" json:"is_primary"`
	LastActive          time.Time `db:"last_active" json:"last_active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// PublicDevice is what other users may see about a device.
type PublicDevice struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name"`
	IsPrimary  bool      `json:"is_primary"`
	LastActive time.Time `json:"last_active"`
}

// Public strips the device down to its public fields.
func (d Device) Public() PublicDevice {
	return PublicDevice{ID: d.ID, DeviceName: d.DeviceName, IsPrimary: d.IsPrimary, LastActive: d.LastActive}
}

// PrivateKeyBundle is returned to the owner when key sync is allowed.
type PrivateKeyBundle struct {
	DeviceID            string    `json:"device_id"`
	DeviceName          string    `json:"device_name"`
	EncryptedPrivateKey string    `json:"encrypted_private_key"`
	IsPrimary           bool      `json:"is_primary"`
	LastActive          time.Time `json:"last_active"`
}
