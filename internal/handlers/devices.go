package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/services"
)

// DeviceHandler serves device registration and private-key retrieval.
type DeviceHandler struct {
	devices *services.DeviceCustodian
}

// NewDeviceHandler builds a DeviceHandler.
func NewDeviceHandler(devices *services.DeviceCustodian) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// ListDevices returns the caller's devices.
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.devices.List(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// RegisterDevice stores a new device and its encrypted private key.
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req struct {
		DeviceName          string `json:"device_name"`
		DeviceFingerprint   string `json:"device_fingerprint"`
		EncryptedPrivateKey string `json:"encrypted_private_key"`
	}
	if !bindJSON(c, &req) {
		return
	}

	device, err := h.devices.Register(c.Request.Context(), userIDFromContext(c), services.RegisterInput{
		DeviceName:          req.DeviceName,
		DeviceFingerprint:   req.DeviceFingerprint,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, device)
}

// DeleteDevice removes one of the caller's devices.
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	if err := h.devices.Delete(c.Request.Context(), userIDFromContext(c), c.Param("device_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PrivateKey hands out a device's encrypted private key if the device is fresh.
func (h *DeviceHandler) PrivateKey(c *gin.Context) {
	bundle, err := h.devices.GetPrivateKeyBundle(c.Request.Context(), userIDFromContext(c), c.Param("device_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bundle)
}

// Touch refreshes last activity for the device the caller just logged in from.
func (h *DeviceHandler) Touch(c *gin.Context) {
	var req struct {
		DeviceFingerprint string `json:"device_fingerprint"`
	}
	if !bindJSON(c, &req) {
		return
	}

	registered, err := h.devices.TouchOnLogin(c.Request.Context(), userIDFromContext(c), req.DeviceFingerprint)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": registered})
}

// UserDevices lists another user's devices without key material.
func (h *DeviceHandler) UserDevices(c *gin.Context) {
	devices, err := h.devices.ListPublic(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}
