package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/apperr"
	"messenger-core/internal/telemetry"
)

// DebugHandler serves operator-only diagnostics. It is mounted only when
// DEBUG_ROUTES is on.
type DebugHandler struct {
	audit *telemetry.AuditEmitter
}

// NewDebugHandler builds a DebugHandler. A nil emitter makes AuditTest answer 503.
func NewDebugHandler(audit *telemetry.AuditEmitter) *DebugHandler {
	return &DebugHandler{audit: audit}
}

// Register mounts the diagnostics behind authn when enabled.
func (h *DebugHandler) Register(router gin.IRouter, authn gin.HandlerFunc, enabled bool) {
	if !enabled {
		return
	}
	debug := router.Group("/debug", authn)
	debug.GET("/audit-test", h.AuditTest)
}

// AuditTest pushes a synthetic record through the audit pipeline so operators
// can watch it land on the audit exchange.
func (h *DebugHandler) AuditTest(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, apperr.Body(apperr.Internal("audit emitter not configured", nil)))
		return
	}

	requestID := requestIDFromContext(c)
	h.audit.Emit(c.Request.Context(), "INFO", "debug.audit_test", "audit test", requestID, userIDFromContext(c), map[string]string{
		"client_ip": c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestID})
}
