package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-core/internal/logging"
	"messenger-core/internal/telemetry"
)

type capturePublisher struct {
	events []telemetry.AuditEnvelope
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event any, _ map[string]string) error {
	p.events = append(p.events, event.(telemetry.AuditEnvelope))
	return nil
}

func debugRouter(audit *telemetry.AuditEmitter, enabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewDebugHandler(audit).Register(r, func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	}, enabled)
	return r
}

func TestDebugRoutesDisabled(t *testing.T) {
	r := debugRouter(nil, false)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugAuditTestEmits(t *testing.T) {
	pub := &capturePublisher{}
	r := debugRouter(telemetry.NewAuditEmitter(pub, "audit.chat", "svc", "test", logging.Discard()), true)

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Request-ID", "req-9")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-9", decode(t, rec)["request_id"])
	require.Len(t, pub.events, 1)
	assert.Equal(t, "u1", pub.events[0].UserID)
	assert.Equal(t, "debug.audit_test", pub.events[0].Payload.Action)
}

func TestDebugAuditTestWithoutEmitter(t *testing.T) {
	r := debugRouter(nil, true)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "INTERNAL", decode(t, rec)["code"])
}
