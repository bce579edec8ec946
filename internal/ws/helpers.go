package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"messenger-core/internal/observability"
)

// Connection kinds, used as metric labels and in connection events.
const (
	KindChat          = "chat"
	KindNotifications = "notifications"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

func routingKeyFor(kind string) string {
	if kind == KindNotifications {
		return observability.RoutingWSNotifications
	}
	return observability.RoutingWSRooms
}

// publishConnEvent emits ws_connect, ws_disconnect, ws_error and ws_reject envelopes.
func publishConnEvent(ctx context.Context, kind, resourceID, event string, info ConnInfo, reason string) {
	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	observability.IncWSEvent(kind, event)
	_ = observability.PublishEvent(ctx, routingKeyFor(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        kind,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
