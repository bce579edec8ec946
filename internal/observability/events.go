package observability

import "context"

// EventEnvelope wraps every domain and connection event published to AMQP.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// Routing keys for published events.
const (
	RoutingWSRooms         = "ws_events.rooms"
	RoutingWSNotifications = "ws_events.notifications"
	RoutingChatEvents      = "chat_events.messages"
	RoutingRoomEvents      = "chat_events.rooms"
	RoutingInviteEvents    = "chat_events.invitations"
	RoutingDeviceEvents    = "chat_events.devices"
)

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// EventPublisher is satisfied by rabbitmq.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher EventPublisher

func SetPublisher(publisher EventPublisher) {
	defaultPublisher = publisher
}

// PublishEvent sends an envelope through the process-wide publisher, if any.
func PublishEvent(ctx context.Context, routingKey string, envelope EventEnvelope, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}
	return defaultPublisher.Publish(ctx, routingKey, envelope, headers)
}
