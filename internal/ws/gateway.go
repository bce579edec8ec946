// Package ws is the live-connection gateway: it authenticates websocket
// clients, joins them to bus topics and relays their inbound frames.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"messenger-core/internal/auth"
	"messenger-core/internal/bus"
	"messenger-core/internal/config"
	"messenger-core/internal/models"
	"messenger-core/internal/observability"
	"messenger-core/internal/repositories"
	"messenger-core/internal/services"
	"messenger-core/internal/workerpool"
)

// Application close codes sent before the socket is shut.
const (
	CloseNoToken      = 4001
	CloseUserNotFound = 4002
	CloseInvalidToken = 4003
	CloseNotMember    = 4004
)

var (
	ErrUnknownUser = errors.New("user not found")
	ErrNotMember   = errors.New("not a member of this room")
)

// CloseCodeFor maps a handshake failure onto the close code the client sees.
func CloseCodeFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return CloseNoToken
	case errors.Is(err, ErrUnknownUser):
		return CloseUserNotFound
	case errors.Is(err, auth.ErrInvalidToken):
		return CloseInvalidToken
	case errors.Is(err, ErrNotMember):
		return CloseNotMember
	default:
		return websocket.CloseInternalServerErr
	}
}

// TokenVerifier returns the user id carried by a bearer token.
type TokenVerifier interface {
	Parse(raw string) (string, error)
}

// UserLookup resolves users from the directory.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// MembershipChecker answers room membership, failing closed.
type MembershipChecker interface {
	IsMember(ctx context.Context, roomID, userID string) bool
}

// MessageSender stores messages and read receipts coming from live connections.
type MessageSender interface {
	Send(ctx context.Context, roomID, senderID string, in services.SendInput, opts ...bus.PublishOption) (models.MessageView, error)
	MarkRead(ctx context.Context, roomID, readerID string, messageIDs []string, opts ...bus.PublishOption) (int, error)
}

// Hub is the topic registry connections subscribe to.
type Hub interface {
	Subscribe(topic bus.Topic, sub bus.Subscriber)
	UnsubscribeAll(sub bus.Subscriber)
	Publish(ctx context.Context, topic bus.Topic, frame any, opts ...bus.PublishOption) error
}

// Deps wires a Gateway.
type Deps struct {
	Tokens   TokenVerifier
	Users    UserLookup
	Members  MembershipChecker
	Messages MessageSender
	Hub      Hub
	Pool     *workerpool.Pool
	Config   config.WebSocket
	Log      logrus.FieldLogger
}

// Gateway serves /ws/chat/:room_id and /ws/notifications.
type Gateway struct {
	Deps
	upgrader websocket.Upgrader
}

// NewGateway builds a Gateway from d.
func NewGateway(d Deps) *Gateway {
	return &Gateway{
		Deps: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// handshake upgrades first so that authentication failures can be reported
// with a close code. On failure the socket is already closed.
func (g *Gateway) handshake(w http.ResponseWriter, r *http.Request, kind, resourceID string, authorize func(context.Context, string) error) (*client, context.Context, error) {
	ctx, span := otel.Tracer("messenger-core/ws").Start(r.Context(), "ws.handshake")
	defer span.End()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("upgrade: %w", err)
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(r),
		IP:          observability.IPFromRequest(r),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	connCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
	connCtx = observability.WithRequestID(connCtx, info.RequestID)

	user, err := g.authenticate(ctx, r.URL.Query().Get("token"))
	if err == nil && authorize != nil {
		err = authorize(ctx, user.ID)
	}
	if err != nil {
		info.UserID = user.ID
		g.reject(connCtx, conn, kind, resourceID, info, err)
		return nil, nil, err
	}

	info.UserID = user.ID
	return newClient(conn, info, user.Summary(), g.Config, g.Log), connCtx, nil
}

func (g *Gateway) authenticate(ctx context.Context, token string) (models.User, error) {
	userID, err := g.Tokens.Parse(token)
	if err != nil {
		return models.User{}, err
	}
	user, err := g.Users.GetUser(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, ErrUnknownUser
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (g *Gateway) reject(ctx context.Context, conn *websocket.Conn, kind, resourceID string, info ConnInfo, err error) {
	code := CloseCodeFor(err)
	reason := err.Error()
	if code == websocket.CloseInternalServerErr {
		reason = "internal error"
	}
	g.Log.WithFields(info.fields()).WithError(err).WithField("close_code", code).Info("ws handshake rejected")
	publishConnEvent(ctx, kind, resourceID, "ws_reject", info, reason)

	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(g.Config.WriteTimeout))
	_ = conn.Close()
}

// serve runs the pumps for an authenticated client until it disconnects.
func (g *Gateway) serve(ctx context.Context, cl *client, kind, resourceID string, handle func([]byte), onClose func()) {
	untrack := observability.TrackWSConnection(kind)
	publishConnEvent(ctx, kind, resourceID, "ws_connect", cl.info, "")
	cl.log.WithField("kind", kind).Info("ws connected")

	go cl.writePump()
	go func() {
		err := cl.readPump(handle)

		reason := ""
		if err != nil {
			reason = err.Error()
		}
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			publishConnEvent(ctx, kind, resourceID, "ws_error", cl.info, reason)
		}

		g.Hub.UnsubscribeAll(cl)
		cl.close(websocket.CloseNormalClosure, "")
		if onClose != nil {
			onClose()
		}
		untrack()
		publishConnEvent(ctx, kind, resourceID, "ws_disconnect", cl.info, reason)
		cl.log.WithField("kind", kind).Info("ws disconnected")
	}()
}
