package ws

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/apperr"
	"messenger-core/internal/bus"
	"messenger-core/internal/envelope"
	"messenger-core/internal/models"
	"messenger-core/internal/services"
)

// Presence statuses carried in user_status frames.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// HandleChat joins an authenticated member to the room topic.
func (g *Gateway) HandleChat(c *gin.Context) {
	roomID := c.Param("room_id")
	authorize := func(ctx context.Context, userID string) error {
		if !g.Members.IsMember(ctx, roomID, userID) {
			return ErrNotMember
		}
		return nil
	}
	cl, ctx, err := g.handshake(c.Writer, c.Request, KindChat, roomID, authorize)
	if err != nil {
		return
	}

	topic := bus.RoomTopic(roomID)
	g.Hub.Subscribe(topic, cl)
	g.presence(ctx, topic, cl, StatusOnline)

	g.serve(ctx, cl, KindChat, roomID,
		func(raw []byte) { g.handleChatFrame(ctx, cl, roomID, raw) },
		func() {
			if !cl.evicted.Load() {
				g.presence(ctx, topic, cl, StatusOffline)
			}
		},
	)
}

func (g *Gateway) presence(ctx context.Context, topic bus.Topic, cl *client, status string) {
	frame := models.ServerFrame{Type: models.FrameUserStatus, UserID: cl.info.UserID, Status: status}
	if err := g.Hub.Publish(ctx, topic, frame, bus.Except(cl.ID())); err != nil {
		cl.log.WithError(err).Warn("presence publish failed")
	}
}

func (g *Gateway) handleChatFrame(ctx context.Context, cl *client, roomID string, raw []byte) {
	var in models.ClientFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		cl.sendFrame(models.ErrorFrame("invalid json"))
		return
	}

	switch in.Type {
	case models.FrameChatMessage:
		g.chatMessage(ctx, cl, roomID, in)
	case models.FrameTyping:
		user := cl.user
		typing := in.IsTyping
		frame := models.ServerFrame{Type: models.FrameTyping, User: &user, IsTyping: &typing}
		if err := g.Hub.Publish(ctx, bus.RoomTopic(roomID), frame, bus.Except(cl.ID())); err != nil {
			cl.log.WithError(err).Warn("typing publish failed")
		}
	case models.FrameReadReceipt:
		if len(in.MessageIDs) == 0 {
			return
		}
		err := g.Pool.Do(ctx, func(ctx context.Context) error {
			_, err := g.Messages.MarkRead(ctx, roomID, cl.info.UserID, in.MessageIDs)
			return err
		})
		if err != nil {
			cl.log.WithError(err).Warn("read receipt failed")
			cl.sendFrame(models.ErrorFrame(frameError(err, "failed to mark messages as read")))
		}
	default:
		cl.sendFrame(models.ErrorFrame("unknown message type"))
	}
}

func (g *Gateway) chatMessage(ctx context.Context, cl *client, roomID string, in models.ClientFrame) {
	input := services.SendInput{
		Payload: envelope.Payload{
			MessageType:             in.MessageType,
			Content:                 in.Content,
			EncryptedContent:        in.EncryptedContent,
			EncryptedSessionKey:     in.EncryptedSessionKey,
			SelfEncryptedSessionKey: in.SelfEncryptedSessionKey,
		},
		ReplyToID: in.ReplyTo,
		AssetID:   in.AssetID,
		Source:    "ws",
	}
	err := g.Pool.Do(ctx, func(ctx context.Context) error {
		_, err := g.Messages.Send(ctx, roomID, cl.info.UserID, input)
		return err
	})
	if err != nil {
		cl.log.WithError(err).Warn("message rejected")
		cl.sendFrame(models.ErrorFrame(frameError(err, "failed to create message")))
	}
}

// frameError keeps client mistakes readable and hides everything else behind fallback.
func frameError(err error, fallback string) string {
	if apperr.KindOf(err) == apperr.KindInternal {
		return fallback
	}
	if msg, ok := apperr.Body(err)["error"].(string); ok {
		return msg
	}
	return fallback
}
