package services

import (
	"time"

	"github.com/google/uuid"

	"messenger-core/internal/models"
)

// Notification previews. Direct-room text is ciphertext, so only a placeholder is shown.
const (
	PreviewEncrypted = "새로운 메시지"
	PreviewImage     = "📷 사진"
	PreviewFile      = "📎 파일"
)

// Preview returns the notification text for msg posted in a room of roomType.
func Preview(roomType models.RoomType, msg models.Message) string {
	switch msg.Type {
	case models.MessageImage:
		return PreviewImage
	case models.MessageFile:
		return PreviewFile
	}
	if roomType == models.RoomDirect {
		return PreviewEncrypted
	}
	return msg.Content
}

func newMessageNotification(now time.Time, room models.Room, msg models.Message, sender *models.UserSummary) models.ServerFrame {
	name := ""
	switch {
	case room.Name != nil:
		name = *room.Name
	case sender != nil:
		name = sender.Name
	}
	return notificationFrame(now, models.NotificationNewMessage, models.NewMessageData{
		RoomID:      room.ID,
		RoomName:    name,
		MessageID:   msg.ID,
		MessageType: msg.Type,
		Sender:      sender,
		Content:     Preview(room.Type, msg),
	})
}

func notificationFrame(now time.Time, kind string, data any) models.ServerFrame {
	return models.ServerFrame{
		Type: models.FrameNotification,
		Notification: &models.Notification{
			ID:        uuid.NewString(),
			Type:      kind,
			CreatedAt: now,
			Data:      data,
		},
	}
}
