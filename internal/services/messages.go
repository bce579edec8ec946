package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"messenger-core/internal/apperr"
	"messenger-core/internal/bus"
	"messenger-core/internal/envelope"
	"messenger-core/internal/models"
	"messenger-core/internal/observability"
	"messenger-core/internal/repositories"
)

// Paging limits for message history.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// MessageService stores messages and fans them out.
type MessageService struct {
	store repositories.Store
	pub   Publisher
	log   logrus.FieldLogger
	clock clock
}

// NewMessageService builds a MessageService publishing on pub.
func NewMessageService(store repositories.Store, pub Publisher, log logrus.FieldLogger) *MessageService {
	return &MessageService{store: store, pub: pub, log: log}
}

// SendInput is a message as submitted over REST or a live connection.
type SendInput struct {
	Payload   envelope.Payload
	ReplyToID *string
	AssetID   *string
	// Source labels metrics: "ws" or "rest".
	Source string
}

// Send validates, stores and publishes a message. The room frame goes to
// everyone viewing the room; every other member also gets a notification.
func (s *MessageService) Send(ctx context.Context, roomID, senderID string, in SendInput, opts ...bus.PublishOption) (models.MessageView, error) {
	repos := s.store.Repos()
	room, err := repos.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.MessageView{}, translate(err)
	}
	if err := requireMember(ctx, repos, s.log, roomID, senderID); err != nil {
		return models.MessageView{}, err
	}

	valid, err := envelope.Validate(room.Type, in.Payload)
	if err != nil {
		return models.MessageView{}, err
	}

	msg := models.Message{
		RoomID:                  roomID,
		SenderID:                &senderID,
		Type:                    valid.Type,
		Content:                 valid.Content,
		EncryptedContent:        valid.EncryptedContent,
		EncryptedSessionKey:     valid.EncryptedSessionKey,
		SelfEncryptedSessionKey: valid.SelfEncryptedSessionKey,
	}
	if in.ReplyToID != nil && *in.ReplyToID != "" {
		reply, err := repos.Messages.Get(ctx, *in.ReplyToID)
		if errors.Is(err, repositories.ErrMessageNotFound) || (err == nil && reply.RoomID != roomID) {
			return models.MessageView{}, apperr.Validation("reply_to_id", "message not found in this room")
		}
		if err != nil {
			return models.MessageView{}, translate(err)
		}
		msg.ReplyToID = &reply.ID
	}
	if in.AssetID != nil && *in.AssetID != "" {
		asset, err := repos.Directory.GetAsset(ctx, *in.AssetID)
		if errors.Is(err, repositories.ErrAssetNotFound) {
			return models.MessageView{}, apperr.Validation("asset_id", "asset not found")
		}
		if err != nil {
			return models.MessageView{}, translate(err)
		}
		msg.AssetID = &asset.ID
	}

	var stored models.Message
	err = s.store.WithinTx(ctx, func(r repositories.Repos) error {
		var err error
		if stored, err = r.Messages.Create(ctx, msg); err != nil {
			return err
		}
		return r.Rooms.TouchRoom(ctx, roomID, s.clock.now())
	})
	if err != nil {
		return models.MessageView{}, apperr.Internal("failed to create message", err)
	}
	observability.IncMessageStored(string(room.Type), in.Source)

	view, err := messageView(ctx, repos, stored)
	if err != nil {
		return models.MessageView{}, apperr.Internal("failed to create message", err)
	}

	publishFrame(ctx, s.pub, s.log, bus.RoomTopic(roomID), models.ServerFrame{Type: models.FrameChatMessage, Message: view}, opts...)
	s.notifyMembers(ctx, repos, room, stored, senderID, view.Sender)
	emitEvent(ctx, s.log, observability.RoutingChatEvents, "message_created", map[string]any{
		"room_id":      roomID,
		"room_type":    room.Type,
		"message_id":   stored.ID,
		"message_type": stored.Type,
		"sender_id":    senderID,
	})
	return view, nil
}

func (s *MessageService) notifyMembers(ctx context.Context, repos repositories.Repos, room models.Room, msg models.Message, senderID string, sender *models.UserSummary) {
	members, err := repos.Rooms.ListMembers(ctx, room.ID)
	if err != nil {
		s.log.WithError(err).WithField("room_id", room.ID).Warn("notification fan-out skipped")
		return
	}
	frame := newMessageNotification(s.clock.now(), room, msg, sender)
	for _, m := range members {
		if m.UserID == senderID {
			continue
		}
		publishFrame(ctx, s.pub, s.log, bus.UserTopic(m.UserID), frame)
	}
}

// List returns one page of history, oldest to newest within the page.
func (s *MessageService) List(ctx context.Context, roomID, viewerID string, page, pageSize int) (models.MessagePage, error) {
	if page < 1 {
		return models.MessagePage{}, apperr.Validation("page", "page must be a positive integer")
	}
	if pageSize < 1 {
		return models.MessagePage{}, apperr.Validation("page_size", "page_size must be a positive integer")
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	repos := s.store.Repos()
	if _, err := repos.Rooms.GetRoom(ctx, roomID); err != nil {
		return models.MessagePage{}, translate(err)
	}
	if err := requireMember(ctx, repos, s.log, roomID, viewerID); err != nil {
		return models.MessagePage{}, err
	}

	offset := (page - 1) * pageSize
	msgs, err := repos.Messages.List(ctx, roomID, pageSize, offset)
	if err != nil {
		return models.MessagePage{}, translate(err)
	}
	total, err := repos.Messages.Count(ctx, roomID)
	if err != nil {
		return models.MessagePage{}, translate(err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	views, err := messageViews(ctx, repos, msgs)
	if err != nil {
		return models.MessagePage{}, translate(err)
	}

	return models.MessagePage{
		Results:  views,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasNext:  offset+len(msgs) < total,
	}, nil
}

// Edit replaces the body of a text message written by editorID.
func (s *MessageService) Edit(ctx context.Context, roomID, messageID, editorID string, payload envelope.Payload) (models.MessageView, error) {
	repos := s.store.Repos()
	room, msg, err := s.loadInRoom(ctx, repos, roomID, messageID, editorID)
	if err != nil {
		return models.MessageView{}, err
	}
	valid, err := envelope.ValidateEdit(room.Type, msg, editorID, payload)
	if err != nil {
		return models.MessageView{}, err
	}

	msg.Content = valid.Content
	msg.EncryptedContent = valid.EncryptedContent
	msg.EncryptedSessionKey = valid.EncryptedSessionKey
	msg.SelfEncryptedSessionKey = valid.SelfEncryptedSessionKey
	updated, err := repos.Messages.UpdateContent(ctx, messageID, msg)
	if err != nil {
		return models.MessageView{}, translate(err)
	}
	view, err := messageView(ctx, repos, updated)
	if err != nil {
		return models.MessageView{}, translate(err)
	}

	publishFrame(ctx, s.pub, s.log, bus.RoomTopic(roomID), models.ServerFrame{Type: models.FrameMessageUpdate, Message: view})
	emitEvent(ctx, s.log, observability.RoutingChatEvents, "message_updated", map[string]any{"room_id": roomID, "message_id": messageID})
	return view, nil
}

// Delete hard-deletes a message written by userID.
func (s *MessageService) Delete(ctx context.Context, roomID, messageID, userID string) error {
	repos := s.store.Repos()
	_, msg, err := s.loadInRoom(ctx, repos, roomID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID == nil || *msg.SenderID != userID {
		return apperr.Forbidden("only the sender can delete this message")
	}
	if err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		return r.Messages.Delete(ctx, messageID)
	}); err != nil {
		return translate(err)
	}

	publishFrame(ctx, s.pub, s.log, bus.RoomTopic(roomID), models.ServerFrame{Type: models.FrameMessageDelete, MessageID: messageID})
	emitEvent(ctx, s.log, observability.RoutingChatEvents, "message_deleted", map[string]any{"room_id": roomID, "message_id": messageID})
	return nil
}

func (s *MessageService) loadInRoom(ctx context.Context, repos repositories.Repos, roomID, messageID, userID string) (models.Room, models.Message, error) {
	room, err := repos.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.Room{}, models.Message{}, translate(err)
	}
	if err := requireMember(ctx, repos, s.log, roomID, userID); err != nil {
		return models.Room{}, models.Message{}, err
	}
	msg, err := repos.Messages.Get(ctx, messageID)
	if err != nil {
		return models.Room{}, models.Message{}, translate(err)
	}
	if msg.RoomID != roomID {
		return models.Room{}, models.Message{}, apperr.NotFound("message not found")
	}
	return room, msg, nil
}

// MarkRead flags messages as read and always advances the reader's last_read_at.
func (s *MessageService) MarkRead(ctx context.Context, roomID, readerID string, messageIDs []string, opts ...bus.PublishOption) (int, error) {
	if len(messageIDs) == 0 {
		return 0, apperr.Validation("message_ids", "message_ids is required")
	}
	repos := s.store.Repos()
	if _, err := repos.Rooms.GetRoom(ctx, roomID); err != nil {
		return 0, translate(err)
	}
	if err := requireMember(ctx, repos, s.log, roomID, readerID); err != nil {
		return 0, err
	}

	var count int
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		var err error
		if count, err = r.Messages.MarkRead(ctx, roomID, readerID, messageIDs); err != nil {
			return err
		}
		return r.Rooms.SetLastRead(ctx, roomID, readerID)
	})
	if err != nil {
		return 0, translate(err)
	}

	publishFrame(ctx, s.pub, s.log, bus.RoomTopic(roomID), models.ServerFrame{
		Type:       models.FrameReadReceipt,
		UserID:     readerID,
		MessageIDs: messageIDs,
	}, opts...)
	return count, nil
}

// UnreadCount returns how many messages viewerID has not read in roomID.
func (s *MessageService) UnreadCount(ctx context.Context, roomID, viewerID string) (int, error) {
	repos := s.store.Repos()
	member, err := repos.Rooms.GetMember(ctx, roomID, viewerID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return 0, apperr.Forbidden("not a member of this room")
	}
	if err != nil {
		return 0, translate(err)
	}
	n, err := repos.Messages.UnreadCount(ctx, roomID, viewerID, member.LastReadAt)
	return n, translate(err)
}

// WithClock overrides the time source.
func (s *MessageService) WithClock(now func() time.Time) *MessageService {
	s.clock = now
	return s
}
