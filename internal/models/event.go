package models

import "time"

// Frame types exchanged over live connections.
const (
	FrameChatMessage   = "chat_message"
	FrameTyping        = "typing"
	FrameReadReceipt   = "read_receipt"
	FrameMessageUpdate = "message_update"
	FrameMessageDelete = "message_delete"
	FrameUserStatus    = "user_status"
	FrameNotification  = "notification"
	FrameError         = "error"
)

// ClientFrame is any JSON frame a client may send on a room connection.
type ClientFrame struct {
	Type                    string   `json:"type"`
	MessageType             string   `json:"message_type"`
	Content                 *string  `json:"content"`
	EncryptedContent        *string  `json:"encrypted_content"`
	EncryptedSessionKey     *string  `json:"encrypted_session_key"`
	SelfEncryptedSessionKey *string  `json:"self_encrypted_session_key"`
	AssetID                 *string  `json:"asset_id"`
	ReplyTo                 *string  `json:"reply_to"`
	IsTyping                bool     `json:"is_typing"`
	MessageIDs              []string `json:"message_ids"`
}

// ServerFrame is a frame pushed to clients. Message holds either a MessageView
// (chat_message, message_update) or a plain string (error).
type ServerFrame struct {
	Type         string        `json:"type"`
	Message      any           `json:"message,omitempty"`
	MessageID    string        `json:"message_id,omitempty"`
	User         *UserSummary  `json:"user,omitempty"`
	IsTyping     *bool         `json:"is_typing,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	MessageIDs   []string      `json:"message_ids,omitempty"`
	Status       string        `json:"status,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// ErrorFrame builds an error frame carrying msg.
func ErrorFrame(msg string) ServerFrame {
	return ServerFrame{Type: FrameError, Message: msg}
}

// Notification kinds delivered on user topics.
const (
	NotificationNewMessage         = "new_message"
	NotificationDirectInvitation   = "direct_invitation"
	NotificationGroupInvitation    = "group_invitation"
	NotificationInvitationAccepted = "invitation_accepted"
)

// Notification is the payload of a notification frame.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

// NewMessageData describes a message for members not looking at the room.
type NewMessageData struct {
	RoomID      string       `json:"room_id"`
	RoomName    string       `json:"room_name"`
	MessageID   string       `json:"message_id"`
	MessageType MessageType  `json:"message_type"`
	Sender      *UserSummary `json:"sender"`
	Content     string       `json:"content"`
}

// InvitationData describes an invitation event for the affected user.
type InvitationData struct {
	InvitationID string           `json:"invitation_id"`
	Kind         string           `json:"kind"`
	RoomID       *string          `json:"room_id"`
	RoomName     *string          `json:"room_name,omitempty"`
	Inviter      *UserSummary     `json:"inviter,omitempty"`
	Status       InvitationStatus `json:"status"`
}
