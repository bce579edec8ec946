package models

import "time"

// MessageType is the kind of payload a message carries.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Message is a stored chat message.
type Message struct {
	ID                      string      `db:"id" json:"id"`
	Seq                     int64       `db:"seq" json:"-"`
	RoomID                  string      `db:"room_id" json:"room"`
	SenderID                *string     `db:"sender_id" json:"sender_id"`
	Type                    MessageType `db:"message_type" json:"message_type"`
	Content                 string      `db:"content" json:"content"`
	EncryptedContent        *string     `db:"encrypted_content" json:"encrypted_content"`
	EncryptedSessionKey     *string     `db:"encrypted_session_key" json:"encrypted_session_key"`
	SelfEncryptedSessionKey *string     `db:"self_encrypted_session_key" json:"self_encrypted_session_key"`
	AssetID                 *string     `db:"asset_id" json:"asset_id"`
	ReplyToID               *string     `db:"reply_to_id" json:"reply_to_id"`
	IsRead                  bool        `db:"is_read" json:"is_read"`
	CreatedAt               time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time   `db:"updated_at" json:"updated_at"`
}

// ReplySummary describes the message a reply points to.
type ReplySummary struct {
	ID          string       `json:"id"`
	Sender      *UserSummary `json:"sender"`
	Content     string       `json:"content"`
	MessageType MessageType  `json:"message_type"`
}

// MessageView is the serialized message sent to clients.
type MessageView struct {
	ID                      string        `json:"id"`
	Room                    string        `json:"room"`
	Sender                  *UserSummary  `json:"sender"`
	MessageType             MessageType   `json:"message_type"`
	Content                 string        `json:"content"`
	EncryptedContent        *string       `json:"encrypted_content"`
	EncryptedSessionKey     *string       `json:"encrypted_session_key"`
	SelfEncryptedSessionKey *string       `json:"self_encrypted_session_key"`
	Asset                   *Asset        `json:"asset"`
	ReplyTo                 *ReplySummary `json:"reply_to"`
	IsRead                  bool          `json:"is_read"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// MessagePage is one page of a room's history.
type MessagePage struct {
	Results  []MessageView `json:"results"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
	HasNext  bool          `json:"has_next"`
}
