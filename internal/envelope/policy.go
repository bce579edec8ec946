// Package envelope enforces which message fields a room type accepts.
//
// Direct rooms carry ciphertext only; plaintext content is always stored empty.
// Group rooms carry plaintext only; any encrypted field is rejected, even when
// it is present but empty.
package envelope

import (
	"messenger-core/internal/apperr"
	"messenger-core/internal/models"
)

// Payload is a message as submitted by a client, before validation.
type Payload struct {
	MessageType             string
	Content                 *string
	EncryptedContent        *string
	EncryptedSessionKey     *string
	SelfEncryptedSessionKey *string
}

// Validated is the normalized envelope ready to be stored.
type Validated struct {
	Type                    models.MessageType
	Content                 string
	EncryptedContent        *string
	EncryptedSessionKey     *string
	SelfEncryptedSessionKey *string
}

// Validate checks a new message against the rules of its room type.
func Validate(roomType models.RoomType, p Payload) (Validated, error) {
	msgType, err := parseType(p.MessageType)
	if err != nil {
		return Validated{}, err
	}
	return apply(roomType, msgType, p)
}

// ValidateEdit checks an edit of msg by editorID. Only the sender may edit and
// only text messages are editable.
func ValidateEdit(roomType models.RoomType, msg models.Message, editorID string, p Payload) (Validated, error) {
	if msg.SenderID == nil || *msg.SenderID != editorID {
		return Validated{}, apperr.Forbidden("only the sender can edit this message")
	}
	if msg.Type != models.MessageText {
		return Validated{}, apperr.Validation("message_type", "only text messages can be edited")
	}
	return apply(roomType, models.MessageText, p)
}

func parseType(raw string) (models.MessageType, error) {
	switch models.MessageType(raw) {
	case "":
		return models.MessageText, nil
	case models.MessageText, models.MessageImage, models.MessageFile:
		return models.MessageType(raw), nil
	case models.MessageSystem:
		return "", apperr.Validation("message_type", "system messages cannot be sent by clients")
	default:
		return "", apperr.Validation("message_type", "invalid message type")
	}
}

func apply(roomType models.RoomType, msgType models.MessageType, p Payload) (Validated, error) {
	switch roomType {
	case models.RoomDirect:
		return direct(msgType, p)
	case models.RoomGroup:
		return group(msgType, p)
	default:
		return Validated{}, apperr.Validation("room_type", "invalid room type")
	}
}

func direct(msgType models.MessageType, p Payload) (Validated, error) {
	if msgType == models.MessageText && (p.EncryptedContent == nil || *p.EncryptedContent == "") {
		return Validated{}, apperr.Validation("encrypted_content", "encrypted_content is required for direct messages")
	}
	return Validated{
		Type:                    msgType,
		Content:                 "",
		EncryptedContent:        p.EncryptedContent,
		EncryptedSessionKey:     p.EncryptedSessionKey,
		SelfEncryptedSessionKey: p.SelfEncryptedSessionKey,
	}, nil
}

func group(msgType models.MessageType, p Payload) (Validated, error) {
	switch {
	case p.EncryptedContent != nil:
		return Validated{}, apperr.Validation("encrypted_content", "group messages must not be encrypted")
	case p.EncryptedSessionKey != nil:
		return Validated{}, apperr.Validation("encrypted_session_key", "group messages must not carry session keys")
	case p.SelfEncryptedSessionKey != nil:
		return Validated{}, apperr.Validation("self_encrypted_session_key", "group messages must not carry session keys")
	}

	content := ""
	if p.Content != nil {
		content = *p.Content
	}
	if msgType == models.MessageText && content == "" {
		return Validated{}, apperr.Validation("content", "content is required for group messages")
	}
	return Validated{Type: msgType, Content: content}, nil
}
