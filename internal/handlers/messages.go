package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/apperr"
	"messenger-core/internal/envelope"
	"messenger-core/internal/services"
)

// MessageHandler serves room history and message mutations.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type messageBody struct {
	MessageType             string  `json:"message_type"`
	Content                 *string `json:"content"`
	EncryptedContent        *string `json:"encrypted_content"`
	EncryptedSessionKey     *string `json:"encrypted_session_key"`
	SelfEncryptedSessionKey *string `json:"self_encrypted_session_key"`
	AssetID                 *string `json:"asset_id"`
	ReplyToID               *string `json:"reply_to_id"`
}

func (b messageBody) payload() envelope.Payload {
	return envelope.Payload{
		MessageType:             b.MessageType,
		Content:                 b.Content,
		EncryptedContent:        b.EncryptedContent,
		EncryptedSessionKey:     b.EncryptedSessionKey,
		SelfEncryptedSessionKey: b.SelfEncryptedSessionKey,
	}
}

// ListMessages returns one page of history in chronological order.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		respondError(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", services.DefaultPageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.messages.List(c.Request.Context(), c.Param("room_id"), userIDFromContext(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PostMessage stores a message and fans it out to the room.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req messageBody
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), c.Param("room_id"), userIDFromContext(c), services.SendInput{
		Payload:   req.payload(),
		ReplyToID: req.ReplyToID,
		AssetID:   req.AssetID,
		Source:    "rest",
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// EditMessage replaces the content of the caller's own text message.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req messageBody
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), c.Param("room_id"), c.Param("message_id"), userIDFromContext(c), req.payload())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes the caller's own message for everyone.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	if err := h.messages.Delete(c.Request.Context(), c.Param("room_id"), c.Param("message_id"), userIDFromContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

// MarkRead records read receipts and bumps the caller's last-read marker.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if !bindJSON(c, &req) {
		return
	}

	count, err := h.messages.MarkRead(c.Request.Context(), c.Param("room_id"), userIDFromContext(c), req.MessageIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "messages marked as read", "read_count": count})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(key, key+" must be an integer")
	}
	return v, nil
}
