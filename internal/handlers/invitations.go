package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/services"
)

// InvitationHandler serves the invitation inbox and responses.
type InvitationHandler struct {
	invites *services.InvitationService
}

// NewInvitationHandler builds an InvitationHandler.
func NewInvitationHandler(invites *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invites: invites}
}

type respondRequest struct {
	Action string `json:"action"`
}

// ListAll returns every pending invitation involving the caller.
func (h *InvitationHandler) ListAll(c *gin.Context) {
	inbox, err := h.invites.ListAll(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inbox)
}

// ListDirect returns pending direct invitations, received and sent.
func (h *InvitationHandler) ListDirect(c *gin.Context) {
	received, sent, err := h.invites.ListDirect(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": received, "sent": sent})
}

// ListGroup returns pending group invitations addressed to the caller.
func (h *InvitationHandler) ListGroup(c *gin.Context) {
	invitations, err := h.invites.ListGroup(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

// RespondDirect accepts, rejects or cancels a direct invitation.
func (h *InvitationHandler) RespondDirect(c *gin.Context) {
	var req respondRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.invites.RespondDirect(c.Request.Context(), c.Param("id"), userIDFromContext(c), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(statusForAction(req.Action), res)
}

// RespondGroup accepts or rejects a group invitation.
func (h *InvitationHandler) RespondGroup(c *gin.Context) {
	var req respondRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.invites.RespondGroup(c.Request.Context(), c.Param("id"), userIDFromContext(c), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(statusForAction(req.Action), res)
}

func statusForAction(action string) int {
	if action == services.ActionAccept {
		return http.StatusCreated
	}
	return http.StatusOK
}
