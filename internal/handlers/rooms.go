package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/models"
	"messenger-core/internal/services"
)

// RoomHandler serves room listing, creation and membership endpoints.
type RoomHandler struct {
	rooms   *services.RoomService
	invites *services.InvitationService
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(rooms *services.RoomService, invites *services.InvitationService) *RoomHandler {
	return &RoomHandler{rooms: rooms, invites: invites}
}

// ListRooms returns the caller's rooms, most recently active first.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// StartDirect returns the direct room with a user, or invites them.
func (h *RoomHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.invites.CreateDirect(c.Request.Context(), userIDFromContext(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if res.Created() {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// CreateGroup creates a group room owned by the caller and invites the listed users.
func (h *RoomHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string   `json:"name"`
		Description *string  `json:"description"`
		MemberIDs   []string `json:"member_ids"`
	}
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.invites.CreateGroup(c.Request.Context(), userIDFromContext(c), req.Name, req.Description, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetRoom returns one room the caller belongs to.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), c.Param("room_id"), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// UpdateRoom renames a group or changes its description.
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.rooms.Update(c.Request.Context(), c.Param("room_id"), userIDFromContext(c), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// LeaveRoom removes the caller from a room.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	res, err := h.rooms.Leave(c.Request.Context(), c.Param("room_id"), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// InviteMembers invites friends of the caller to a group.
func (h *RoomHandler) InviteMembers(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if !bindJSON(c, &req) {
		return
	}

	outcomes, err := h.invites.InviteToGroup(c.Request.Context(), c.Param("room_id"), userIDFromContext(c), req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitations": outcomes})
}

// UpdateMember changes a member's role.
func (h *RoomHandler) UpdateMember(c *gin.Context) {
	var req struct {
		Role models.Role `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.rooms.SetRole(c.Request.Context(), c.Param("room_id"), userIDFromContext(c), c.Param("user_id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// RemoveMember takes a member out of a group.
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	if err := h.rooms.RemoveMember(c.Request.Context(), c.Param("room_id"), userIDFromContext(c), c.Param("user_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}
