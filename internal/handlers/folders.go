package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-core/internal/services"
)

// FolderHandler serves the caller's private room folders.
type FolderHandler struct {
	folders *services.FolderService
}

// NewFolderHandler builds a FolderHandler.
func NewFolderHandler(folders *services.FolderService) *FolderHandler {
	return &FolderHandler{folders: folders}
}

type folderBody struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (h *FolderHandler) ListFolders(c *gin.Context) {
	folders, err := h.folders.List(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

func (h *FolderHandler) CreateFolder(c *gin.Context) {
	var req folderBody
	if !bindJSON(c, &req) {
		return
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}

	folder, err := h.folders.Create(c.Request.Context(), userIDFromContext(c), name, req.Color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

func (h *FolderHandler) GetFolder(c *gin.Context) {
	folder, err := h.folders.Get(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

func (h *FolderHandler) UpdateFolder(c *gin.Context) {
	var req folderBody
	if !bindJSON(c, &req) {
		return
	}

	folder, err := h.folders.Update(c.Request.Context(), userIDFromContext(c), c.Param("id"), req.Name, req.Color)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, folder)
}

func (h *FolderHandler) DeleteFolder(c *gin.Context) {
	if err := h.folders.Delete(c.Request.Context(), userIDFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddRoom files a room the caller belongs to into a folder.
func (h *FolderHandler) AddRoom(c *gin.Context) {
	var req struct {
		RoomID string `json:"room_id"`
	}
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.folders.AddRoom(c.Request.Context(), userIDFromContext(c), c.Param("id"), req.RoomID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *FolderHandler) RemoveRoom(c *gin.Context) {
	if err := h.folders.RemoveRoom(c.Request.Context(), userIDFromContext(c), c.Param("id"), c.Param("room_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
