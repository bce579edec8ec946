package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"messenger-core/internal/apperr"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
)

// DefaultFolderColor is used when a folder is created without a color.
const DefaultFolderColor = "#000000"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// FolderDetail is a folder with the rooms it holds.
type FolderDetail struct {
	models.Folder
	Rooms []models.FolderRoomView `json:"rooms"`
}

// FolderService manages a user's private room folders.
type FolderService struct {
	store repositories.Store
	log   logrus.FieldLogger
}

// NewFolderService builds a FolderService.
func NewFolderService(store repositories.Store, log logrus.FieldLogger) *FolderService {
	return &FolderService{store: store, log: log}
}

func (s *FolderService) List(ctx context.Context, userID string) ([]models.Folder, error) {
	folders, err := s.store.Repos().Folders.ListForUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	return folders, nil
}

// Create adds a folder at the end of the user's list.
func (s *FolderService) Create(ctx context.Context, userID, name string, color *string) (models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Folder{}, apperr.Validation("name", "name is required")
	}
	c := DefaultFolderColor
	if color != nil && *color != "" {
		if !colorPattern.MatchString(*color) {
			return models.Folder{}, apperr.Validation("color", "color must look like #RRGGBB")
		}
		c = *color
	}
	folder, err := s.store.Repos().Folders.Create(ctx, models.Folder{UserID: userID, Name: name, Color: c})
	return folder, translate(err)
}

// Get returns a folder owned by userID with its rooms.
func (s *FolderService) Get(ctx context.Context, userID, folderID string) (FolderDetail, error) {
	repos := s.store.Repos()
	folder, err := repos.Folders.GetOwned(ctx, userID, folderID)
	if err != nil {
		return FolderDetail{}, translate(err)
	}
	links, err := repos.Folders.ListRooms(ctx, folderID)
	if err != nil {
		return FolderDetail{}, translate(err)
	}
	detail := FolderDetail{Folder: folder, Rooms: make([]models.FolderRoomView, 0, len(links))}
	for _, link := range links {
		room, err := repos.Rooms.GetRoom(ctx, link.RoomID)
		if errors.Is(err, repositories.ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return FolderDetail{}, translate(err)
		}
		view, err := roomView(ctx, repos, room, userID)
		if err != nil {
			return FolderDetail{}, translate(err)
		}
		detail.Rooms = append(detail.Rooms, models.FolderRoomView{
			ID:        link.ID,
			Folder:    link.FolderID,
			Room:      view,
			SortOrder: link.SortOrder,
			CreatedAt: link.CreatedAt,
		})
	}
	return detail, nil
}

// Update renames or recolors a folder.
func (s *FolderService) Update(ctx context.Context, userID, folderID string, name, color *string) (models.Folder, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return models.Folder{}, apperr.Validation("name", "name cannot be empty")
		}
		name = &trimmed
	}
	if color != nil && !colorPattern.MatchString(*color) {
		return models.Folder{}, apperr.Validation("color", "color must look like #RRGGBB")
	}
	folder, err := s.store.Repos().Folders.Update(ctx, userID, folderID, name, color)
	return folder, translate(err)
}

func (s *FolderService) Delete(ctx context.Context, userID, folderID string) error {
	return translate(s.store.WithinTx(ctx, func(r repositories.Repos) error {
		return r.Folders.Delete(ctx, userID, folderID)
	}))
}

// AddRoom files a room the user belongs to into one of their folders.
func (s *FolderService) AddRoom(ctx context.Context, userID, folderID, roomID string) (models.FolderRoom, error) {
	if roomID == "" {
		return models.FolderRoom{}, apperr.Validation("room_id", "room_id is required")
	}
	repos := s.store.Repos()
	if _, err := repos.Folders.GetOwned(ctx, userID, folderID); err != nil {
		return models.FolderRoom{}, translate(err)
	}
	if _, err := repos.Rooms.GetRoom(ctx, roomID); err != nil {
		return models.FolderRoom{}, translate(err)
	}
	if err := requireMember(ctx, repos, s.log, roomID, userID); err != nil {
		return models.FolderRoom{}, err
	}
	link, err := repos.Folders.AddRoom(ctx, folderID, roomID)
	return link, translate(err)
}

func (s *FolderService) RemoveRoom(ctx context.Context, userID, folderID, roomID string) error {
	repos := s.store.Repos()
	if _, err := repos.Folders.GetOwned(ctx, userID, folderID); err != nil {
		return translate(err)
	}
	return translate(repos.Folders.RemoveRoom(ctx, folderID, roomID))
}
