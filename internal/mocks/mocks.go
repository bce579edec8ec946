package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-core/internal/models"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	args := m.Called(ctx, room)
	var out models.Room
	if val := args.Get(0); val != nil {
		out = val.(models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var out models.Room
	if val := args.Get(0); val != nil {
		out = val.(models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) LockRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var out models.Room
	if val := args.Get(0); val != nil {
		out = val.(models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) FindDirectRoom(ctx context.Context, a, b string) (models.Room, error) {
	args := m.Called(ctx, a, b)
	var out models.Room
	if val := args.Get(0); val != nil {
		out = val.(models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) UpdateRoom(ctx context.Context, roomID string, name, description *string) (models.Room, error) {
	args := m.Called(ctx, roomID, name, description)
	var out models.Room
	if val := args.Get(0); val != nil {
		out = val.(models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	args := m.Called(ctx, roomID, at)
	return args.Error(0)
}

func (m *RoomRepositoryMock) DeleteRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	var out []models.Room
	if val := args.Get(0); val != nil {
		out = val.([]models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, member models.Member) (models.Member, error) {
	args := m.Called(ctx, member)
	var out models.Member
	if val := args.Get(0); val != nil {
		out = val.(models.Member)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) GetMember(ctx context.Context, roomID, userID string) (models.Member, error) {
	args := m.Called(ctx, roomID, userID)
	var out models.Member
	if val := args.Get(0); val != nil {
		out = val.(models.Member)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) ListMembers(ctx context.Context, roomID string) ([]models.Member, error) {
	args := m.Called(ctx, roomID)
	var out []models.Member
	if val := args.Get(0); val != nil {
		out = val.([]models.Member)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) RemoveMember(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) SetRole(ctx context.Context, roomID, userID string, role models.Role) error {
	args := m.Called(ctx, roomID, userID, role)
	return args.Error(0)
}

func (m *RoomRepositoryMock) NextOwnerCandidate(ctx context.Context, roomID, excludeUserID string) (models.Member, error) {
	args := m.Called(ctx, roomID, excludeUserID)
	var out models.Member
	if val := args.Get(0); val != nil {
		out = val.(models.Member)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) SetLastRead(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	args := m.Called(ctx, ids)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit, offset)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Count(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, roomID string) (models.Message, error) {
	args := m.Called(ctx, roomID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID string, edit models.Message) (models.Message, error) {
	args := m.Called(ctx, messageID, edit)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, roomID, readerID string, ids []string) (int, error) {
	args := m.Called(ctx, roomID, readerID, ids)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, roomID, viewerID string, since *time.Time) (int, error) {
	args := m.Called(ctx, roomID, viewerID, since)
	return args.Int(0), args.Error(1)
}

type DeviceRepositoryMock struct {
	mock.Mock
}

func (m *DeviceRepositoryMock) Create(ctx context.Context, device models.Device) (models.Device, error) {
	args := m.Called(ctx, device)
	var out models.Device
	if val := args.Get(0); val != nil {
		out = val.(models.Device)
	}
	return out, args.Error(1)
}

func (m *DeviceRepositoryMock) Get(ctx context.Context, deviceID string) (models.Device, error) {
	args := m.Called(ctx, deviceID)
	var out models.Device
	if val := args.Get(0); val != nil {
		out = val.(models.Device)
	}
	return out, args.Error(1)
}

func (m *DeviceRepositoryMock) CountForUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *DeviceRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Device, error) {
	args := m.Called(ctx, userID)
	var out []models.Device
	if val := args.Get(0); val != nil {
		out = val.([]models.Device)
	}
	return out, args.Error(1)
}

func (m *DeviceRepositoryMock) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.Bool(0), args.Error(1)
}

func (m *DeviceRepositoryMock) FindByFingerprint(ctx context.Context, userID, fingerprint string) (models.Device, error) {
	args := m.Called(ctx, userID, fingerprint)
	var out models.Device
	if val := args.Get(0); val != nil {
		out = val.(models.Device)
	}
	return out, args.Error(1)
}

func (m *DeviceRepositoryMock) TouchLastActive(ctx context.Context, deviceID string, at time.Time) error {
	args := m.Called(ctx, deviceID, at)
	return args.Error(0)
}

func (m *DeviceRepositoryMock) Delete(ctx context.Context, userID, deviceID string) error {
	args := m.Called(ctx, userID, deviceID)
	return args.Error(0)
}

type InvitationRepositoryMock struct {
	mock.Mock
}

func (m *InvitationRepositoryMock) CreateDirect(ctx context.Context, inv models.DirectInvitation) (models.DirectInvitation, error) {
	args := m.Called(ctx, inv)
	var out models.DirectInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.DirectInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) GetDirect(ctx context.Context, invitationID string) (models.DirectInvitation, error) {
	args := m.Called(ctx, invitationID)
	var out models.DirectInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.DirectInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) LockDirect(ctx context.Context, invitationID string) (models.DirectInvitation, error) {
	args := m.Called(ctx, invitationID)
	var out models.DirectInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.DirectInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) FindPendingDirect(ctx context.Context, inviterID, inviteeID string) (models.DirectInvitation, error) {
	args := m.Called(ctx, inviterID, inviteeID)
	var out models.DirectInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.DirectInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) UpdateDirectStatus(ctx context.Context, invitationID string, status models.InvitationStatus, roomID *string) (models.DirectInvitation, error) {
	args := m.Called(ctx, invitationID, status, roomID)
	var out models.DirectInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.DirectInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) ListDirectReceived(ctx context.Context, userID string) ([]models.DirectInvitation, error) {
	args := m.Called(ctx, userID)
	var out []models.DirectInvitation
	if val := args.Get(0); val != nil {
		out = val.([]models.DirectInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) ListDirectSent(ctx context.Context, userID string) ([]models.DirectInvitation, error) {
	args := m.Called(ctx, userID)
	var out []models.DirectInvitation
	if val := args.Get(0); val != nil {
		out = val.([]models.DirectInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) CreateGroup(ctx context.Context, inv models.GroupInvitation) (models.GroupInvitation, error) {
	args := m.Called(ctx, inv)
	var out models.GroupInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.GroupInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) GetGroup(ctx context.Context, invitationID string) (models.GroupInvitation, error) {
	args := m.Called(ctx, invitationID)
	var out models.GroupInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.GroupInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) LockGroup(ctx context.Context, invitationID string) (models.GroupInvitation, error) {
	args := m.Called(ctx, invitationID)
	var out models.GroupInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.GroupInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) FindPendingGroup(ctx context.Context, roomID, inviteeID string) (models.GroupInvitation, error) {
	args := m.Called(ctx, roomID, inviteeID)
	var out models.GroupInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.GroupInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) UpdateGroupStatus(ctx context.Context, invitationID string, status models.InvitationStatus) (models.GroupInvitation, error) {
	args := m.Called(ctx, invitationID, status)
	var out models.GroupInvitation
	if val := args.Get(0); val != nil {
		out = val.(models.GroupInvitation)
	}
	return out, args.Error(1)
}

func (m *InvitationRepositoryMock) ListGroupReceived(ctx context.Context, userID string) ([]models.GroupInvitation, error) {
	args := m.Called(ctx, userID)
	var out []models.GroupInvitation
	if val := args.Get(0); val != nil {
		out = val.([]models.GroupInvitation)
	}
	return out, args.Error(1)
}

type FolderRepositoryMock struct {
	mock.Mock
}

func (m *FolderRepositoryMock) Create(ctx context.Context, folder models.Folder) (models.Folder, error) {
	args := m.Called(ctx, folder)
	var out models.Folder
	if val := args.Get(0); val != nil {
		out = val.(models.Folder)
	}
	return out, args.Error(1)
}

func (m *FolderRepositoryMock) GetOwned(ctx context.Context, userID, folderID string) (models.Folder, error) {
	args := m.Called(ctx, userID, folderID)
	var out models.Folder
	if val := args.Get(0); val != nil {
		out = val.(models.Folder)
	}
	return out, args.Error(1)
}

func (m *FolderRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Folder, error) {
	args := m.Called(ctx, userID)
	var out []models.Folder
	if val := args.Get(0); val != nil {
		out = val.([]models.Folder)
	}
	return out, args.Error(1)
}

func (m *FolderRepositoryMock) Update(ctx context.Context, userID, folderID string, name, color *string) (models.Folder, error) {
	args := m.Called(ctx, userID, folderID, name, color)
	var out models.Folder
	if val := args.Get(0); val != nil {
		out = val.(models.Folder)
	}
	return out, args.Error(1)
}

func (m *FolderRepositoryMock) Delete(ctx context.Context, userID, folderID string) error {
	args := m.Called(ctx, userID, folderID)
	return args.Error(0)
}

func (m *FolderRepositoryMock) AddRoom(ctx context.Context, folderID, roomID string) (models.FolderRoom, error) {
	args := m.Called(ctx, folderID, roomID)
	var out models.FolderRoom
	if val := args.Get(0); val != nil {
		out = val.(models.FolderRoom)
	}
	return out, args.Error(1)
}

func (m *FolderRepositoryMock) RemoveRoom(ctx context.Context, folderID, roomID string) error {
	args := m.Called(ctx, folderID, roomID)
	return args.Error(0)
}

func (m *FolderRepositoryMock) ListRooms(ctx context.Context, folderID string) ([]models.FolderRoom, error) {
	args := m.Called(ctx, folderID)
	var out []models.FolderRoom
	if val := args.Get(0); val != nil {
		out = val.([]models.FolderRoom)
	}
	return out, args.Error(1)
}

type DirectoryRepositoryMock struct {
	mock.Mock
}

func (m *DirectoryRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *DirectoryRepositoryMock) BulkUsers(ctx context.Context, ids []string) (map[string]models.User, error) {
	args := m.Called(ctx, ids)
	var out map[string]models.User
	if val := args.Get(0); val != nil {
		out = val.(map[string]models.User)
	}
	return out, args.Error(1)
}

func (m *DirectoryRepositoryMock) GetAsset(ctx context.Context, assetID string) (models.Asset, error) {
	args := m.Called(ctx, assetID)
	var out models.Asset
	if val := args.Get(0); val != nil {
		out = val.(models.Asset)
	}
	return out, args.Error(1)
}

func (m *DirectoryRepositoryMock) BulkAssets(ctx context.Context, ids []string) (map[string]models.Asset, error) {
	args := m.Called(ctx, ids)
	var out map[string]models.Asset
	if val := args.Get(0); val != nil {
		out = val.(map[string]models.Asset)
	}
	return out, args.Error(1)
}

func (m *DirectoryRepositoryMock) AreFriends(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

type LockerMock struct {
	mock.Mock
}

func (m *LockerMock) LockPair(ctx context.Context, a, b string) error {
	args := m.Called(ctx, a, b)
	return args.Error(0)
}

func (m *LockerMock) LockUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
