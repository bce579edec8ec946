package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-core/internal/apperr"
	"messenger-core/internal/bus"
	"messenger-core/internal/logging"
	"messenger-core/internal/mocks"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
)

func newInvitationFixture() (*InvitationService, *mocks.Store, *mocks.FramePublisher) {
	st := mocks.NewStore()
	pub := &mocks.FramePublisher{}
	svc := NewInvitationService(st, pub, logging.Discard())
	svc.clock = func() time.Time { return fixedNow }
	st.Locks.On("LockPair", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return svc, st, pub
}

func pendingDirect(id, inviter, invitee string) models.DirectInvitation {
	return models.DirectInvitation{ID: id, InviterID: inviter, InviteeID: invitee, Status: models.InvitationPending, CreatedAt: fixedNow, UpdatedAt: fixedNow}
}

func TestCreateDirectRejectsSelf(t *testing.T) {
	svc, _, _ := newInvitationFixture()
	_, err := svc.CreateDirect(context.Background(), "u1", "u1")
	assert.Equal(t, "user_id", apperr.Body(err)["field"])
}

func TestCreateDirectReturnsExistingRoom(t *testing.T) {
	svc, st, pub := newInvitationFixture()
	room := directRoom("r1", "u1", "u2")
	st.Rooms.On("FindDirectRoom", mock.Anything, "u1", "u2").Return(room, nil).Once()
	st.Rooms.On("ListMembers", mock.Anything, "r1").Return(members("r1", "u1", "u2"), nil)
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	res, err := svc.CreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, DirectExistingRoom, res.Outcome)
	assert.False(t, res.Created())
	require.NotNil(t, res.Room)
	assert.Equal(t, "r1", res.Room.ID)
	assert.Len(t, res.Room.Members, 2)
	assert.Empty(t, pub.Frames())
	st.Locks.AssertCalled(t, "LockPair", mock.Anything, "u1", "u2")
}

func TestCreateDirectOwnPendingIsNoop(t *testing.T) {
	svc, st, pub := newInvitationFixture()
	st.Rooms.On("FindDirectRoom", mock.Anything, "u1", "u2").Return(nil, repositories.ErrRoomNotFound)
	st.Invitations.On("FindPendingDirect", mock.Anything, "u1", "u2").Return(pendingDirect("i1", "u1", "u2"), nil)
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	res, err := svc.CreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, DirectPending, res.Outcome)
	assert.False(t, res.Created())
	require.NotNil(t, res.Invitation)
	assert.Equal(t, "i1", res.Invitation.ID)
	assert.Empty(t, pub.Frames())
	st.Invitations.AssertNotCalled(t, "CreateDirect", mock.Anything, mock.Anything)
}

func TestCreateDirectAutoAcceptsReversePending(t *testing.T) {
	svc, st, pub := newInvitationFixture()
	room := directRoom("r5", "u2", "u1")
	st.Rooms.On("FindDirectRoom", mock.Anything, "u1", "u2").Return(nil, repositories.ErrRoomNotFound)
	st.Invitations.On("FindPendingDirect", mock.Anything, "u1", "u2").Return(nil, repositories.ErrInvitationNotFound)
	st.Invitations.On("FindPendingDirect", mock.Anything, "u2", "u1").Return(pendingDirect("i2", "u2", "u1"), nil)
	st.Rooms.On("CreateRoom", mock.Anything, mock.MatchedBy(func(r models.Room) bool {
		return r.Type == models.RoomDirect && r.DirectKey != nil && *r.DirectKey == "u1:u2"
	})).Return(room, nil).Once()
	st.Rooms.On("AddMember", mock.Anything, mock.Anything).Return(models.Member{}, nil).Twice()
	accepted := pendingDirect("i2", "u2", "u1")
	accepted.Status = models.InvitationAccepted
	accepted.RoomID = strPtr("r5")
	st.Invitations.On("UpdateDirectStatus", mock.Anything, "i2", models.InvitationAccepted, mock.Anything).Return(accepted, nil).Once()
	st.Rooms.On("ListMembers", mock.Anything, "r5").Return(members("r5", "u2", "u1"), nil)
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	res, err := svc.CreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, DirectAccepted, res.Outcome)
	assert.True(t, res.Created())
	assert.Equal(t, "r5", res.Room.ID)

	frames := pub.On(bus.UserTopic("u2"))
	require.Len(t, frames, 1)
	n := frames[0].Frame.(models.ServerFrame).Notification
	assert.Equal(t, models.NotificationInvitationAccepted, n.Type)
	st.AssertExpectations(t)
}

func TestCreateDirectRequiresPublicKey(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	st.Rooms.On("FindDirectRoom", mock.Anything, "u1", "u2").Return(nil, repositories.ErrRoomNotFound)
	st.Invitations.On("FindPendingDirect", mock.Anything, mock.Anything, mock.Anything).Return(nil, repositories.ErrInvitationNotFound)
	st.Directory.On("GetUser", mock.Anything, "u2").Return(models.User{ID: "u2", Name: "bob"}, nil)

	_, err := svc.CreateDirect(context.Background(), "u1", "u2")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "user_id", apperr.Body(err)["field"])
}

func TestCreateDirectInvitesAndNotifies(t *testing.T) {
	svc, st, pub := newInvitationFixture()
	st.Rooms.On("FindDirectRoom", mock.Anything, "u1", "u2").Return(nil, repositories.ErrRoomNotFound)
	st.Invitations.On("FindPendingDirect", mock.Anything, mock.Anything, mock.Anything).Return(nil, repositories.ErrInvitationNotFound)
	st.Directory.On("GetUser", mock.Anything, "u2").Return(user("u2", "bob"), nil)
	st.Invitations.On("CreateDirect", mock.Anything, mock.MatchedBy(func(inv models.DirectInvitation) bool {
		return inv.InviterID == "u1" && inv.InviteeID == "u2"
	})).Return(pendingDirect("i3", "u1", "u2"), nil).Once()
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	res, err := svc.CreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, DirectInvited, res.Outcome)
	assert.True(t, res.Created())

	frames := pub.On(bus.UserTopic("u2"))
	require.Len(t, frames, 1)
	n := frames[0].Frame.(models.ServerFrame).Notification
	assert.Equal(t, models.NotificationDirectInvitation, n.Type)
	data := n.Data.(models.InvitationData)
	assert.Equal(t, "i3", data.InvitationID)
	require.NotNil(t, data.Inviter)
	assert.Equal(t, "alice", data.Inviter.Name)
}

func TestRespondDirectPermissions(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	st.Invitations.On("GetDirect", mock.Anything, "i1").Return(pendingDirect("i1", "u1", "u2"), nil)

	_, err := svc.RespondDirect(context.Background(), "i1", "u9", ActionAccept)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.RespondDirect(context.Background(), "i1", "u1", ActionAccept)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = svc.RespondDirect(context.Background(), "i1", "u2", ActionCancel)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = svc.RespondDirect(context.Background(), "i1", "u2", "maybe")
	assert.Equal(t, "action", apperr.Body(err)["field"])
}

func TestRespondDirectNonPendingFails(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	done := pendingDirect("i1", "u1", "u2")
	done.Status = models.InvitationRejected
	st.Invitations.On("GetDirect", mock.Anything, "i1").Return(done, nil)
	st.Invitations.On("LockDirect", mock.Anything, "i1").Return(done, nil)

	_, err := svc.RespondDirect(context.Background(), "i1", "u2", ActionAccept)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRespondDirectAcceptReusesExistingRoom(t *testing.T) {
	svc, st, pub := newInvitationFixture()
	inv := pendingDirect("i1", "u1", "u2")
	st.Invitations.On("GetDirect", mock.Anything, "i1").Return(inv, nil)
	st.Invitations.On("LockDirect", mock.Anything, "i1").Return(inv, nil)
	st.Rooms.On("FindDirectRoom", mock.Anything, "u1", "u2").Return(directRoom("r1", "u1", "u2"), nil)
	accepted := inv
	accepted.Status = models.InvitationAccepted
	accepted.RoomID = strPtr("r1")
	st.Invitations.On("UpdateDirectStatus", mock.Anything, "i1", models.InvitationAccepted, strPtr("r1")).Return(accepted, nil)
	st.Rooms.On("ListMembers", mock.Anything, "r1").Return(members("r1", "u1", "u2"), nil)
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	res, err := svc.RespondDirect(context.Background(), "i1", "u2", ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, DirectAccepted, res.Outcome)
	assert.Equal(t, "r1", res.Room.ID)
	st.Rooms.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything)
	assert.Len(t, pub.On(bus.UserTopic("u1")), 1)
}

func TestRespondDirectCancelByInviter(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	inv := pendingDirect("i1", "u1", "u2")
	st.Invitations.On("GetDirect", mock.Anything, "i1").Return(inv, nil)
	st.Invitations.On("LockDirect", mock.Anything, "i1").Return(inv, nil)
	cancelled := inv
	cancelled.Status = models.InvitationCancelled
	st.Invitations.On("UpdateDirectStatus", mock.Anything, "i1", models.InvitationCancelled, (*string)(nil)).Return(cancelled, nil).Once()
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	res, err := svc.RespondDirect(context.Background(), "i1", "u1", ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, DirectCancelled, res.Outcome)
	assert.False(t, res.Created())
	st.Invitations.AssertExpectations(t)
}

func expectInviter(st *mocks.Store, roomID, inviterID string, role models.Role) {
	st.Rooms.On("GetRoom", mock.Anything, roomID).Return(groupRoom(roomID, "Team"), nil).Maybe()
	st.Rooms.On("GetMember", mock.Anything, roomID, inviterID).Return(models.Member{RoomID: roomID, UserID: inviterID, Role: role}, nil).Maybe()
}

func TestInviteToGroupRequiresManager(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	expectInviter(st, "g1", "u1", models.RoleMember)

	_, err := svc.InviteToGroup(context.Background(), "g1", "u1", []string{"u2"})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestInviteToGroupOutcomes(t *testing.T) {
	svc, st, pub := newInvitationFixture()
	expectInviter(st, "g1", "u1", models.RoleAdmin)
	st.Directory.On("GetUser", mock.Anything, "u2").Return(user("u2", "bob"), nil)
	st.Directory.On("GetUser", mock.Anything, "u3").Return(user("u3", "carol"), nil)
	st.Directory.On("AreFriends", mock.Anything, "u1", "u2").Return(true, nil)
	st.Directory.On("AreFriends", mock.Anything, "u1", "u3").Return(false, nil)
	st.Rooms.On("IsMember", mock.Anything, "g1", "u2").Return(false, nil)
	st.Invitations.On("CreateGroup", mock.Anything, mock.MatchedBy(func(inv models.GroupInvitation) bool { return inv.InviteeID == "u2" })).
		Return(models.GroupInvitation{ID: "gi1", RoomID: "g1", InviterID: "u1", InviteeID: "u2", Status: models.InvitationPending}, nil).Once()
	expectViews(st, users(user("u1", "alice"), user("u2", "bob"), user("u3", "carol")))

	outcomes, err := svc.InviteToGroup(context.Background(), "g1", "u1", []string{"u2", "u3", "u2"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, InviteInvited, outcomes[0].Status)
	assert.Equal(t, "gi1", outcomes[0].Invitation.ID)
	assert.Equal(t, InviteFailed, outcomes[1].Status)
	assert.Equal(t, "only friends can be invited", outcomes[1].Reason)

	frames := pub.On(bus.UserTopic("u2"))
	require.Len(t, frames, 1)
	data := frames[0].Frame.(models.ServerFrame).Notification.Data.(models.InvitationData)
	assert.Equal(t, "Team", *data.RoomName)
}

func TestInviteToGroupAllFailedReturnsFirstError(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	expectInviter(st, "g1", "u1", models.RoleOwner)
	st.Directory.On("GetUser", mock.Anything, "u2").Return(user("u2", "bob"), nil)
	st.Directory.On("AreFriends", mock.Anything, "u1", "u2").Return(true, nil)
	st.Rooms.On("IsMember", mock.Anything, "g1", "u2").Return(true, nil)

	_, err := svc.InviteToGroup(context.Background(), "g1", "u1", []string{"u2"})
	require.Error(t, err)
	assert.Equal(t, "user is already a member", apperr.Body(err)["error"])
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))
}

func TestInviteToGroupDuplicatePendingIsConflict(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	expectInviter(st, "g1", "u1", models.RoleOwner)
	st.Directory.On("GetUser", mock.Anything, "u2").Return(user("u2", "bob"), nil)
	st.Directory.On("AreFriends", mock.Anything, "u1", "u2").Return(true, nil)
	st.Rooms.On("IsMember", mock.Anything, "g1", "u2").Return(false, nil)
	st.Invitations.On("CreateGroup", mock.Anything, mock.Anything).Return(nil, repositories.ErrDuplicateInvitation)

	_, err := svc.InviteToGroup(context.Background(), "g1", "u1", []string{"u2"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateGroupMakesCreatorOwner(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	room := groupRoom("g1", "Team")
	st.Rooms.On("CreateRoom", mock.Anything, mock.MatchedBy(func(r models.Room) bool {
		return r.Type == models.RoomGroup && *r.Name == "Team" && *r.CreatedBy == "u1"
	})).Return(room, nil).Once()
	st.Rooms.On("AddMember", mock.Anything, models.Member{RoomID: "g1", UserID: "u1", Role: models.RoleOwner}).Return(models.Member{}, nil).Once()
	st.Directory.On("GetUser", mock.Anything, "u4").Return(nil, repositories.ErrUserNotFound)
	st.Rooms.On("ListMembers", mock.Anything, "g1").Return([]models.Member{{ID: "m1", RoomID: "g1", UserID: "u1", Role: models.RoleOwner}}, nil)
	expectViews(st, users(user("u1", "alice")))

	created, err := svc.CreateGroup(context.Background(), "u1", "  Team ", nil, []string{"u1", "u4"})
	require.NoError(t, err)
	assert.Equal(t, "g1", created.Room.ID)
	require.Len(t, created.Invitations, 1)
	assert.Equal(t, "u4", created.Invitations[0].UserID)
	assert.Equal(t, InviteFailed, created.Invitations[0].Status)
	st.Rooms.AssertExpectations(t)

	_, err = svc.CreateGroup(context.Background(), "u1", " ", nil, nil)
	assert.Equal(t, "name", apperr.Body(err)["field"])
}

func TestRespondGroup(t *testing.T) {
	svc, st, pub := newInvitationFixture()
	inv := models.GroupInvitation{ID: "gi1", RoomID: "g1", InviterID: "u1", InviteeID: "u2", Status: models.InvitationPending}
	st.Invitations.On("GetGroup", mock.Anything, "gi1").Return(inv, nil)

	_, err := svc.RespondGroup(context.Background(), "gi1", "u9", ActionAccept)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.RespondGroup(context.Background(), "gi1", "u1", ActionAccept)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	accepted := inv
	accepted.Status = models.InvitationAccepted
	st.Invitations.On("LockGroup", mock.Anything, "gi1").Return(inv, nil).Once()
	st.Rooms.On("AddMember", mock.Anything, models.Member{RoomID: "g1", UserID: "u2", Role: models.RoleMember}).Return(models.Member{}, nil).Once()
	st.Invitations.On("UpdateGroupStatus", mock.Anything, "gi1", models.InvitationAccepted).Return(accepted, nil).Once()
	st.Rooms.On("GetRoom", mock.Anything, "g1").Return(groupRoom("g1", "Team"), nil)
	st.Rooms.On("ListMembers", mock.Anything, "g1").Return(members("g1", "u1", "u2"), nil)
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	res, err := svc.RespondGroup(context.Background(), "gi1", "u2", ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, res.Invitation.Status)
	require.NotNil(t, res.Room)
	assert.Equal(t, 2, res.Room.MemberCount)

	frames := pub.On(bus.UserTopic("u1"))
	require.Len(t, frames, 1)
	assert.Equal(t, models.NotificationInvitationAccepted, frames[0].Frame.(models.ServerFrame).Notification.Type)
	st.AssertExpectations(t)
}

func TestReinviteAfterRejection(t *testing.T) {
	svc, st, _ := newInvitationFixture()
	expectInviter(st, "g1", "u1", models.RoleOwner)
	st.Directory.On("GetUser", mock.Anything, "u2").Return(user("u2", "bob"), nil)
	st.Directory.On("AreFriends", mock.Anything, "u1", "u2").Return(true, nil)
	st.Rooms.On("IsMember", mock.Anything, "g1", "u2").Return(false, nil)
	st.Invitations.On("CreateGroup", mock.Anything, mock.Anything).
		Return(models.GroupInvitation{ID: "gi2", RoomID: "g1", InviterID: "u1", InviteeID: "u2", Status: models.InvitationPending}, nil).Once()
	expectViews(st, users(user("u1", "alice"), user("u2", "bob")))

	outcomes, err := svc.InviteToGroup(context.Background(), "g1", "u1", []string{"u2"})
	require.NoError(t, err)
	assert.Equal(t, "gi2", outcomes[0].Invitation.ID)
	st.Invitations.AssertNotCalled(t, "FindPendingGroup", mock.Anything, mock.Anything, mock.Anything)
}
