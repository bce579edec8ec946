package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"messenger-core/internal/apperr"
	"messenger-core/internal/bus"
	"messenger-core/internal/models"
	"messenger-core/internal/observability"
	"messenger-core/internal/repositories"
)

// DirectOutcome tells the caller what a direct-chat request resulted in.
type DirectOutcome string

const (
	DirectExistingRoom DirectOutcome = "existing_room"
	DirectPending      DirectOutcome = "pending"
	DirectInvited      DirectOutcome = "invited"
	DirectAccepted     DirectOutcome = "accepted"
	DirectRejected     DirectOutcome = "rejected"
	DirectCancelled    DirectOutcome = "cancelled"
)

// DirectResult carries either the room that now exists or the invitation that is pending.
type DirectResult struct {
	Outcome    DirectOutcome                `json:"outcome"`
	Room       *models.RoomView             `json:"room,omitempty"`
	Invitation *models.DirectInvitationView `json:"invitation,omitempty"`
}

// Created reports whether the request created a new row.
func (r DirectResult) Created() bool {
	return r.Outcome == DirectInvited || r.Outcome == DirectAccepted
}

// Response actions.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
	ActionCancel = "cancel"
)

// InviteOutcome is the per-user result of a group invite batch.
type InviteOutcome struct {
	UserID     string                      `json:"user_id"`
	Status     string                      `json:"status"`
	Reason     string                      `json:"reason,omitempty"`
	Invitation *models.GroupInvitationView `json:"invitation,omitempty"`
}

// Invite outcome statuses.
const (
	InviteInvited = "invited"
	InviteFailed  = "failed"
)

// GroupCreated is a new group room and the outcome of each initial invite.
type GroupCreated struct {
	Room        models.RoomView `json:"room"`
	Invitations []InviteOutcome `json:"invitations"`
}

// GroupResponse is the result of accepting or rejecting a group invitation.
type GroupResponse struct {
	Invitation models.GroupInvitationView `json:"invitation"`
	Room       *models.RoomView           `json:"room,omitempty"`
}

// Inbox lists the pending invitations that involve one user.
type Inbox struct {
	DirectReceived []models.DirectInvitationView `json:"direct_received"`
	DirectSent     []models.DirectInvitationView `json:"direct_sent"`
	Group          []models.GroupInvitationView  `json:"group"`
}

// InvitationService runs the direct and group invitation state machines.
type InvitationService struct {
	store repositories.Store
	pub   Publisher
	log   logrus.FieldLogger
	clock clock
}

// NewInvitationService builds an InvitationService publishing on pub.
func NewInvitationService(store repositories.Store, pub Publisher, log logrus.FieldLogger) *InvitationService {
	return &InvitationService{store: store, pub: pub, log: log}
}

// CreateDirect opens a direct chat between callerID and targetID, or invites
// targetID. Concurrent attempts on the same pair are serialized by an advisory lock.
func (s *InvitationService) CreateDirect(ctx context.Context, callerID, targetID string) (DirectResult, error) {
	if targetID == "" {
		return DirectResult{}, apperr.Validation("user_id", "user_id is required")
	}
	if targetID == callerID {
		return DirectResult{}, apperr.Validation("user_id", "cannot start a chat with yourself")
	}

	var (
		outcome DirectOutcome
		room    models.Room
		inv     models.DirectInvitation
	)
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		if err := r.Locks.LockPair(ctx, callerID, targetID); err != nil {
			return err
		}

		existing, err := r.Rooms.FindDirectRoom(ctx, callerID, targetID)
		if err == nil {
			outcome, room = DirectExistingRoom, existing
			return nil
		}
		if !errors.Is(err, repositories.ErrRoomNotFound) {
			return err
		}

		own, err := r.Invitations.FindPendingDirect(ctx, callerID, targetID)
		if err == nil {
			outcome, inv = DirectPending, own
			return nil
		}
		if !errors.Is(err, repositories.ErrInvitationNotFound) {
			return err
		}

		theirs, err := r.Invitations.FindPendingDirect(ctx, targetID, callerID)
		if err == nil {
			created, err := createDirectRoom(ctx, r, targetID, callerID)
			if err != nil {
				return err
			}
			if inv, err = r.Invitations.UpdateDirectStatus(ctx, theirs.ID, models.InvitationAccepted, &created.ID); err != nil {
				return err
			}
			outcome, room = DirectAccepted, created
			return nil
		}
		if !errors.Is(err, repositories.ErrInvitationNotFound) {
			return err
		}

		target, err := r.Directory.GetUser(ctx, targetID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return apperr.Validation("user_id", "user not found")
		}
		if err != nil {
			return err
		}
		if !target.HasPublicKey() {
			return apperr.Validation("user_id", "user has not set up encryption keys")
		}
		if inv, err = r.Invitations.CreateDirect(ctx, models.DirectInvitation{InviterID: callerID, InviteeID: targetID}); err != nil {
			return err
		}
		outcome = DirectInvited
		return nil
	})
	if err != nil {
		return DirectResult{}, translate(err)
	}

	res, err := s.directResult(ctx, outcome, room, inv, callerID)
	if err != nil {
		return DirectResult{}, err
	}
	switch outcome {
	case DirectInvited:
		s.notifyDirect(ctx, inv, models.NotificationDirectInvitation, inv.InviteeID)
		emitEvent(ctx, s.log, observability.RoutingInviteEvents, "direct_invitation_created", map[string]any{"invitation_id": inv.ID, "inviter_id": callerID, "invitee_id": targetID})
	case DirectAccepted:
		s.notifyDirect(ctx, inv, models.NotificationInvitationAccepted, inv.InviterID)
		emitEvent(ctx, s.log, observability.RoutingInviteEvents, "direct_invitation_accepted", map[string]any{"invitation_id": inv.ID, "room_id": room.ID})
	}
	return res, nil
}

// RespondDirect applies accept or reject (invitee) or cancel (inviter).
func (s *InvitationService) RespondDirect(ctx context.Context, invitationID, userID, action string) (DirectResult, error) {
	switch action {
	case ActionAccept, ActionReject, ActionCancel:
	default:
		return DirectResult{}, apperr.Validation("action", "action must be accept, reject or cancel")
	}

	inv, err := s.store.Repos().Invitations.GetDirect(ctx, invitationID)
	if err != nil {
		return DirectResult{}, translate(err)
	}
	if userID != inv.InviterID && userID != inv.InviteeID {
		return DirectResult{}, apperr.NotFound("invitation not found")
	}
	if action == ActionCancel && userID != inv.InviterID {
		return DirectResult{}, apperr.Forbidden("only the inviter can cancel this invitation")
	}
	if action != ActionCancel && userID != inv.InviteeID {
		return DirectResult{}, apperr.Forbidden("only the invitee can respond to this invitation")
	}

	var (
		outcome DirectOutcome
		room    models.Room
	)
	err = s.store.WithinTx(ctx, func(r repositories.Repos) error {
		if err := r.Locks.LockPair(ctx, inv.InviterID, inv.InviteeID); err != nil {
			return err
		}
		locked, err := r.Invitations.LockDirect(ctx, invitationID)
		if err != nil {
			return err
		}
		if locked.Status != models.InvitationPending {
			return apperr.Validation("status", "invitation is no longer pending")
		}

		switch action {
		case ActionReject:
			outcome = DirectRejected
			inv, err = r.Invitations.UpdateDirectStatus(ctx, invitationID, models.InvitationRejected, nil)
			return err
		case ActionCancel:
			outcome = DirectCancelled
			inv, err = r.Invitations.UpdateDirectStatus(ctx, invitationID, models.InvitationCancelled, nil)
			return err
		}

		room, err = r.Rooms.FindDirectRoom(ctx, locked.InviterID, locked.InviteeID)
		if errors.Is(err, repositories.ErrRoomNotFound) {
			room, err = createDirectRoom(ctx, r, locked.InviterID, locked.InviteeID)
		}
		if err != nil {
			return err
		}
		outcome = DirectAccepted
		inv, err = r.Invitations.UpdateDirectStatus(ctx, invitationID, models.InvitationAccepted, &room.ID)
		return err
	})
	if err != nil {
		return DirectResult{}, translate(err)
	}

	res, err := s.directResult(ctx, outcome, room, inv, userID)
	if err != nil {
		return DirectResult{}, err
	}
	switch outcome {
	case DirectAccepted:
		s.notifyDirect(ctx, inv, models.NotificationInvitationAccepted, inv.InviterID)
	case DirectRejected:
		s.notifyDirect(ctx, inv, models.NotificationDirectInvitation, inv.InviterID)
	case DirectCancelled:
		s.notifyDirect(ctx, inv, models.NotificationDirectInvitation, inv.InviteeID)
	}
	emitEvent(ctx, s.log, observability.RoutingInviteEvents, "direct_invitation_"+string(inv.Status), map[string]any{"invitation_id": inv.ID, "user_id": userID})
	return res, nil
}

func createDirectRoom(ctx context.Context, r repositories.Repos, inviterID, inviteeID string) (models.Room, error) {
	key := models.DirectKey(inviterID, inviteeID)
	room, err := r.Rooms.CreateRoom(ctx, models.Room{Type: models.RoomDirect, CreatedBy: &inviterID, DirectKey: &key})
	if err != nil {
		return models.Room{}, err
	}
	for _, uid := range []string{inviterID, inviteeID} {
		if _, err := r.Rooms.AddMember(ctx, models.Member{RoomID: room.ID, UserID: uid, Role: models.RoleMember}); err != nil {
			return models.Room{}, err
		}
	}
	return room, nil
}

func (s *InvitationService) directResult(ctx context.Context, outcome DirectOutcome, room models.Room, inv models.DirectInvitation, viewerID string) (DirectResult, error) {
	repos := s.store.Repos()
	res := DirectResult{Outcome: outcome}
	if room.ID != "" {
		view, err := roomView(ctx, repos, room, viewerID)
		if err != nil {
			return DirectResult{}, translate(err)
		}
		res.Room = &view
	}
	if inv.ID != "" {
		views, err := directInvitationViews(ctx, repos, []models.DirectInvitation{inv})
		if err != nil {
			return DirectResult{}, translate(err)
		}
		res.Invitation = &views[0]
	}
	return res, nil
}

func (s *InvitationService) notifyDirect(ctx context.Context, inv models.DirectInvitation, kind, recipientID string) {
	data := models.InvitationData{InvitationID: inv.ID, Kind: "direct", RoomID: inv.RoomID, Status: inv.Status}
	if users, err := s.store.Repos().Directory.BulkUsers(ctx, []string{inv.InviterID}); err == nil {
		data.Inviter = summaryFor(users, &inv.InviterID)
	}
	publishFrame(ctx, s.pub, s.log, bus.UserTopic(recipientID), notificationFrame(s.clock.now(), kind, data))
}

// CreateGroup creates a group room owned by creatorID and invites every other initial member.
func (s *InvitationService) CreateGroup(ctx context.Context, creatorID, name string, description *string, memberIDs []string) (GroupCreated, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return GroupCreated{}, apperr.Validation("name", "name is required")
	}

	var room models.Room
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		var err error
		room, err = r.Rooms.CreateRoom(ctx, models.Room{Type: models.RoomGroup, Name: &name, Description: description, CreatedBy: &creatorID})
		if err != nil {
			return err
		}
		_, err = r.Rooms.AddMember(ctx, models.Member{RoomID: room.ID, UserID: creatorID, Role: models.RoleOwner})
		return err
	})
	if err != nil {
		return GroupCreated{}, translate(err)
	}
	emitEvent(ctx, s.log, observability.RoutingRoomEvents, "group_created", map[string]any{"room_id": room.ID, "created_by": creatorID})

	outcomes := make([]InviteOutcome, 0, len(memberIDs))
	for _, id := range dedupe(memberIDs) {
		if id == creatorID {
			continue
		}
		outcomes = append(outcomes, s.inviteOutcome(ctx, room, creatorID, id))
	}

	view, err := roomView(ctx, s.store.Repos(), room, creatorID)
	if err != nil {
		return GroupCreated{}, translate(err)
	}
	return GroupCreated{Room: view, Invitations: outcomes}, nil
}

// InviteToGroup invites users to a group room. Only owners and admins may invite.
// When every invite fails the first failure is returned as the error.
func (s *InvitationService) InviteToGroup(ctx context.Context, roomID, inviterID string, userIDs []string) ([]InviteOutcome, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, apperr.Validation("user_ids", "user_ids is required")
	}

	repos := s.store.Repos()
	room, err := repos.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, translate(err)
	}
	member, err := repos.Rooms.GetMember(ctx, roomID, inviterID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return nil, apperr.Forbidden("not a member of this room")
	}
	if err != nil {
		return nil, translate(err)
	}
	if room.Type != models.RoomGroup {
		return nil, apperr.Validation("room", "cannot invite to a direct room")
	}
	if !member.Role.CanManage() {
		return nil, apperr.Forbidden("only the owner or an admin can invite")
	}

	outcomes := make([]InviteOutcome, 0, len(ids))
	var firstErr error
	invited := 0
	for _, id := range ids {
		view, err := s.inviteOne(ctx, room, inviterID, id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			outcomes = append(outcomes, InviteOutcome{UserID: id, Status: InviteFailed, Reason: errMessage(err)})
			continue
		}
		invited++
		outcomes = append(outcomes, InviteOutcome{UserID: id, Status: InviteInvited, Invitation: &view})
	}
	if invited == 0 {
		return nil, firstErr
	}
	return outcomes, nil
}

func (s *InvitationService) inviteOutcome(ctx context.Context, room models.Room, inviterID, inviteeID string) InviteOutcome {
	view, err := s.inviteOne(ctx, room, inviterID, inviteeID)
	if err != nil {
		return InviteOutcome{UserID: inviteeID, Status: InviteFailed, Reason: errMessage(err)}
	}
	return InviteOutcome{UserID: inviteeID, Status: InviteInvited, Invitation: &view}
}

func (s *InvitationService) inviteOne(ctx context.Context, room models.Room, inviterID, inviteeID string) (models.GroupInvitationView, error) {
	repos := s.store.Repos()
	if inviteeID == inviterID {
		return models.GroupInvitationView{}, apperr.Validation("user_ids", "cannot invite yourself")
	}
	if _, err := repos.Directory.GetUser(ctx, inviteeID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.GroupInvitationView{}, apperr.Validation("user_ids", "user not found")
		}
		return models.GroupInvitationView{}, translate(err)
	}
	friends, err := repos.Directory.AreFriends(ctx, inviterID, inviteeID)
	if err != nil {
		return models.GroupInvitationView{}, translate(err)
	}
	if !friends {
		return models.GroupInvitationView{}, apperr.Validation("user_ids", "only friends can be invited")
	}
	if isMember(ctx, repos, s.log, room.ID, inviteeID) {
		return models.GroupInvitationView{}, apperr.Conflict("user is already a member")
	}

	inv, err := repos.Invitations.CreateGroup(ctx, models.GroupInvitation{RoomID: room.ID, InviterID: inviterID, InviteeID: inviteeID})
	if err != nil {
		return models.GroupInvitationView{}, translate(err)
	}
	views, err := groupInvitationViews(ctx, repos, []models.GroupInvitation{inv})
	if err != nil {
		return models.GroupInvitationView{}, translate(err)
	}

	s.notifyGroup(ctx, views[0], models.NotificationGroupInvitation, inviteeID)
	emitEvent(ctx, s.log, observability.RoutingInviteEvents, "group_invitation_created", map[string]any{"invitation_id": inv.ID, "room_id": room.ID, "invitee_id": inviteeID})
	return views[0], nil
}

// RespondGroup lets the invitee accept or reject a group invitation.
func (s *InvitationService) RespondGroup(ctx context.Context, invitationID, userID, action string) (GroupResponse, error) {
	if action != ActionAccept && action != ActionReject {
		return GroupResponse{}, apperr.Validation("action", "action must be accept or reject")
	}

	inv, err := s.store.Repos().Invitations.GetGroup(ctx, invitationID)
	if err != nil {
		return GroupResponse{}, translate(err)
	}
	if userID != inv.InviteeID {
		if userID == inv.InviterID {
			return GroupResponse{}, apperr.Forbidden("only the invitee can respond to this invitation")
		}
		return GroupResponse{}, apperr.NotFound("invitation not found")
	}

	err = s.store.WithinTx(ctx, func(r repositories.Repos) error {
		locked, err := r.Invitations.LockGroup(ctx, invitationID)
		if err != nil {
			return err
		}
		if locked.Status != models.InvitationPending {
			return apperr.Validation("status", "invitation is no longer pending")
		}
		if action == ActionReject {
			inv, err = r.Invitations.UpdateGroupStatus(ctx, invitationID, models.InvitationRejected)
			return err
		}
		if _, err := r.Rooms.AddMember(ctx, models.Member{RoomID: locked.RoomID, UserID: userID, Role: models.RoleMember}); err != nil && !errors.Is(err, repositories.ErrAlreadyMember) {
			return err
		}
		inv, err = r.Invitations.UpdateGroupStatus(ctx, invitationID, models.InvitationAccepted)
		return err
	})
	if err != nil {
		return GroupResponse{}, translate(err)
	}

	repos := s.store.Repos()
	views, err := groupInvitationViews(ctx, repos, []models.GroupInvitation{inv})
	if err != nil {
		return GroupResponse{}, translate(err)
	}
	res := GroupResponse{Invitation: views[0]}
	if inv.Status == models.InvitationAccepted {
		room, err := repos.Rooms.GetRoom(ctx, inv.RoomID)
		if err != nil {
			return GroupResponse{}, translate(err)
		}
		view, err := roomView(ctx, repos, room, userID)
		if err != nil {
			return GroupResponse{}, translate(err)
		}
		res.Room = &view
		s.notifyGroup(ctx, views[0], models.NotificationInvitationAccepted, inv.InviterID)
	}
	emitEvent(ctx, s.log, observability.RoutingInviteEvents, "group_invitation_"+string(inv.Status), map[string]any{"invitation_id": inv.ID, "room_id": inv.RoomID, "user_id": userID})
	return res, nil
}

func (s *InvitationService) notifyGroup(ctx context.Context, view models.GroupInvitationView, kind, recipientID string) {
	inviter := view.Inviter
	roomID := view.RoomID
	data := models.InvitationData{
		InvitationID: view.ID,
		Kind:         "group",
		RoomID:       &roomID,
		RoomName:     view.RoomName,
		Inviter:      &inviter,
		Status:       view.Status,
	}
	publishFrame(ctx, s.pub, s.log, bus.UserTopic(recipientID), notificationFrame(s.clock.now(), kind, data))
}

// ListDirect returns pending direct invitations received and sent by userID.
func (s *InvitationService) ListDirect(ctx context.Context, userID string) (received, sent []models.DirectInvitationView, err error) {
	repos := s.store.Repos()
	in, err := repos.Invitations.ListDirectReceived(ctx, userID)
	if err != nil {
		return nil, nil, translate(err)
	}
	out, err := repos.Invitations.ListDirectSent(ctx, userID)
	if err != nil {
		return nil, nil, translate(err)
	}
	if received, err = directInvitationViews(ctx, repos, in); err != nil {
		return nil, nil, translate(err)
	}
	if sent, err = directInvitationViews(ctx, repos, out); err != nil {
		return nil, nil, translate(err)
	}
	return received, sent, nil
}

// ListGroup returns pending group invitations addressed to userID.
func (s *InvitationService) ListGroup(ctx context.Context, userID string) ([]models.GroupInvitationView, error) {
	repos := s.store.Repos()
	invs, err := repos.Invitations.ListGroupReceived(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	views, err := groupInvitationViews(ctx, repos, invs)
	return views, translate(err)
}

// ListAll returns every pending invitation involving userID.
func (s *InvitationService) ListAll(ctx context.Context, userID string) (Inbox, error) {
	received, sent, err := s.ListDirect(ctx, userID)
	if err != nil {
		return Inbox{}, err
	}
	group, err := s.ListGroup(ctx, userID)
	if err != nil {
		return Inbox{}, err
	}
	return Inbox{DirectReceived: received, DirectSent: sent, Group: group}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func errMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		return appErr.Message
	}
	return "internal error"
}
