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

// Leave outcomes.
const (
	LeftRoom          = "left room"
	DirectRoomDeleted = "direct room deleted"
	LastMemberLeft    = "last member left, room deleted"
)

// LeaveResult describes what leaving a room did.
type LeaveResult struct {
	Message     string  `json:"message"`
	RoomDeleted bool    `json:"room_deleted"`
	NewOwnerID  *string `json:"new_owner_id,omitempty"`
}

// RoomService lists, updates and leaves rooms and manages group members.
type RoomService struct {
	store repositories.Store
	pub   Publisher
	log   logrus.FieldLogger
}

// NewRoomService builds a RoomService publishing on pub.
func NewRoomService(store repositories.Store, pub Publisher, log logrus.FieldLogger) *RoomService {
	return &RoomService{store: store, pub: pub, log: log}
}

// List returns the user's rooms, most recently active first.
func (s *RoomService) List(ctx context.Context, userID string) ([]models.RoomView, error) {
	repos := s.store.Repos()
	rooms, err := repos.Rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	views := make([]models.RoomView, 0, len(rooms))
	for _, room := range rooms {
		view, err := roomView(ctx, repos, room, userID)
		if err != nil {
			return nil, translate(err)
		}
		views = append(views, view)
	}
	return views, nil
}

// Get returns the detail of a room the user belongs to.
func (s *RoomService) Get(ctx context.Context, roomID, userID string) (models.RoomView, error) {
	repos := s.store.Repos()
	room, err := repos.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.RoomView{}, translate(err)
	}
	if err := requireMember(ctx, repos, s.log, roomID, userID); err != nil {
		return models.RoomView{}, err
	}
	view, err := roomView(ctx, repos, room, userID)
	return view, translate(err)
}

// Update renames a group room or changes its description. Empty values are ignored.
func (s *RoomService) Update(ctx context.Context, roomID, userID string, name, description *string) (models.RoomView, error) {
	repos := s.store.Repos()
	room, err := repos.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.RoomView{}, translate(err)
	}
	member, err := s.member(ctx, repos, roomID, userID)
	if err != nil {
		return models.RoomView{}, err
	}
	if room.Type != models.RoomGroup {
		return models.RoomView{}, apperr.Validation("room_type", "direct rooms cannot be edited")
	}
	if !member.Role.CanManage() {
		return models.RoomView{}, apperr.Forbidden("only the owner or an admin can edit this room")
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			name = nil
		} else {
			name = &trimmed
		}
	}
	updated, err := repos.Rooms.UpdateRoom(ctx, roomID, name, description)
	if err != nil {
		return models.RoomView{}, translate(err)
	}
	emitEvent(ctx, s.log, observability.RoutingRoomEvents, "room_updated", map[string]any{"room_id": roomID, "user_id": userID})
	view, err := roomView(ctx, repos, updated, userID)
	return view, translate(err)
}

// Leave removes userID from a room. Direct rooms are deleted outright; a
// leaving group owner hands ownership over first; an emptied group is deleted.
func (s *RoomService) Leave(ctx context.Context, roomID, userID string) (LeaveResult, error) {
	var res LeaveResult
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		room, err := r.Rooms.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		member, err := r.Rooms.GetMember(ctx, roomID, userID)
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return apperr.Forbidden("not a member of this room")
		}
		if err != nil {
			return err
		}

		if room.Type == models.RoomDirect {
			res = LeaveResult{Message: DirectRoomDeleted, RoomDeleted: true}
			return r.Rooms.DeleteRoom(ctx, roomID)
		}

		if member.Role == models.RoleOwner {
			next, err := r.Rooms.NextOwnerCandidate(ctx, roomID, userID)
			switch {
			case err == nil:
				if err := r.Rooms.SetRole(ctx, roomID, next.UserID, models.RoleOwner); err != nil {
					return err
				}
				res.NewOwnerID = &next.UserID
			case !errors.Is(err, repositories.ErrMemberNotFound):
				return err
			}
		}

		if err := r.Rooms.RemoveMember(ctx, roomID, userID); err != nil {
			return err
		}
		remaining, err := r.Rooms.ListMembers(ctx, roomID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			res.Message, res.RoomDeleted = LastMemberLeft, true
			return r.Rooms.DeleteRoom(ctx, roomID)
		}
		res.Message = LeftRoom
		return nil
	})
	if err != nil {
		return LeaveResult{}, translate(err)
	}

	publishFrame(ctx, s.pub, s.log, bus.RoomTopic(roomID), models.ServerFrame{Type: models.FrameUserStatus, UserID: userID, Status: "left"}, bus.EvictUser(userID))
	payload := map[string]any{"room_id": roomID, "user_id": userID, "room_deleted": res.RoomDeleted}
	if res.NewOwnerID != nil {
		payload["new_owner_id"] = *res.NewOwnerID
	}
	emitEvent(ctx, s.log, observability.RoutingRoomEvents, "member_left", payload)
	return res, nil
}

// RemoveMember lets an owner or admin remove a non-owner from a group room.
func (s *RoomService) RemoveMember(ctx context.Context, roomID, actorID, targetID string) error {
	repos := s.store.Repos()
	room, err := repos.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return translate(err)
	}
	actor, err := s.member(ctx, repos, roomID, actorID)
	if err != nil {
		return err
	}
	if room.Type != models.RoomGroup {
		return apperr.Validation("room_type", "members cannot be removed from a direct room")
	}
	if !actor.Role.CanManage() {
		return apperr.Forbidden("only the owner or an admin can remove members")
	}
	if targetID == actorID {
		return apperr.Validation("user_id", "use leave to remove yourself")
	}
	target, err := repos.Rooms.GetMember(ctx, roomID, targetID)
	if err != nil {
		return translate(err)
	}
	if target.Role == models.RoleOwner {
		return apperr.Forbidden("the owner cannot be removed")
	}
	if actor.Role == models.RoleAdmin && target.Role == models.RoleAdmin {
		return apperr.Forbidden("admins cannot remove other admins")
	}
	if err := repos.Rooms.RemoveMember(ctx, roomID, targetID); err != nil {
		return translate(err)
	}

	publishFrame(ctx, s.pub, s.log, bus.RoomTopic(roomID), models.ServerFrame{Type: models.FrameUserStatus, UserID: targetID, Status: "removed"}, bus.EvictUser(targetID))
	emitEvent(ctx, s.log, observability.RoutingRoomEvents, "member_removed", map[string]any{"room_id": roomID, "user_id": targetID, "removed_by": actorID})
	return nil
}

// SetRole lets the owner promote a member to admin or demote an admin.
func (s *RoomService) SetRole(ctx context.Context, roomID, actorID, targetID string, role models.Role) (models.MemberView, error) {
	if role != models.RoleAdmin && role != models.RoleMember {
		return models.MemberView{}, apperr.Validation("role", "role must be admin or member")
	}
	repos := s.store.Repos()
	room, err := repos.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.MemberView{}, translate(err)
	}
	actor, err := s.member(ctx, repos, roomID, actorID)
	if err != nil {
		return models.MemberView{}, err
	}
	if room.Type != models.RoomGroup {
		return models.MemberView{}, apperr.Validation("room_type", "direct rooms have no roles")
	}
	if actor.Role != models.RoleOwner {
		return models.MemberView{}, apperr.Forbidden("only the owner can change roles")
	}
	if targetID == actorID {
		return models.MemberView{}, apperr.Validation("user_id", "the owner cannot change their own role")
	}
	if err := repos.Rooms.SetRole(ctx, roomID, targetID, role); err != nil {
		return models.MemberView{}, translate(err)
	}
	target, err := repos.Rooms.GetMember(ctx, roomID, targetID)
	if err != nil {
		return models.MemberView{}, translate(err)
	}
	users, err := repos.Directory.BulkUsers(ctx, []string{targetID})
	if err != nil {
		return models.MemberView{}, translate(err)
	}
	emitEvent(ctx, s.log, observability.RoutingRoomEvents, "member_role_changed", map[string]any{"room_id": roomID, "user_id": targetID, "role": role})
	return models.MemberView{
		ID:         target.ID,
		User:       userOrStub(users, targetID),
		Role:       target.Role,
		Nickname:   target.Nickname,
		JoinedAt:   target.JoinedAt,
		LastReadAt: target.LastReadAt,
	}, nil
}

func (s *RoomService) member(ctx context.Context, repos repositories.Repos, roomID, userID string) (models.Member, error) {
	m, err := repos.Rooms.GetMember(ctx, roomID, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return models.Member{}, apperr.Forbidden("not a member of this room")
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).Warn("membership lookup failed")
		return models.Member{}, apperr.Forbidden("not a member of this room")
	}
	return m, nil
}
