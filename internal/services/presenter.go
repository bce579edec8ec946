package services

import (
	"context"
	"errors"
	"fmt"

	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
)

const replyPreviewRunes = 50

func summaryFor(users map[string]models.User, id *string) *models.UserSummary {
	if id == nil {
		return nil
	}
	u, ok := users[*id]
	if !ok {
		return nil
	}
	s := u.Summary()
	return &s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// messageViews renders messages with sender, asset and reply summaries.
func messageViews(ctx context.Context, repos repositories.Repos, msgs []models.Message) ([]models.MessageView, error) {
	if len(msgs) == 0 {
		return []models.MessageView{}, nil
	}

	var replyIDs, assetIDs []string
	for _, m := range msgs {
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
		if m.AssetID != nil {
			assetIDs = append(assetIDs, *m.AssetID)
		}
	}

	replies, err := repos.Messages.GetByIDs(ctx, replyIDs)
	if err != nil {
		return nil, err
	}
	replyByID := make(map[string]models.Message, len(replies))
	for _, r := range replies {
		replyByID[r.ID] = r
	}

	userSet := map[string]struct{}{}
	for _, m := range msgs {
		if m.SenderID != nil {
			userSet[*m.SenderID] = struct{}{}
		}
	}
	for _, r := range replies {
		if r.SenderID != nil {
			userSet[*r.SenderID] = struct{}{}
		}
	}
	userIDs := make([]string, 0, len(userSet))
	for id := range userSet {
		userIDs = append(userIDs, id)
	}
	users, err := repos.Directory.BulkUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	assets, err := repos.Directory.BulkAssets(ctx, assetIDs)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := models.MessageView{
			ID:                      m.ID,
			Room:                    m.RoomID,
			Sender:                  summaryFor(users, m.SenderID),
			MessageType:             m.Type,
			Content:                 m.Content,
			EncryptedContent:        m.EncryptedContent,
			EncryptedSessionKey:     m.EncryptedSessionKey,
			SelfEncryptedSessionKey: m.SelfEncryptedSessionKey,
			IsRead:                  m.IsRead,
			CreatedAt:               m.CreatedAt,
			UpdatedAt:               m.UpdatedAt,
		}
		if m.AssetID != nil {
			if a, ok := assets[*m.AssetID]; ok {
				v.Asset = &a
			}
		}
		if m.ReplyToID != nil {
			if r, ok := replyByID[*m.ReplyToID]; ok {
				v.ReplyTo = &models.ReplySummary{
					ID:          r.ID,
					Sender:      summaryFor(users, r.SenderID),
					Content:     truncateRunes(r.Content, replyPreviewRunes),
					MessageType: r.Type,
				}
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func messageView(ctx context.Context, repos repositories.Repos, msg models.Message) (models.MessageView, error) {
	views, err := messageViews(ctx, repos, []models.Message{msg})
	if err != nil {
		return models.MessageView{}, err
	}
	return views[0], nil
}

// roomView renders a room as seen by viewerID.
func roomView(ctx context.Context, repos repositories.Repos, room models.Room, viewerID string) (models.RoomView, error) {
	members, err := repos.Rooms.ListMembers(ctx, room.ID)
	if err != nil {
		return models.RoomView{}, err
	}

	ids := make([]string, 0, len(members)+1)
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	if room.CreatedBy != nil {
		ids = append(ids, *room.CreatedBy)
	}
	users, err := repos.Directory.BulkUsers(ctx, ids)
	if err != nil {
		return models.RoomView{}, err
	}

	view := models.RoomView{
		ID:          room.ID,
		RoomType:    room.Type,
		Name:        room.Name,
		Description: room.Description,
		CreatedBy:   summaryFor(users, room.CreatedBy),
		Members:     make([]models.MemberView, 0, len(members)),
		MemberCount: len(members),
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}

	var viewer *models.Member
	for i, m := range members {
		user := models.UserSummary{ID: m.UserID}
		if u, ok := users[m.UserID]; ok {
			user = u.Summary()
		}
		view.Members = append(view.Members, models.MemberView{
			ID:         m.ID,
			User:       user,
			Role:       m.Role,
			Nickname:   m.Nickname,
			JoinedAt:   m.JoinedAt,
			LastReadAt: m.LastReadAt,
		})
		if m.UserID == viewerID {
			viewer = &members[i]
		}
	}

	latest, err := repos.Messages.Latest(ctx, room.ID)
	switch {
	case err == nil:
		lv, err := messageView(ctx, repos, latest)
		if err != nil {
			return models.RoomView{}, err
		}
		view.LastMessage = &lv
	case !errors.Is(err, repositories.ErrMessageNotFound):
		return models.RoomView{}, err
	}

	if viewer != nil {
		unread, err := repos.Messages.UnreadCount(ctx, room.ID, viewerID, viewer.LastReadAt)
		if err != nil {
			return models.RoomView{}, err
		}
		view.UnreadCount = unread
	}
	return view, nil
}

func directInvitationViews(ctx context.Context, repos repositories.Repos, invs []models.DirectInvitation) ([]models.DirectInvitationView, error) {
	ids := make([]string, 0, len(invs)*2)
	for _, inv := range invs {
		ids = append(ids, inv.InviterID, inv.InviteeID)
	}
	users, err := repos.Directory.BulkUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.DirectInvitationView, 0, len(invs))
	for _, inv := range invs {
		views = append(views, models.DirectInvitationView{
			ID:        inv.ID,
			Kind:      "direct",
			Inviter:   userOrStub(users, inv.InviterID),
			Invitee:   userOrStub(users, inv.InviteeID),
			Status:    inv.Status,
			RoomID:    inv.RoomID,
			CreatedAt: inv.CreatedAt,
			UpdatedAt: inv.UpdatedAt,
		})
	}
	return views, nil
}

func groupInvitationViews(ctx context.Context, repos repositories.Repos, invs []models.GroupInvitation) ([]models.GroupInvitationView, error) {
	ids := make([]string, 0, len(invs)*2)
	rooms := map[string]*string{}
	for _, inv := range invs {
		ids = append(ids, inv.InviterID, inv.InviteeID)
		if _, seen := rooms[inv.RoomID]; seen {
			continue
		}
		room, err := repos.Rooms.GetRoom(ctx, inv.RoomID)
		if err != nil {
			return nil, fmt.Errorf("invitation room %s: %w", inv.RoomID, err)
		}
		rooms[inv.RoomID] = room.Name
	}
	users, err := repos.Directory.BulkUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.GroupInvitationView, 0, len(invs))
	for _, inv := range invs {
		views = append(views, models.GroupInvitationView{
			ID:        inv.ID,
			Kind:      "group",
			RoomID:    inv.RoomID,
			RoomName:  rooms[inv.RoomID],
			Inviter:   userOrStub(users, inv.InviterID),
			Invitee:   userOrStub(users, inv.InviteeID),
			Status:    inv.Status,
			CreatedAt: inv.CreatedAt,
			UpdatedAt: inv.UpdatedAt,
		})
	}
	return views, nil
}

func userOrStub(users map[string]models.User, id string) models.UserSummary {
	if u, ok := users[id]; ok {
		return u.Summary()
	}
	return models.UserSummary{ID: id}
}
