package services

import (
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-core/internal/mocks"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func user(id, name string) models.User {
	return models.User{ID: id, Name: name, PublicKey: strPtr("pk-" + id)}
}

func users(list ...models.User) map[string]models.User {
	out := make(map[string]models.User, len(list))
	for _, u := range list {
		out[u.ID] = u
	}
	return out
}

func groupRoom(id, name string) models.Room {
	return models.Room{ID: id, Type: models.RoomGroup, Name: strPtr(name), CreatedAt: fixedNow, UpdatedAt: fixedNow}
}

func directRoom(id, a, b string) models.Room {
	key := models.DirectKey(a, b)
	return models.Room{ID: id, Type: models.RoomDirect, CreatedBy: strPtr(a), DirectKey: &key, CreatedAt: fixedNow, UpdatedAt: fixedNow}
}

func members(roomID string, ids ...string) []models.Member {
	out := make([]models.Member, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.Member{
			ID:       "m-" + id,
			RoomID:   roomID,
			UserID:   id,
			Role:     models.RoleMember,
			JoinedAt: fixedNow.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

// expectViews lets rendering helpers resolve profiles, assets, replies and room summaries.
func expectViews(st *mocks.Store, dir map[string]models.User) {
	st.Directory.On("BulkUsers", mock.Anything, mock.Anything).Return(dir, nil).Maybe()
	st.Directory.On("BulkAssets", mock.Anything, mock.Anything).Return(map[string]models.Asset{}, nil).Maybe()
	st.Messages.On("GetByIDs", mock.Anything, mock.Anything).Return([]models.Message{}, nil).Maybe()
	st.Messages.On("Latest", mock.Anything, mock.Anything).Return(nil, repositories.ErrMessageNotFound).Maybe()
	st.Messages.On("UnreadCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, nil).Maybe()
}
