package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"messenger-core/internal/apperr"
	"messenger-core/internal/repositories"
)

// Membership answers whether a user belongs to a room. Lookup failures deny access.
type Membership struct {
	store repositories.Store
	log   logrus.FieldLogger
}

// NewMembership builds a Membership over store.
func NewMembership(store repositories.Store, log logrus.FieldLogger) *Membership {
	return &Membership{store: store, log: log}
}

// IsMember reports membership, returning false on any lookup error.
func (m *Membership) IsMember(ctx context.Context, roomID, userID string) bool {
	return isMember(ctx, m.store.Repos(), m.log, roomID, userID)
}

func isMember(ctx context.Context, repos repositories.Repos, log logrus.FieldLogger, roomID, userID string) bool {
	ok, err := repos.Rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).Warn("membership lookup failed")
		return false
	}
	return ok
}

func requireMember(ctx context.Context, repos repositories.Repos, log logrus.FieldLogger, roomID, userID string) error {
	if !isMember(ctx, repos, log, roomID, userID) {
		return apperr.Forbidden("not a member of this room")
	}
	return nil
}
