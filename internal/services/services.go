// Package services holds the chat domain rules: membership, messages,
// invitations, rooms, devices and folders.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"messenger-core/internal/apperr"
	"messenger-core/internal/bus"
	"messenger-core/internal/observability"
	"messenger-core/internal/repositories"
)

// Publisher is the fan-out surface services publish frames to.
type Publisher interface {
	Publish(ctx context.Context, topic bus.Topic, frame any, opts ...bus.PublishOption) error
}

var repoErrors = []struct {
	sentinel error
	kind     apperr.Kind
	message  string
}{
	{repositories.ErrRoomNotFound, apperr.KindNotFound, "room not found"},
	{repositories.ErrMessageNotFound, apperr.KindNotFound, "message not found"},
	{repositories.ErrDeviceNotFound, apperr.KindNotFound, "device not found"},
	{repositories.ErrInvitationNotFound, apperr.KindNotFound, "invitation not found"},
	{repositories.ErrFolderNotFound, apperr.KindNotFound, "folder not found"},
	{repositories.ErrFolderRoomNotFound, apperr.KindNotFound, "room is not in this folder"},
	{repositories.ErrMemberNotFound, apperr.KindNotFound, "member not found"},
	{repositories.ErrUserNotFound, apperr.KindNotFound, "user not found"},
	{repositories.ErrAssetNotFound, apperr.KindNotFound, "asset not found"},
	{repositories.ErrDuplicateFingerprint, apperr.KindConflict, "device fingerprint already registered"},
	{repositories.ErrDuplicateInvitation, apperr.KindConflict, "a pending invitation already exists"},
	{repositories.ErrAlreadyMember, apperr.KindConflict, "user is already a member"},
	{repositories.ErrFolderRoomDuplicate, apperr.KindConflict, "room is already in this folder"},
}

// translate turns repository sentinels into application errors. Errors that are
// already classified pass through; anything else becomes an internal error.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	for _, m := range repoErrors {
		if errors.Is(err, m.sentinel) {
			return apperr.Wrap(m.kind, m.message, err)
		}
	}
	return apperr.Internal("internal error", err)
}

// emitEvent publishes a domain event on the audit exchange. Failures are only logged.
func emitEvent(ctx context.Context, log logrus.FieldLogger, routingKey, name string, payload map[string]any) {
	headers := observability.BuildHeaders(observability.RequestIDFrom(ctx), "")
	err := observability.PublishEvent(ctx, routingKey, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: name,
		Payload:   payload,
	}, headers)
	if err != nil {
		log.WithError(err).WithField("event", name).Warn("domain event publish failed")
	}
}

func publishFrame(ctx context.Context, pub Publisher, log logrus.FieldLogger, topic bus.Topic, frame any, opts ...bus.PublishOption) {
	if err := pub.Publish(ctx, topic, frame, opts...); err != nil {
		log.WithError(err).WithField("topic", string(topic)).Warn("publish failed")
	}
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
