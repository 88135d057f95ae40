// Package moderation implements the admin-gated asset moderation
// workflow: pending assets are approved or rejected exactly once.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/auth"
	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/notification"
	"github.com/pixelhaven/marketplace/internal/app/services/effects"
	"github.com/pixelhaven/marketplace/internal/app/services/mailer"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// Service applies moderation transitions and fires their side effects.
type Service struct {
	guard         *auth.Guard
	assets        storage.AssetStore
	notifications storage.NotificationStore
	mail          mailer.Mailer
	effects       *effects.Dispatcher
	log           *logger.Logger
}

// New constructs the moderation service.
func New(guard *auth.Guard, assets storage.AssetStore, notifications storage.NotificationStore, mail mailer.Mailer, dispatcher *effects.Dispatcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("moderation")
	}
	if mail == nil {
		mail = mailer.Noop{}
	}
	return &Service{
		guard:         guard,
		assets:        assets,
		notifications: notifications,
		mail:          mail,
		effects:       dispatcher,
		log:           log,
	}
}

// Approve transitions a pending asset to approved and clears any prior
// rejection reason. The mutation is a single conditional update; the
// notification and email that follow are advisory and never fail or
// roll back the approval.
func (s *Service) Approve(ctx context.Context, actorID, assetID string) (asset.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return asset.Asset{}, svcerr.Validation("asset id is required")
	}

	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return asset.Asset{}, err
	}

	a, err := s.transition(ctx, assetID, asset.StatusApproved, nil)
	if err != nil {
		return asset.Asset{}, err
	}

	s.log.WithField("asset_id", a.ID).WithField("actor", actorID).Info("asset approved")
	s.notifyDecision(a, actorID, notification.TypeAssetApproved,
		"Your asset was approved",
		fmt.Sprintf("%q is now live in the marketplace.", a.Title))
	return a, nil
}

// Reject transitions a pending asset to rejected, storing the trimmed
// reason or null.
func (s *Service) Reject(ctx context.Context, actorID, assetID, reason string) (asset.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return asset.Asset{}, svcerr.Validation("asset id is required")
	}

	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return asset.Asset{}, err
	}

	var reasonPtr *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		reasonPtr = &trimmed
	}

	a, err := s.transition(ctx, assetID, asset.StatusRejected, reasonPtr)
	if err != nil {
		return asset.Asset{}, err
	}

	s.log.WithField("asset_id", a.ID).WithField("actor", actorID).Info("asset rejected")

	message := fmt.Sprintf("%q did not pass review.", a.Title)
	if reasonPtr != nil {
		message = fmt.Sprintf("%q did not pass review: %s", a.Title, *reasonPtr)
	}
	s.notifyDecision(a, actorID, notification.TypeAssetRejected, "Your asset was rejected", message)
	return a, nil
}

func (s *Service) transition(ctx context.Context, assetID string, to asset.Status, reason *string) (asset.Asset, error) {
	a, err := s.assets.TransitionAssetStatus(ctx, assetID, asset.StatusPending, to, reason, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return asset.Asset{}, svcerr.NotFound("asset", assetID)
		case errors.Is(err, storage.ErrStatusConflict):
			return asset.Asset{}, svcerr.InvalidState(
				fmt.Sprintf("asset is %s; only pending assets can be moderated", a.Status),
				string(a.Status))
		default:
			return asset.Asset{}, svcerr.Dependency("update asset", err)
		}
	}
	return a, nil
}

// notifyDecision enqueues the notification insert and the email send as
// separate best-effort tasks.
func (s *Service) notifyDecision(a asset.Asset, actorID string, typ notification.Type, title, message string) {
	if a.ContributorID == "" || s.effects == nil {
		return
	}

	n := notification.Notification{
		UserID:  a.ContributorID,
		Type:    typ,
		Title:   title,
		Message: message,
		Link:    "/assets/" + a.ID,
	}
	s.effects.Enqueue(effects.Task{
		Name:    "notification." + string(typ),
		Actor:   actorID,
		Subject: a.ID,
		Run: func(ctx context.Context) error {
			_, err := s.notifications.CreateNotification(ctx, n)
			return err
		},
	})

	msg := mailer.Message{
		To:       a.ContributorID,
		Subject:  title,
		Template: string(typ),
		Data: map[string]interface{}{
			"asset_id":    a.ID,
			"asset_title": a.Title,
			"message":     message,
		},
	}
	s.effects.Enqueue(effects.Task{
		Name:    "email." + string(typ),
		Actor:   actorID,
		Subject: a.ID,
		Run: func(ctx context.Context) error {
			return s.mail.Send(ctx, msg)
		},
	})
}
