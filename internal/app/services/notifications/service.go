// Package notifications exposes a user's notification feed.
package notifications

import (
	"context"
	"errors"

	"github.com/pixelhaven/marketplace/internal/app/domain/notification"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// Service reads and marks notifications. Creation happens through the
// effects dispatcher, never here.
type Service struct {
	store storage.NotificationStore
	log   *logger.Logger
}

// New constructs the notifications service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// List returns the acting user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]notification.Notification, error) {
	if userID == "" {
		return nil, svcerr.Unauthenticated("")
	}
	list, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, svcerr.Dependency("list notifications", err)
	}
	return list, nil
}

// MarkRead marks one of the acting user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if userID == "" {
		return svcerr.Unauthenticated("")
	}
	if id == "" {
		return svcerr.Validation("notification id is required")
	}
	if err := s.store.MarkNotificationRead(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerr.NotFound("notification", id)
		}
		return svcerr.Dependency("mark notification read", err)
	}
	return nil
}
