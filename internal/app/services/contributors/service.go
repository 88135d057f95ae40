// Package contributors implements the contributor application workflow
// and its admin-side approval counterpart.
package contributors

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/auth"
	"github.com/pixelhaven/marketplace/internal/app/domain/notification"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/services/effects"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// ErrAlreadyPending distinguishes a re-submission while an application
// awaits review; handlers surface it with a pending flag.
var ErrAlreadyPending = errors.New("application already submitted")

// Service manages contributor applications.
type Service struct {
	guard         *auth.Guard
	profiles      storage.ProfileStore
	notifications storage.NotificationStore
	effects       *effects.Dispatcher
	log           *logger.Logger
}

// New constructs the contributors service.
func New(guard *auth.Guard, profiles storage.ProfileStore, notifications storage.NotificationStore, dispatcher *effects.Dispatcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("contributors")
	}
	return &Service{
		guard:         guard,
		profiles:      profiles,
		notifications: notifications,
		effects:       dispatcher,
		log:           log,
	}
}

// Apply submits a contributor application for the acting identity. A
// missing profile is created with the plain user role. Approved roles
// cannot reapply; a pending application cannot be resubmitted.
func (s *Service) Apply(ctx context.Context, userID, message, portfolioURL string) (profile.Profile, error) {
	if userID == "" {
		return profile.Profile{}, svcerr.Unauthenticated("")
	}
	message = strings.TrimSpace(message)
	portfolioURL = strings.TrimSpace(portfolioURL)
	now := time.Now().UTC()

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, svcerr.Dependency("load profile", err)
		}
		created, err := s.profiles.CreateProfile(ctx, profile.Profile{
			ID:                 userID,
			Role:               profile.RoleUser,
			ApplicationDate:    &now,
			ApplicationMessage: message,
			PortfolioURL:       portfolioURL,
		})
		if err != nil {
			return profile.Profile{}, svcerr.Dependency("create profile", err)
		}
		s.log.WithField("user_id", userID).Info("contributor application created")
		return created, nil
	}

	switch p.Role {
	case profile.RoleContributor, profile.RoleAdmin:
		return profile.Profile{}, svcerr.Validation("already approved as a contributor")
	}
	if p.HasPendingApplication() {
		return profile.Profile{}, ErrAlreadyPending
	}

	p.ApplicationDate = &now
	p.ApplicationMessage = message
	p.PortfolioURL = portfolioURL
	updated, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return profile.Profile{}, svcerr.Dependency("update profile", err)
	}
	s.log.WithField("user_id", userID).Info("contributor application submitted")
	return updated, nil
}

// ListPending returns profiles with undecided applications, oldest
// first. Admin-gated.
func (s *Service) ListPending(ctx context.Context, actorID string) ([]profile.Profile, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	list, err := s.profiles.ListProfilesWithPendingApplications(ctx)
	if err != nil {
		return nil, svcerr.Dependency("list applications", err)
	}
	return list, nil
}

// ApproveApplication promotes an applicant to contributor at the bronze
// tier. Admin-gated.
func (s *Service) ApproveApplication(ctx context.Context, actorID, userID string) (profile.Profile, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return profile.Profile{}, err
	}

	p, err := s.loadApplicant(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}

	tier := profile.TierBronze
	p.Role = profile.RoleContributor
	p.ContributorTier = &tier
	updated, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return profile.Profile{}, svcerr.Dependency("update profile", err)
	}

	s.log.WithField("user_id", userID).WithField("actor", actorID).Info("contributor application approved")
	s.notify(userID, actorID, notification.TypeApplicationApproved,
		"Contributor application approved",
		"You can now submit assets to the marketplace.")
	return updated, nil
}

// RejectApplication turns an applicant back into a plain user and
// clears the application date so they may reapply. Admin-gated.
func (s *Service) RejectApplication(ctx context.Context, actorID, userID string) (profile.Profile, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return profile.Profile{}, err
	}

	p, err := s.loadApplicant(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}

	p.Role = profile.RoleUser
	p.ApplicationDate = nil
	updated, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return profile.Profile{}, svcerr.Dependency("update profile", err)
	}

	s.log.WithField("user_id", userID).WithField("actor", actorID).Info("contributor application rejected")
	s.notify(userID, actorID, notification.TypeApplicationRejected,
		"Contributor application rejected",
		"You may update your portfolio and apply again.")
	return updated, nil
}

// SetTier changes a contributor's tier. Admin-gated.
func (s *Service) SetTier(ctx context.Context, actorID, userID string, tier profile.Tier) (profile.Profile, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return profile.Profile{}, err
	}
	if !profile.ValidTier(tier) {
		return profile.Profile{}, svcerr.Validation("unknown contributor tier " + string(tier))
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, svcerr.NotFound("profile", userID)
		}
		return profile.Profile{}, svcerr.Dependency("load profile", err)
	}
	if p.Role != profile.RoleContributor {
		return profile.Profile{}, svcerr.InvalidState("only contributors have a tier", string(p.Role))
	}

	p.ContributorTier = &tier
	updated, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return profile.Profile{}, svcerr.Dependency("update profile", err)
	}
	return updated, nil
}

func (s *Service) loadApplicant(ctx context.Context, userID string) (profile.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return profile.Profile{}, svcerr.Validation("user id is required")
	}
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, svcerr.NotFound("profile", userID)
		}
		return profile.Profile{}, svcerr.Dependency("load profile", err)
	}
	if !p.HasPendingApplication() {
		return profile.Profile{}, svcerr.InvalidState("no pending application for this profile", string(p.Role))
	}
	return p, nil
}

func (s *Service) notify(userID, actorID string, typ notification.Type, title, message string) {
	if s.effects == nil {
		return
	}
	n := notification.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Link:    "/account/contributor",
	}
	s.effects.Enqueue(effects.Task{
		Name:    "notification." + string(typ),
		Actor:   actorID,
		Subject: userID,
		Run: func(ctx context.Context) error {
			_, err := s.notifications.CreateNotification(ctx, n)
			return err
		},
	})
}
