// Package auth implements the role-gated authorization guard.
package auth

import (
	"context"
	"errors"

	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// Guard resolves an acting identity's role through the privileged
// profile store and enforces role requirements. Every admin-gated
// operation goes through the same resolution path so the API and page
// variants cannot diverge.
type Guard struct {
	profiles storage.ProfileStore
	log      *logger.Logger
}

// NewGuard constructs a Guard over the privileged profile store.
func NewGuard(profiles storage.ProfileStore, log *logger.Logger) *Guard {
	if log == nil {
		log = logger.NewDefault("auth-guard")
	}
	return &Guard{profiles: profiles, log: log}
}

// ResolveRole loads the profile role for userID. An empty userID means
// no session was established and fails Unauthenticated before any row
// is read. A missing profile resolves to the plain user role.
func (g *Guard) ResolveRole(ctx context.Context, userID string) (profile.Role, error) {
	if userID == "" {
		return "", svcerr.Unauthenticated("")
	}

	p, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.RoleUser, nil
		}
		return "", svcerr.Dependency("resolve role", err)
	}
	return profile.ParseRole(string(p.Role)), nil
}

// RequireAdmin fails Unauthenticated when no identity is present and
// Forbidden when the resolved role is not admin.
func (g *Guard) RequireAdmin(ctx context.Context, userID string) error {
	role, err := g.ResolveRole(ctx, userID)
	if err != nil {
		return err
	}
	if role != profile.RoleAdmin {
		g.log.WithField("user_id", userID).WithField("role", string(role)).Warn("admin access denied")
		return svcerr.Forbidden("")
	}
	return nil
}

// RequireContributor fails unless the resolved role is contributor or
// admin.
func (g *Guard) RequireContributor(ctx context.Context, userID string) error {
	role, err := g.ResolveRole(ctx, userID)
	if err != nil {
		return err
	}
	if role != profile.RoleContributor && role != profile.RoleAdmin {
		return svcerr.Forbidden("contributor role required")
	}
	return nil
}
