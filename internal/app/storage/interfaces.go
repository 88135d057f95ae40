package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/notification"
	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/domain/session"
)

// Sentinel errors shared by all store implementations. Services map these
// onto the outward error taxonomy.
var (
	ErrNotFound       = errors.New("storage: not found")
	ErrDuplicate      = errors.New("storage: duplicate")
	ErrStatusConflict = errors.New("storage: status conflict")
)

// ProfileStore persists identity profiles. Reads go through the
// privileged data path, never the actor's own row-level view.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfile(ctx context.Context, id string) (profile.Profile, error)
	ListProfilesWithPendingApplications(ctx context.Context) ([]profile.Profile, error)
}

// AssetStore persists contributor submissions.
type AssetStore interface {
	CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error)
	GetAsset(ctx context.Context, id string) (asset.Asset, error)
	ListAssetsByStatus(ctx context.Context, status asset.Status) ([]asset.Asset, error)
	ListAssetsByContributor(ctx context.Context, contributorID string) ([]asset.Asset, error)

	// TransitionAssetStatus applies a single conditional update: the row is
	// mutated only while its status still equals from. When the row exists
	// but the condition no longer holds, the current asset is returned
	// alongside ErrStatusConflict so callers can name the actual state.
	TransitionAssetStatus(ctx context.Context, id string, from, to asset.Status, reason *string, at time.Time) (asset.Asset, error)
}

// NotificationStore persists append-only notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

// PlanStore persists subscription plans and discount windows.
type PlanStore interface {
	CreatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error)
	UpdatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error)
	GetPlan(ctx context.Context, id string) (plan.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]plan.Plan, error)

	CreateDiscountWindow(ctx context.Context, w plan.DiscountWindow) (plan.DiscountWindow, error)
	ListDiscountWindows(ctx context.Context, planID string) ([]plan.DiscountWindow, error)
}

// SubscriptionStore persists user subscriptions.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, s plan.Subscription) (plan.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID string) (plan.Subscription, error)
	CancelSubscription(ctx context.Context, id string, at time.Time) error
}

// SessionStore persists revocable auth sessions keyed by token hash.
type SessionStore interface {
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error)
}
