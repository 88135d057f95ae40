// Package subscriptions manages plans, discount windows and purchases.
package subscriptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/auth"
	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// PricedPlan is a plan annotated with its current effective price.
type PricedPlan struct {
	plan.Plan
	EffectivePriceCents int64 `json:"effective_price_cents"`
}

// Service manages subscription plans and purchases.
type Service struct {
	guard         *auth.Guard
	plans         storage.PlanStore
	subscriptions storage.SubscriptionStore
	log           *logger.Logger
	now           func() time.Time
}

// New constructs the subscriptions service.
func New(guard *auth.Guard, plans storage.PlanStore, subscriptions storage.SubscriptionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("subscriptions")
	}
	return &Service{
		guard:         guard,
		plans:         plans,
		subscriptions: subscriptions,
		log:           log,
		now:           time.Now,
	}
}

// CreatePlan registers a new plan. Admin-gated.
func (s *Service) CreatePlan(ctx context.Context, actorID, name string, priceCents int64, interval plan.Interval, downloadLimit int) (plan.Plan, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return plan.Plan{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return plan.Plan{}, svcerr.Validation("name is required")
	}
	if priceCents < 0 {
		return plan.Plan{}, svcerr.Validation("price_cents must not be negative")
	}
	if !plan.ValidInterval(interval) {
		return plan.Plan{}, svcerr.Validation("unsupported interval " + string(interval))
	}

	p, err := s.plans.CreatePlan(ctx, plan.Plan{
		Name:          name,
		PriceCents:    priceCents,
		Interval:      interval,
		DownloadLimit: downloadLimit,
		Active:        true,
	})
	if err != nil {
		return plan.Plan{}, svcerr.Dependency("create plan", err)
	}
	s.log.WithField("plan_id", p.ID).WithField("actor", actorID).Info("plan created")
	return p, nil
}

// AddDiscountWindow opens a time-bounded discount on a plan. Admin-gated.
func (s *Service) AddDiscountWindow(ctx context.Context, actorID, planID string, percent int, startsAt, endsAt time.Time) (plan.DiscountWindow, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return plan.DiscountWindow{}, err
	}
	if percent <= 0 || percent > 100 {
		return plan.DiscountWindow{}, svcerr.Validation("percent must be between 1 and 100")
	}
	if !endsAt.After(startsAt) {
		return plan.DiscountWindow{}, svcerr.Validation("ends_at must be after starts_at")
	}

	w, err := s.plans.CreateDiscountWindow(ctx, plan.DiscountWindow{
		PlanID:   planID,
		Percent:  percent,
		StartsAt: startsAt.UTC(),
		EndsAt:   endsAt.UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return plan.DiscountWindow{}, svcerr.NotFound("plan", planID)
		}
		return plan.DiscountWindow{}, svcerr.Dependency("create discount window", err)
	}
	return w, nil
}

// ListPlans returns active plans with their current effective price.
func (s *Service) ListPlans(ctx context.Context) ([]PricedPlan, error) {
	plans, err := s.plans.ListPlans(ctx, true)
	if err != nil {
		return nil, svcerr.Dependency("list plans", err)
	}

	now := s.now()
	out := make([]PricedPlan, 0, len(plans))
	for _, p := range plans {
		windows, err := s.plans.ListDiscountWindows(ctx, p.ID)
		if err != nil {
			return nil, svcerr.Dependency("list discount windows", err)
		}
		out = append(out, PricedPlan{
			Plan:                p,
			EffectivePriceCents: plan.EffectivePrice(p, windows, now),
		})
	}
	return out, nil
}

// Subscribe purchases a plan for userID at the current effective price.
// One active subscription per user.
func (s *Service) Subscribe(ctx context.Context, userID, planID string) (plan.Subscription, error) {
	if userID == "" {
		return plan.Subscription{}, svcerr.Unauthenticated("")
	}

	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return plan.Subscription{}, svcerr.NotFound("plan", planID)
		}
		return plan.Subscription{}, svcerr.Dependency("load plan", err)
	}
	if !p.Active {
		return plan.Subscription{}, svcerr.InvalidState("plan is not open for purchase", "inactive")
	}

	windows, err := s.plans.ListDiscountWindows(ctx, p.ID)
	if err != nil {
		return plan.Subscription{}, svcerr.Dependency("list discount windows", err)
	}

	sub, err := s.subscriptions.CreateSubscription(ctx, plan.Subscription{
		UserID:         userID,
		PlanID:         p.ID,
		PricePaidCents: plan.EffectivePrice(p, windows, s.now()),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return plan.Subscription{}, svcerr.Validation("an active subscription already exists")
		}
		return plan.Subscription{}, svcerr.Dependency("create subscription", err)
	}

	s.log.WithField("user_id", userID).WithField("plan_id", p.ID).Info("subscription created")
	return sub, nil
}

// Cancel deactivates the acting user's subscription.
func (s *Service) Cancel(ctx context.Context, userID string) error {
	if userID == "" {
		return svcerr.Unauthenticated("")
	}
	sub, err := s.subscriptions.GetActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerr.NotFound("subscription", userID)
		}
		return svcerr.Dependency("load subscription", err)
	}
	if err := s.subscriptions.CancelSubscription(ctx, sub.ID, s.now()); err != nil {
		return svcerr.Dependency("cancel subscription", err)
	}
	return nil
}
