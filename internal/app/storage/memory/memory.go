package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/notification"
	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/domain/session"
	"github.com/pixelhaven/marketplace/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is
// safe for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu              sync.RWMutex
	nextID          int64
	profiles        map[string]profile.Profile
	assets          map[string]asset.Asset
	notifications   map[string][]notification.Notification
	plans           map[string]plan.Plan
	discountWindows map[string][]plan.DiscountWindow
	subscriptions   map[string]plan.Subscription
	sessions        map[string]session.Session
	sessionsByHash  map[string]string
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.PlanStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		profiles:        make(map[string]profile.Profile),
		assets:          make(map[string]asset.Asset),
		notifications:   make(map[string][]notification.Notification),
		plans:           make(map[string]plan.Plan),
		discountWindows: make(map[string][]plan.DiscountWindow),
		subscriptions:   make(map[string]plan.Subscription),
		sessions:        make(map[string]session.Session),
		sessionsByHash:  make(map[string]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// ProfileStore implementation ------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.profiles[p.ID]; exists {
		return profile.Profile{}, storage.ErrDuplicate
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[p.ID]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProfilesWithPendingApplications(_ context.Context) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]profile.Profile, 0)
	for _, p := range s.profiles {
		if p.HasPendingApplication() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ApplicationDate.Before(*out[j].ApplicationDate)
	})
	return out, nil
}

// AssetStore implementation --------------------------------------------------

func (s *Store) CreateAsset(_ context.Context, a asset.Asset) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.nextIDLocked()
	} else if _, exists := s.assets[a.ID]; exists {
		return asset.Asset{}, storage.ErrDuplicate
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = asset.StatusPending
	}
	s.assets[a.ID] = a
	return a, nil
}

func (s *Store) GetAsset(_ context.Context, id string) (asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAssetsByStatus(_ context.Context, status asset.Status) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]asset.Asset, 0)
	for _, a := range s.assets {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListAssetsByContributor(_ context.Context, contributorID string) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]asset.Asset, 0)
	for _, a := range s.assets {
		if a.ContributorID == contributorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) TransitionAssetStatus(_ context.Context, id string, from, to asset.Status, reason *string, at time.Time) (asset.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[id]
	if !ok {
		return asset.Asset{}, storage.ErrNotFound
	}
	if a.Status != from {
		return a, storage.ErrStatusConflict
	}
	a.Status = to
	a.RejectedReason = reason
	a.UpdatedAt = at.UTC()
	s.assets[id] = a
	return a, nil
}

// NotificationStore implementation -------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	}
	n.CreatedAt = time.Now().UTC()
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.notifications[userID]
	out := make([]notification.Notification, len(list))
	copy(out, list)
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return nil
		}
	}
	return storage.ErrNotFound
}

// PlanStore implementation ---------------------------------------------------

func (s *Store) CreatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.plans[p.ID]; exists {
		return plan.Plan{}, storage.ErrDuplicate
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.plans[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePlan(_ context.Context, p plan.Plan) (plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.plans[p.ID]
	if !ok {
		return plan.Plan{}, storage.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.plans[p.ID] = p
	return p, nil
}

func (s *Store) GetPlan(_ context.Context, id string) (plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plans[id]
	if !ok {
		return plan.Plan{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPlans(_ context.Context, activeOnly bool) ([]plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]plan.Plan, 0)
	for _, p := range s.plans {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

func (s *Store) CreateDiscountWindow(_ context.Context, w plan.DiscountWindow) (plan.DiscountWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[w.PlanID]; !ok {
		return plan.DiscountWindow{}, storage.ErrNotFound
	}
	if w.ID == "" {
		w.ID = s.nextIDLocked()
	}
	s.discountWindows[w.PlanID] = append(s.discountWindows[w.PlanID], w)
	return w, nil
}

func (s *Store) ListDiscountWindows(_ context.Context, planID string) ([]plan.DiscountWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.discountWindows[planID]
	out := make([]plan.DiscountWindow, len(list))
	copy(out, list)
	return out, nil
}

// SubscriptionStore implementation -------------------------------------------

func (s *Store) CreateSubscription(_ context.Context, sub plan.Subscription) (plan.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscriptions {
		if existing.UserID == sub.UserID && existing.Active {
			return plan.Subscription{}, storage.ErrDuplicate
		}
	}
	if sub.ID == "" {
		sub.ID = s.nextIDLocked()
	}
	sub.Active = true
	sub.StartedAt = time.Now().UTC()
	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetActiveSubscription(_ context.Context, userID string) (plan.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.UserID == userID && sub.Active {
			return sub, nil
		}
	}
	return plan.Subscription{}, storage.ErrNotFound
}

func (s *Store) CancelSubscription(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[id]
	if !ok {
		return storage.ErrNotFound
	}
	at = at.UTC()
	sub.Active = false
	sub.CanceledAt = &at
	s.subscriptions[id] = sub
	return nil
}

// SessionStore implementation ------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now
	s.sessions[sess.ID] = sess
	s.sessionsByHash[sess.TokenHash] = sess.ID
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sessionsByHash[tokenHash]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (s *Store) TouchSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sess.LastSeenAt = at.UTC()
	s.sessions[id] = sess
	return nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.sessionsByHash, sess.TokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(before) {
			delete(s.sessions, id)
			delete(s.sessionsByHash, sess.TokenHash)
			removed++
		}
	}
	return removed, nil
}
