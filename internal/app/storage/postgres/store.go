// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/notification"
	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/domain/session"
	"github.com/pixelhaven/marketplace/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.PlanStore = (*Store)(nil)
var _ storage.SubscriptionStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db), nil
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sqlx.DB { return s.db }

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	return err
}

// --- ProfileStore -----------------------------------------------------------

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, role, contributor_tier, application_date, application_message, portfolio_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Role, p.ContributorTier, p.ApplicationDate, p.ApplicationMessage, p.PortfolioURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, mapError(err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET role = $2, contributor_tier = $3, application_date = $4,
		    application_message = $5, portfolio_url = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Role, p.ContributorTier, p.ApplicationDate, p.ApplicationMessage, p.PortfolioURL, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	var p profile.Profile
	err := s.db.GetContext(ctx, &p, `
		SELECT id, role, contributor_tier, application_date, application_message, portfolio_url, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, id)
	if err != nil {
		return profile.Profile{}, mapError(err)
	}
	p.Role = profile.ParseRole(string(p.Role))
	return p, nil
}

func (s *Store) ListProfilesWithPendingApplications(ctx context.Context) ([]profile.Profile, error) {
	profiles := []profile.Profile{}
	err := s.db.SelectContext(ctx, &profiles, `
		SELECT id, role, contributor_tier, application_date, application_message, portfolio_url, created_at, updated_at
		FROM profiles
		WHERE role = 'user' AND application_date IS NOT NULL
		ORDER BY application_date
	`)
	if err != nil {
		return nil, mapError(err)
	}
	return profiles, nil
}

// --- AssetStore -------------------------------------------------------------

func (s *Store) CreateAsset(ctx context.Context, a asset.Asset) (asset.Asset, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = asset.StatusPending
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, contributor_id, title, kind, status, rejected_reason, storage_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.ContributorID, a.Title, a.Kind, a.Status, a.RejectedReason, a.StoragePath, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return asset.Asset{}, mapError(err)
	}
	return a, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, error) {
	var a asset.Asset
	err := s.db.GetContext(ctx, &a, `
		SELECT id, contributor_id, title, kind, status, rejected_reason, storage_path, created_at, updated_at
		FROM assets
		WHERE id = $1
	`, id)
	if err != nil {
		return asset.Asset{}, mapError(err)
	}
	return a, nil
}

func (s *Store) ListAssetsByStatus(ctx context.Context, status asset.Status) ([]asset.Asset, error) {
	assets := []asset.Asset{}
	err := s.db.SelectContext(ctx, &assets, `
		SELECT id, contributor_id, title, kind, status, rejected_reason, storage_path, created_at, updated_at
		FROM assets
		WHERE status = $1
		ORDER BY created_at
	`, status)
	if err != nil {
		return nil, mapError(err)
	}
	return assets, nil
}

func (s *Store) ListAssetsByContributor(ctx context.Context, contributorID string) ([]asset.Asset, error) {
	assets := []asset.Asset{}
	err := s.db.SelectContext(ctx, &assets, `
		SELECT id, contributor_id, title, kind, status, rejected_reason, storage_path, created_at, updated_at
		FROM assets
		WHERE contributor_id = $1
		ORDER BY created_at
	`, contributorID)
	if err != nil {
		return nil, mapError(err)
	}
	return assets, nil
}

// TransitionAssetStatus performs the moderation transition as a single
// conditional update so two concurrent moderators cannot both pass the
// pending check.
func (s *Store) TransitionAssetStatus(ctx context.Context, id string, from, to asset.Status, reason *string, at time.Time) (asset.Asset, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET status = $3, rejected_reason = $4, updated_at = $5
		WHERE id = $1 AND status = $2
	`, id, from, to, reason, at.UTC())
	if err != nil {
		return asset.Asset{}, mapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return asset.Asset{}, err
	}
	if rows == 0 {
		// Distinguish a missing row from a lost race or terminal state.
		current, err := s.GetAsset(ctx, id)
		if err != nil {
			return asset.Asset{}, err
		}
		return current, storage.ErrStatusConflict
	}
	return s.GetAsset(ctx, id)
}

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link, n.Read, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, mapError(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	notifications := []notification.Notification{}
	err := s.db.SelectContext(ctx, &notifications, `
		SELECT id, user_id, type, title, message, link, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	return notifications, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- PlanStore --------------------------------------------------------------

func (s *Store) CreatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, price_cents, interval, download_limit, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Name, p.PriceCents, p.Interval, p.DownloadLimit, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return plan.Plan{}, mapError(err)
	}
	return p, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans
		SET name = $2, price_cents = $3, interval = $4, download_limit = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Name, p.PriceCents, p.Interval, p.DownloadLimit, p.Active, p.UpdatedAt)
	if err != nil {
		return plan.Plan{}, mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return plan.Plan{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (plan.Plan, error) {
	var p plan.Plan
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, price_cents, interval, download_limit, active, created_at, updated_at
		FROM plans
		WHERE id = $1
	`, id)
	if err != nil {
		return plan.Plan{}, mapError(err)
	}
	return p, nil
}

func (s *Store) ListPlans(ctx context.Context, activeOnly bool) ([]plan.Plan, error) {
	query := `
		SELECT id, name, price_cents, interval, download_limit, active, created_at, updated_at
		FROM plans
	`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY price_cents`

	plans := []plan.Plan{}
	if err := s.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, mapError(err)
	}
	return plans, nil
}

func (s *Store) CreateDiscountWindow(ctx context.Context, w plan.DiscountWindow) (plan.DiscountWindow, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_windows (id, plan_id, percent, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)
	`, w.ID, w.PlanID, w.Percent, w.StartsAt, w.EndsAt)
	if err != nil {
		return plan.DiscountWindow{}, mapError(err)
	}
	return w, nil
}

func (s *Store) ListDiscountWindows(ctx context.Context, planID string) ([]plan.DiscountWindow, error) {
	windows := []plan.DiscountWindow{}
	err := s.db.SelectContext(ctx, &windows, `
		SELECT id, plan_id, percent, starts_at, ends_at
		FROM discount_windows
		WHERE plan_id = $1
		ORDER BY starts_at
	`, planID)
	if err != nil {
		return nil, mapError(err)
	}
	return windows, nil
}

// --- SubscriptionStore ------------------------------------------------------

func (s *Store) CreateSubscription(ctx context.Context, sub plan.Subscription) (plan.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.Active = true
	sub.StartedAt = time.Now().UTC()

	// Partial unique index on (user_id) WHERE active enforces one active
	// subscription per user.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, price_paid_cents, active, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sub.ID, sub.UserID, sub.PlanID, sub.PricePaidCents, sub.Active, sub.StartedAt)
	if err != nil {
		return plan.Subscription{}, mapError(err)
	}
	return sub, nil
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID string) (plan.Subscription, error) {
	var sub plan.Subscription
	err := s.db.GetContext(ctx, &sub, `
		SELECT id, user_id, plan_id, price_paid_cents, active, started_at, canceled_at
		FROM subscriptions
		WHERE user_id = $1 AND active = TRUE
	`, userID)
	if err != nil {
		return plan.Subscription{}, mapError(err)
	}
	return sub, nil
}

func (s *Store) CancelSubscription(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET active = FALSE, canceled_at = $2 WHERE id = $1 AND active = TRUE
	`, id, at.UTC())
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt, sess.LastSeenAt)
	if err != nil {
		return session.Session{}, mapError(err)
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error) {
	var sess session.Session
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, user_id, token_hash, expires_at, created_at, last_seen_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return session.Session{}, mapError(err)
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = $2 WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, mapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
