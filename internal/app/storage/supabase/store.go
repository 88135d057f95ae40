// Package supabase implements the core storage interfaces on the
// privileged Supabase REST path.
package supabase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/domain/notification"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	"github.com/pixelhaven/marketplace/internal/database"
)

// Store implements ProfileStore, AssetStore and NotificationStore on top
// of the Supabase REST API using the service-role key.
type Store struct {
	client *database.Client
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)

// New creates a Store over the given privileged client.
func New(client *database.Client) *Store {
	return &Store{client: client}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if database.IsNotFound(err) {
		return storage.ErrNotFound
	}
	if database.IsConflict(err) {
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

	var rows []profile.Profile
	if err := s.client.Insert(ctx, "profiles", p, &rows); err != nil {
		return profile.Profile{}, mapError(err)
	}
	if len(rows) == 0 {
		return p, nil
	}
	return rows[0], nil
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	p.UpdatedAt = time.Now().UTC()

	var rows []profile.Profile
	err := s.client.Update(ctx, "profiles", database.Eq("id", p.ID), p, &rows)
	if err != nil {
		return profile.Profile{}, mapError(err)
	}
	if len(rows) == 0 {
		return profile.Profile{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	var rows []profile.Profile
	if err := s.client.Select(ctx, "profiles", database.Eq("id", id), &rows); err != nil {
		return profile.Profile{}, mapError(err)
	}
	if len(rows) == 0 {
		return profile.Profile{}, storage.ErrNotFound
	}
	p := rows[0]
	p.Role = profile.ParseRole(string(p.Role))
	return p, nil
}

func (s *Store) ListProfilesWithPendingApplications(ctx context.Context) ([]profile.Profile, error) {
	query := database.And(
		database.Eq("role", profile.RoleUser),
		database.NotNull("application_date"),
		database.Order("application_date", "asc"),
	)
	rows := []profile.Profile{}
	if err := s.client.Select(ctx, "profiles", query, &rows); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
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

	var rows []asset.Asset
	if err := s.client.Insert(ctx, "assets", a, &rows); err != nil {
		return asset.Asset{}, mapError(err)
	}
	if len(rows) == 0 {
		return a, nil
	}
	return rows[0], nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, error) {
	var rows []asset.Asset
	if err := s.client.Select(ctx, "assets", database.Eq("id", id), &rows); err != nil {
		return asset.Asset{}, mapError(err)
	}
	if len(rows) == 0 {
		return asset.Asset{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) ListAssetsByStatus(ctx context.Context, status asset.Status) ([]asset.Asset, error) {
	query := database.And(database.Eq("status", status), database.Order("created_at", "asc"))
	rows := []asset.Asset{}
	if err := s.client.Select(ctx, "assets", query, &rows); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (s *Store) ListAssetsByContributor(ctx context.Context, contributorID string) ([]asset.Asset, error) {
	query := database.And(database.Eq("contributor_id", contributorID), database.Order("created_at", "asc"))
	rows := []asset.Asset{}
	if err := s.client.Select(ctx, "assets", query, &rows); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// TransitionAssetStatus patches only rows whose status still equals from,
// so PostgREST performs the compare-and-set in a single statement. An
// empty representation means the row is gone or already decided.
func (s *Store) TransitionAssetStatus(ctx context.Context, id string, from, to asset.Status, reason *string, at time.Time) (asset.Asset, error) {
	patch := map[string]interface{}{
		"status":          to,
		"rejected_reason": reason,
		"updated_at":      at.UTC().Format(time.RFC3339Nano),
	}
	query := database.And(database.Eq("id", id), database.Eq("status", from))

	var rows []asset.Asset
	if err := s.client.Update(ctx, "assets", query, patch, &rows); err != nil {
		return asset.Asset{}, mapError(err)
	}
	if len(rows) == 0 {
		current, err := s.GetAsset(ctx, id)
		if err != nil {
			return asset.Asset{}, err
		}
		return current, storage.ErrStatusConflict
	}
	return rows[0], nil
}

// --- NotificationStore ------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	var rows []notification.Notification
	if err := s.client.Insert(ctx, "notifications", n, &rows); err != nil {
		return notification.Notification{}, mapError(err)
	}
	if len(rows) == 0 {
		return n, nil
	}
	return rows[0], nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	query := database.And(database.Eq("user_id", userID), database.Order("created_at", "desc"))
	rows := []notification.Notification{}
	if err := s.client.Select(ctx, "notifications", query, &rows); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	query := database.And(database.Eq("id", id), database.Eq("user_id", userID))
	var rows []notification.Notification
	err := s.client.Update(ctx, "notifications", query, map[string]interface{}{"read": true}, &rows)
	if err != nil {
		return mapError(err)
	}
	if len(rows) == 0 {
		return storage.ErrNotFound
	}
	return nil
}
