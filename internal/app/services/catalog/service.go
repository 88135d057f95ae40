// Package catalog manages asset submission and listing.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/pixelhaven/marketplace/internal/app/auth"
	"github.com/pixelhaven/marketplace/internal/app/domain/asset"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// Service manages the asset catalog around the moderation lifecycle.
type Service struct {
	guard  *auth.Guard
	assets storage.AssetStore
	log    *logger.Logger
}

// New constructs the catalog service.
func New(guard *auth.Guard, assets storage.AssetStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{guard: guard, assets: assets, log: log}
}

// Submit registers an uploaded asset for moderation. Requires the
// contributor role; every submission enters the catalog pending.
func (s *Service) Submit(ctx context.Context, contributorID, title string, kind asset.Kind, storagePath string) (asset.Asset, error) {
	if err := s.guard.RequireContributor(ctx, contributorID); err != nil {
		return asset.Asset{}, err
	}

	title = strings.TrimSpace(title)
	storagePath = strings.TrimSpace(storagePath)
	if title == "" {
		return asset.Asset{}, svcerr.Validation("title is required")
	}
	if storagePath == "" {
		return asset.Asset{}, svcerr.Validation("storage_path is required")
	}
	if !asset.ValidKind(kind) {
		return asset.Asset{}, svcerr.Validation("unsupported asset kind " + string(kind))
	}

	a, err := s.assets.CreateAsset(ctx, asset.Asset{
		ContributorID: contributorID,
		Title:         title,
		Kind:          kind,
		Status:        asset.StatusPending,
		StoragePath:   storagePath,
	})
	if err != nil {
		return asset.Asset{}, svcerr.Dependency("create asset", err)
	}

	s.log.WithField("asset_id", a.ID).WithField("contributor_id", contributorID).Info("asset submitted")
	return a, nil
}

// ListApproved returns the public catalog.
func (s *Service) ListApproved(ctx context.Context) ([]asset.Asset, error) {
	list, err := s.assets.ListAssetsByStatus(ctx, asset.StatusApproved)
	if err != nil {
		return nil, svcerr.Dependency("list assets", err)
	}
	return list, nil
}

// ListMine returns the acting contributor's own submissions in every
// state.
func (s *Service) ListMine(ctx context.Context, contributorID string) ([]asset.Asset, error) {
	if contributorID == "" {
		return nil, svcerr.Unauthenticated("")
	}
	list, err := s.assets.ListAssetsByContributor(ctx, contributorID)
	if err != nil {
		return nil, svcerr.Dependency("list assets", err)
	}
	return list, nil
}

// ListPending returns the moderation queue, oldest first. Admin-gated.
func (s *Service) ListPending(ctx context.Context, actorID string) ([]asset.Asset, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	list, err := s.assets.ListAssetsByStatus(ctx, asset.StatusPending)
	if err != nil {
		return nil, svcerr.Dependency("list assets", err)
	}
	return list, nil
}

// Get returns a single asset by id.
func (s *Service) Get(ctx context.Context, id string) (asset.Asset, error) {
	a, err := s.assets.GetAsset(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return asset.Asset{}, svcerr.NotFound("asset", id)
		}
		return asset.Asset{}, svcerr.Dependency("load asset", err)
	}
	return a, nil
}
