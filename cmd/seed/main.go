// Package main seeds a marketplace storage backend with an admin
// profile and the default subscription plans. Intended for fresh
// environments.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/pixelhaven/marketplace/internal/app/domain/plan"
	"github.com/pixelhaven/marketplace/internal/app/domain/profile"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	"github.com/pixelhaven/marketplace/internal/app/storage/postgres"
	supabasestore "github.com/pixelhaven/marketplace/internal/app/storage/supabase"
	"github.com/pixelhaven/marketplace/internal/config"
	"github.com/pixelhaven/marketplace/internal/database"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

var defaultPlans = []plan.Plan{
	{Name: "Starter", PriceCents: 0, Interval: plan.IntervalMonthly, DownloadLimit: 5, Active: true},
	{Name: "Pro", PriceCents: 1999, Interval: plan.IntervalMonthly, DownloadLimit: 100, Active: true},
	{Name: "Studio", PriceCents: 19999, Interval: plan.IntervalYearly, DownloadLimit: 2000, Active: true},
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	adminID := flag.String("admin-id", "", "User ID to promote to admin (required)")
	skipPlans := flag.Bool("skip-plans", false, "Do not create the default plans")
	flag.Parse()

	log := logger.NewDefault("seed")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("configuration error")
		os.Exit(1)
	}
	if *adminID == "" {
		log.Error("-admin-id is required")
		os.Exit(1)
	}

	profiles, plans, err := openStores(cfg)
	if err != nil {
		log.WithError(err).Error("storage initialization failed")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := seedAdmin(ctx, profiles, *adminID); err != nil {
		log.WithError(err).Error("seed admin failed")
		os.Exit(1)
	}
	log.WithField("user_id", *adminID).Info("admin profile ready")

	if *skipPlans {
		return
	}
	if plans == nil {
		log.Warn("selected storage backend has no plan store; skipping plans")
		return
	}
	for _, p := range defaultPlans {
		created, err := plans.CreatePlan(ctx, p)
		if err != nil {
			log.WithError(err).WithField("plan", p.Name).Error("seed plan failed")
			os.Exit(1)
		}
		log.WithField("plan", created.Name).WithField("plan_id", created.ID).Info("plan created")
	}
}

func openStores(cfg config.Config) (storage.ProfileStore, storage.PlanStore, error) {
	switch cfg.Storage {
	case "postgres":
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(); err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "supabase":
		client, err := database.NewClient(database.Config{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return supabasestore.New(client), nil, nil
	default:
		return nil, nil, errors.New("seeding requires a persistent storage backend")
	}
}

// seedAdmin creates the profile if missing, otherwise promotes it.
func seedAdmin(ctx context.Context, profiles storage.ProfileStore, id string) error {
	p, err := profiles.GetProfile(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		_, err = profiles.CreateProfile(ctx, profile.Profile{ID: id, Role: profile.RoleAdmin})
		return err
	}
	if p.Role == profile.RoleAdmin {
		return nil
	}
	p.Role = profile.RoleAdmin
	_, err = profiles.UpdateProfile(ctx, p)
	return err
}
