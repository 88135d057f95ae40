// Package app wires the marketplace services together and manages
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelhaven/marketplace/internal/app/audit"
	"github.com/pixelhaven/marketplace/internal/app/auth"
	"github.com/pixelhaven/marketplace/internal/app/services/catalog"
	"github.com/pixelhaven/marketplace/internal/app/services/contributors"
	"github.com/pixelhaven/marketplace/internal/app/services/effects"
	"github.com/pixelhaven/marketplace/internal/app/services/housekeeping"
	"github.com/pixelhaven/marketplace/internal/app/services/mailer"
	"github.com/pixelhaven/marketplace/internal/app/services/moderation"
	"github.com/pixelhaven/marketplace/internal/app/services/notifications"
	"github.com/pixelhaven/marketplace/internal/app/services/sessions"
	"github.com/pixelhaven/marketplace/internal/app/services/subscriptions"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	"github.com/pixelhaven/marketplace/internal/app/storage/memory"
	"github.com/pixelhaven/marketplace/internal/app/system"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to
// the in-memory implementation.
type Stores struct {
	Profiles      storage.ProfileStore
	Assets        storage.AssetStore
	Notifications storage.NotificationStore
	Plans         storage.PlanStore
	Subscriptions storage.SubscriptionStore
	Sessions      storage.SessionStore
}

// Options carries cross-cutting application settings.
type Options struct {
	SessionSecret        []byte
	SessionTTL           time.Duration
	Mailer               mailer.Mailer
	AuditSink            audit.Sink
	AuditMax             int
	EffectsQueueSize     int
	HousekeepingSchedule string
}

// Application ties domain services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Guard   *auth.Guard
	Audit   *audit.Log
	Effects *effects.Dispatcher

	Sessions      *sessions.Service
	Moderation    *moderation.Service
	Contributors  *contributors.Service
	Catalog       *catalog.Service
	Notifications *notifications.Service
	Subscriptions *subscriptions.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Profiles == nil {
		stores.Profiles = mem
	}
	if stores.Assets == nil {
		stores.Assets = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Plans == nil {
		stores.Plans = mem
	}
	if stores.Subscriptions == nil {
		stores.Subscriptions = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}

	if len(opts.SessionSecret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}
	mail := opts.Mailer
	if mail == nil {
		log.Warn("no mailer configured; email side effects disabled")
		mail = mailer.Noop{}
	}

	auditLog := audit.NewLog(opts.AuditMax, opts.AuditSink)
	dispatcher := effects.NewDispatcher(opts.EffectsQueueSize, auditLog, log)
	guard := auth.NewGuard(stores.Profiles, log)

	sessionsSvc, err := sessions.New(stores.Sessions, opts.SessionSecret, opts.SessionTTL, log)
	if err != nil {
		return nil, err
	}

	moderationSvc := moderation.New(guard, stores.Assets, stores.Notifications, mail, dispatcher, log)
	contributorsSvc := contributors.New(guard, stores.Profiles, stores.Notifications, dispatcher, log)
	catalogSvc := catalog.New(guard, stores.Assets, log)
	notificationsSvc := notifications.New(stores.Notifications, log)
	subscriptionsSvc := subscriptions.New(guard, stores.Plans, stores.Subscriptions, log)

	manager := system.NewManager()
	if err := manager.Register(dispatcher); err != nil {
		return nil, fmt.Errorf("register effects dispatcher: %w", err)
	}
	if err := manager.Register(housekeeping.NewRunner(sessionsSvc, opts.HousekeepingSchedule, log)); err != nil {
		return nil, fmt.Errorf("register housekeeping: %w", err)
	}

	return &Application{
		manager:       manager,
		log:           log,
		Guard:         guard,
		Audit:         auditLog,
		Effects:       dispatcher,
		Sessions:      sessionsSvc,
		Moderation:    moderationSvc,
		Contributors:  contributorsSvc,
		Catalog:       catalogSvc,
		Notifications: notificationsSvc,
		Subscriptions: subscriptionsSvc,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all background services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
