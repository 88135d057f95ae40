// Package main runs the marketplace API gateway.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/pixelhaven/marketplace/internal/app"
	"github.com/pixelhaven/marketplace/internal/app/audit"
	"github.com/pixelhaven/marketplace/internal/app/httpapi"
	"github.com/pixelhaven/marketplace/internal/app/metrics"
	"github.com/pixelhaven/marketplace/internal/app/services/mailer"
	"github.com/pixelhaven/marketplace/internal/app/storage/postgres"
	supabasestore "github.com/pixelhaven/marketplace/internal/app/storage/supabase"
	"github.com/pixelhaven/marketplace/internal/config"
	"github.com/pixelhaven/marketplace/internal/database"
	"github.com/pixelhaven/marketplace/internal/middleware"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("gateway").WithError(err).Error("configuration error")
		os.Exit(1)
	}

	log := logger.New("gateway", cfg.LogLevel)
	log.WithField("environment", cfg.Environment).Info("starting marketplace gateway")

	stores, authenticator, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("storage initialization failed")
		os.Exit(1)
	}

	opts := app.Options{
		SessionSecret:        []byte(cfg.SessionSecret),
		SessionTTL:           cfg.SessionTTL,
		HousekeepingSchedule: cfg.HousekeepingSchedule,
	}
	if cfg.IsDevelopment() && cfg.SessionSecret == "" {
		opts.SessionSecret = []byte("development-only-secret")
	}
	if cfg.MailerEndpoint != "" {
		m, err := mailer.NewHTTPMailer(nil, cfg.MailerEndpoint, cfg.MailerAPIKey, log)
		if err != nil {
			log.WithError(err).Error("mailer initialization failed")
			os.Exit(1)
		}
		opts.Mailer = m
	}
	if cfg.AuditLogPath != "" {
		sink, err := audit.NewFileSink(cfg.AuditLogPath)
		if err != nil {
			log.WithError(err).Error("audit sink initialization failed")
			os.Exit(1)
		}
		defer sink.Close()
		opts.AuditSink = sink
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		log.WithError(err).Error("application initialization failed")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("background services failed to start")
		os.Exit(1)
	}

	if authenticator == nil && cfg.IsDevelopment() {
		authenticator = httpapi.StaticAuthenticator{}
	}

	adminGuard := middleware.NewAdminGuard(application.Guard, log)
	api := httpapi.NewHandler(application, httpapi.Options{
		Auth:       authenticator,
		AdminGuard: adminGuard,
		Log:        log,
	})

	sessionMW := middleware.NewSessionMiddleware(application.Sessions, log)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, log)

	root := http.NewServeMux()
	root.Handle("/metrics", metrics.Handler())
	root.Handle("/", sessionMW.Handler(rateLimiter.Handler(api)))

	var handler http.Handler = root
	handler = metrics.InstrumentHandler(handler)
	handler = middleware.CORS(cfg.CORSAllowedOrigins)(handler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown error")
	}
}

// buildStores selects the persistence backend. Supabase mode keeps
// plans, subscriptions and sessions in memory; only profile, asset and
// notification rows live behind PostgREST.
func buildStores(cfg config.Config, log *logger.Logger) (app.Stores, httpapi.Authenticator, error) {
	switch cfg.Storage {
	case "postgres":
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return app.Stores{}, nil, err
		}
		if err := store.Migrate(); err != nil {
			return app.Stores{}, nil, err
		}
		log.Info("using postgres storage")
		return app.Stores{
			Profiles:      store,
			Assets:        store,
			Notifications: store,
			Plans:         store,
			Subscriptions: store,
			Sessions:      store,
		}, nil, nil

	case "supabase":
		client, err := database.NewClient(database.Config{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
		})
		if err != nil {
			return app.Stores{}, nil, err
		}
		store := supabasestore.New(client)
		log.Info("using supabase storage")
		return app.Stores{
			Profiles:      store,
			Assets:        store,
			Notifications: store,
		}, httpapi.SupabaseAuthenticator{Client: client}, nil

	default:
		log.Warn("using in-memory storage; data will not survive restarts")
		return app.Stores{}, nil, nil
	}
}
