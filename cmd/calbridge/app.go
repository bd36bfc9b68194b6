package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tazhate/calbridge/config"
	"github.com/tazhate/calbridge/internal/clients/caldav"
	"github.com/tazhate/calbridge/internal/clients/google"
	"github.com/tazhate/calbridge/internal/dispatch"
	"github.com/tazhate/calbridge/internal/permission"
	"github.com/tazhate/calbridge/internal/prompt"
	"github.com/tazhate/calbridge/internal/service"
	"github.com/tazhate/calbridge/internal/storage"
)

// app is the wired dispatcher and the local database behind it.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *storage.Storage
	dispatcher *dispatch.Dispatcher
}

// newApp opens the local database (always used for permission state) and the
// configured calendar backend. presenter may be nil for headless use.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, presenter prompt.Presenter) (*app, error) {
	platform, err := dispatch.PlatformFor(cfg.Backend)
	if err != nil {
		return nil, err
	}

	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var (
		calendars service.CalendarStore
		reminders service.ReminderStore
	)
	switch cfg.Backend {
	case config.BackendSQLite:
		calendars, reminders = db, db
	case config.BackendCalDAV:
		store := caldav.NewStore(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar, cfg.CalDAVRemindersList, logger)
		if !store.IsConfigured() {
			db.Close()
			return nil, fmt.Errorf("caldav backend needs CALDAV_USERNAME and CALDAV_PASSWORD")
		}
		calendars, reminders = store, store
	case config.BackendGoogle:
		store, err := google.NewStore(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init google calendar: %w", err)
		}
		calendars = store
	}

	var consenter prompt.Consenter
	if presenter != nil {
		consenter = presenter
	}
	gate := permission.NewGate(permission.NewConsentProvider(db, consenter, cfg.PermissionPolicy, logger), platform.Aliases)

	opts := dispatch.Options{
		Platform:  platform,
		Gate:      gate,
		Calendars: service.NewCalendarService(calendars, cfg.Timezone, logger),
		Presenter: presenter,
		Location:  cfg.Timezone,
		Logger:    logger,
	}
	if reminders != nil {
		opts.Reminders = service.NewReminderService(reminders, logger)
	}

	logger.Info("calendar backend ready", "backend", platform.Name, "policy", cfg.PermissionPolicy)
	return &app{cfg: cfg, logger: logger, db: db, dispatcher: dispatch.New(opts)}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
