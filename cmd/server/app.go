package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskhub-api/internal/broadcast"
	"github.com/phrazzld/taskhub-api/internal/config"
	"github.com/phrazzld/taskhub-api/internal/platform/metrics"
	"github.com/phrazzld/taskhub-api/internal/platform/postgres"
	"github.com/phrazzld/taskhub-api/internal/realtime"
	"github.com/phrazzld/taskhub-api/internal/scheduler"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/service/auth"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	userStore         store.UserStore
	taskStore         store.TaskStore
	messageStore      store.MessageStore
	notificationStore store.NotificationStore

	// Realtime infrastructure
	registry *realtime.Registry
	topics   *broadcast.Topics

	// Service interfaces
	jwtService     auth.JWTService
	messageService *service.MessageService
	taskEvents     *service.TaskEventPublisher

	// Background work
	reminderScheduler *scheduler.ReminderScheduler
	cancelScheduler   context.CancelFunc
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(_ context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize stores
	app.userStore = postgres.NewPostgresUserStore(db)
	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.messageStore = postgres.NewPostgresMessageStore(db)
	app.notificationStore = postgres.NewPostgresNotificationStore(db)

	// Initialize realtime infrastructure
	metrics.Register()
	app.registry = realtime.NewRegistry()
	app.topics = broadcast.NewTopics(cfg.Realtime.TopicBufferSize)

	// Initialize services
	app.messageService = service.NewMessageService(
		app.messageStore,
		app.userStore,
		app.notificationStore,
		app.topics,
		app.registry,
	)
	app.taskEvents = service.NewTaskEventPublisher(app.topics, app.registry)

	// Initialize reminder scheduler
	app.reminderScheduler = scheduler.NewReminderScheduler(
		app.taskStore,
		app.notificationStore,
		app.topics,
		app.registry,
		time.Duration(cfg.Scheduler.ReminderIntervalSeconds)*time.Second,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the reminder scheduler and the HTTP server, handling lifecycle
// and cleanup. It returns when the server shuts down.
func (app *application) Run(ctx context.Context) error {
	schedulerCtx, cancel := context.WithCancel(ctx)
	app.cancelScheduler = cancel
	go app.reminderScheduler.Run(schedulerCtx)

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.cancelScheduler != nil {
		app.cancelScheduler()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
