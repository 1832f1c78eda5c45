package app

import (
	"context"

	"babcia/config"
	"babcia/internal/controllers"
	"babcia/internal/database"
	"babcia/internal/events"
	"babcia/internal/handlers/middleware"
	"babcia/internal/jobs"
	"babcia/internal/logger"
	"babcia/internal/repositories"
	"babcia/internal/services"
	"babcia/internal/state"
	"babcia/internal/websockets"
)

type App struct {
	Database    database.DB
	Config      config.Config
	EventBus    *events.EventBus
	Store       *state.Store
	Services    services.Service
	Repos       repositories.Repository
	Controllers controllers.Controllers
	Middleware  middleware.Middleware
	Websocket   *websockets.Manager
}

func New(ctx context.Context) (*App, error) {
	log := logger.New("app").Function("New")

	cfg, err := config.New()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	// The embedded database has no separate migration step
	if cfg.DatabaseDriver == config.DatabaseDriverSQLite {
		if err := db.MigrateModels(); err != nil {
			return &App{}, log.Err("failed to migrate sqlite database", err)
		}
	}

	eventBus := events.New(db.Cache.Events)

	svc, err := services.New(db, cfg, eventBus)
	if err != nil {
		return &App{}, log.Err("failed to create services", err)
	}
	repos := repositories.New(db)

	if _, err := repos.Settings.GetOrSeed(ctx, cfg.DefaultSettings()); err != nil {
		return &App{}, log.Err("failed to seed settings", err)
	}

	store, err := state.New(ctx, repos.Room)
	if err != nil {
		return &App{}, log.Err("failed to load rooms", err)
	}

	ctrls := controllers.New(store, svc, repos, eventBus, cfg)

	websocket, err := websockets.New(eventBus, svc.Auth)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	app := &App{
		Database:    db,
		Config:      cfg,
		EventBus:    eventBus,
		Store:       store,
		Services:    svc,
		Repos:       repos,
		Controllers: ctrls,
		Middleware:  middleware.New(cfg, svc),
		Websocket:   websocket,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	if err := app.startScheduling(ctx); err != nil {
		return &App{}, err
	}

	return app, nil
}

// startScheduling registers the wake handler, normalises persisted schedules,
// arms the first wake and starts the scheduler host
func (a *App) startScheduling(ctx context.Context) error {
	log := logger.New("app").Function("startScheduling")

	a.Controllers.Autoscan.Register()

	if err := a.Controllers.Autoscan.NormalizeSchedules(ctx); err != nil {
		return log.Err("failed to normalize scan schedules", err)
	}

	if err := jobs.RegisterAllJobs(a.Services.Scheduler, a.Config, a.Services, a.Store); err != nil {
		return log.Err("failed to register jobs", err)
	}

	if !a.Config.SchedulerEnabled {
		log.Info("Scheduler disabled, automatic scans will not run")
		return nil
	}

	if err := a.Services.Scheduler.Start(ctx); err != nil {
		return log.Err("failed to start scheduler", err)
	}

	plan, err := a.Controllers.Autoscan.Recompute(ctx)
	if err != nil {
		return log.Err("failed to compute scan schedule", err)
	}

	log.Info("Scheduling started", "wakeAt", plan.WakeAt, "reminders", len(plan.Reminders))
	return nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.EventBus,
		a.Store,
		a.Services.Analysis,
		a.Services.Bridge,
		a.Services.Images,
		a.Services.Auth,
		a.Services.FileCleanup,
		a.Services.Scheduler,
		a.Repos.Room,
		a.Repos.Settings,
		a.Repos.Interaction,
		a.Controllers.Rooms,
		a.Controllers.Autoscan,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if a.Websocket != nil {
		a.Websocket.Close()
	}

	if a.Store != nil {
		a.Store.Close()
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
