package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-automator-api/internal/api"
	"task-automator-api/internal/calendar"
	"task-automator-api/internal/config"
	"task-automator-api/internal/database"
	"task-automator-api/internal/domain"
	"task-automator-api/internal/engine"
	"task-automator-api/internal/logger"
	"task-automator-api/internal/notify"
	"task-automator-api/internal/store"
	"task-automator-api/internal/store/snapshot"
	"task-automator-api/internal/worker"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic("Could not initialize logger: " + err.Error()) // Can't log if logger fails
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err), zap.String("component", "main"))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts everything down.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	app.start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting API server", zap.String("port", cfg.APIPort), zap.String("component", "main"))
		serveErr <- app.server.ListenAndServe()
	}()

	var listenErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			listenErr = fmt.Errorf("could not start server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received", zap.String("component", "main"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(listenErr, app.shutdown(shutdownCtx))
}

// application is the wired process: stores, engine, event sources and HTTP.
type application struct {
	log       *zap.Logger
	engine    *engine.Engine
	stores    *store.Stores
	persister *snapshot.Persister
	workers   []*worker.Worker
	schedule  *worker.ScheduleWorker
	server    *http.Server
	closers   []func()
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *application, err error) {
	app := &application{log: log}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	opts := api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
	}

	if cfg.UsesPostgres() {
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("could not connect to the database: %w", err)
		}
		app.closers = append(app.closers, pool.Close)

		if err := database.RunMigrations(ctx, pool, log, cfg.RunMigrations); err != nil {
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}
		app.stores = store.NewPostgresStores(pool, cfg.ExecutionLogLimit)
		opts.DB = pool
	} else {
		app.stores = store.NewMemoryStores(cfg.ExecutionLogLimit)
		log.Info("using in-memory stores", zap.String("component", "main"))

		backend, err := app.snapshotBackend(cfg)
		if err != nil {
			return nil, err
		}
		app.persister = app.stores.Persister(backend, log)
		if app.persister != nil {
			if err := app.persister.Restore(ctx); err != nil {
				return nil, err
			}
		}
	}
	opts.Tasks = app.stores.Tasks

	reg, err := app.registry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app.engine = engine.New(app.stores.Rules, app.stores.Executions,
		engine.WithLogger(log),
		engine.WithActionTimeout(cfg.ActionTimeout),
		engine.WithRegistry(reg),
	)

	if err := app.eventSources(cfg); err != nil {
		return nil, err
	}

	apiServer := api.NewServer(app.engine, log, opts)
	app.server = &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      apiServer.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return app, nil
}

// snapshotBackend prefers Redis over a local file. Neither means no snapshots.
func (a *application) snapshotBackend(cfg *config.Config) (snapshot.Backend, error) {
	switch {
	case cfg.RedisURL != "":
		b, err := snapshot.NewRedisBackend(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("could not open redis snapshot backend: %w", err)
		}
		a.closers = append(a.closers, func() { _ = b.Close() })
		a.log.Info("snapshots stored in redis", zap.String("prefix", cfg.RedisKeyPrefix), zap.String("component", "main"))
		return b, nil
	case cfg.SnapshotFile != "":
		a.log.Info("snapshots stored on disk", zap.String("path", cfg.SnapshotFile), zap.String("component", "main"))
		return snapshot.NewFileBackend(cfg.SnapshotFile), nil
	}
	return nil, nil
}

func (a *application) registry(ctx context.Context, cfg *config.Config) (*engine.ActionRegistry, error) {
	var notifier engine.Notifier = notify.NewMemoryNotifier()
	if cfg.MQTTBrokerURL != "" {
		n, err := notify.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTTopicPrefix, a.log)
		if err != nil {
			return nil, fmt.Errorf("could not connect to MQTT broker: %w", err)
		}
		a.closers = append(a.closers, n.Close)
		notifier = n
	}

	reg := engine.NewActionRegistry()
	if err := engine.RegisterDefaultHandlers(reg, engine.Targets{
		Tasks:    a.stores.Tasks,
		Tags:     a.stores.Tasks,
		Notifier: notifier,
	}); err != nil {
		return nil, err
	}
	if err := engine.RegisterTaskExtensions(reg, a.stores.Tasks); err != nil {
		return nil, err
	}
	if err := reg.Register(domain.ActionWebhook, engine.WebhookHandler(&http.Client{Timeout: cfg.ActionTimeout})); err != nil {
		return nil, err
	}

	if cfg.CalendarEnabled() {
		oauthCfg := calendar.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
		creator, err := calendar.NewEventCreator(ctx, oauthCfg, cfg.GoogleRefreshToken, a.log)
		if err != nil {
			return nil, fmt.Errorf("could not initialize calendar client: %w", err)
		}
		if err := reg.Register(domain.ActionCreateEvent, creator.Handler()); err != nil {
			return nil, err
		}
	}

	a.log.Info("action handlers registered", zap.Int("count", len(reg.Types())), zap.String("component", "main"))
	return reg, nil
}

// eventSources builds the workers that feed events into the engine.
func (a *application) eventSources(cfg *config.Config) error {
	due := worker.NewDueDateProcessor(a.stores.Tasks, a.engine, cfg.DueDateWindow, a.log)
	dueWorker, err := worker.NewWorker(cfg.DueDateScanInterval, a.log, due)
	if err != nil {
		return fmt.Errorf("could not initialize due date worker: %w", err)
	}
	a.workers = append(a.workers, dueWorker)

	if a.persister != nil {
		snapWorker, err := worker.NewWorker(cfg.SnapshotInterval, a.log, worker.NewSnapshotProcessor(a.persister))
		if err != nil {
			return fmt.Errorf("could not initialize snapshot worker: %w", err)
		}
		a.workers = append(a.workers, snapWorker)
	}

	if cfg.ScheduleCron != "" {
		a.schedule, err = worker.NewScheduleWorker(cfg.ScheduleCron, a.engine, a.log)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *application) start(ctx context.Context) {
	for _, w := range a.workers {
		w.Start(ctx)
	}
	if a.schedule != nil {
		a.schedule.Start()
	}
}

// shutdown stops the HTTP server and the event sources, then writes a final
// snapshot before releasing connections.
func (a *application) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.schedule != nil {
		a.schedule.Stop()
	}
	for _, w := range a.workers {
		w.Stop()
	}
	if a.persister != nil {
		if err := a.persister.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.close()
	a.log.Info("server stopped", zap.String("component", "main"))
	return errors.Join(errs...)
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
