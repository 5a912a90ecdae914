package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/analysis"
	"github.com/harrisonrobin/taskpilot/pkg/assembler"
	"github.com/harrisonrobin/taskpilot/pkg/auth"
	"github.com/harrisonrobin/taskpilot/pkg/colors"
	"github.com/harrisonrobin/taskpilot/pkg/config"
	"github.com/harrisonrobin/taskpilot/pkg/google"
	"github.com/harrisonrobin/taskpilot/pkg/index"
	"github.com/harrisonrobin/taskpilot/pkg/logging"
	"github.com/harrisonrobin/taskpilot/pkg/metrics"
	"github.com/harrisonrobin/taskpilot/pkg/notify"
	"github.com/harrisonrobin/taskpilot/pkg/oracle"
	"github.com/harrisonrobin/taskpilot/pkg/overdue"
	"github.com/harrisonrobin/taskpilot/pkg/store"
	"github.com/harrisonrobin/taskpilot/pkg/store/badgerstore"
	"github.com/harrisonrobin/taskpilot/pkg/store/memory"
	"github.com/harrisonrobin/taskpilot/pkg/store/mongostore"
	"github.com/harrisonrobin/taskpilot/pkg/tracker"
)

// app holds everything a command needs, built once from the config.
type app struct {
	cfg      *config.Config
	dir      string
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    store.Store
	svc      *tracker.Service
	// calendar is nil when sync is disabled or not yet authorized.
	calendar *google.CalendarClient
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	return config.LoadDefault()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if flagStore != "" {
		cfg.Store.Backend = flagStore
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if flagCalendar != "" {
		cfg.Calendar = flagCalendar
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return nil, err
	}
	dir, err := config.GetXdgHome()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}

	a := &app{cfg: cfg, dir: dir, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if a.store, err = openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	o, err := oracle.New(ctx, cfg.Oracle, logger.Named("oracle"))
	if err != nil {
		a.Close()
		return nil, err
	}
	engineCfg := cfg.AnalysisEngineConfig()
	engine := analysis.NewEngine(o, engineCfg, logger.Named("analysis"), analysis.WithMetrics(a.metrics))
	asm := assembler.New(engineCfg.Priorities, engine.Config().Hours, logger.Named("assembler"), assembler.WithMetrics(a.metrics))

	notifiers := notify.Multi{notify.NewLog(logger.Named("notify"))}
	var updates notify.Notifier
	if cfg.Calendar != "" {
		cal, err := a.openCalendar(ctx)
		switch {
		case err != nil:
			logger.Warn("calendar sync disabled", zap.String("calendar", cfg.Calendar), zap.Error(err))
		default:
			a.calendar = cal
			updates = notify.NewCalendar(cal)
			notifiers = append(notifiers, updates)
		}
	}

	a.svc = tracker.NewService(engine, asm, a.store,
		tracker.WithNotifier(notifiers),
		tracker.WithUpdateNotifier(updates),
		tracker.WithDependencyPolicy(cfg.DependencyPolicy()),
		tracker.WithLogger(logger.Named("tracker")),
		tracker.WithMetrics(a.metrics))
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendMongo:
		return mongostore.Open(ctx, mongostore.Config{
			URI:      cfg.Store.MongoURI,
			Database: cfg.Store.Database,
			Logger:   logger.Named("mongo"),
		})
	default:
		bc := badgerstore.DefaultConfig(cfg.Store.Path)
		bc.Logger = logger.Named("badger")
		return badgerstore.Open(bc)
	}
}

var errNotAuthorized = errors.New("no stored Google token, run `taskpilot auth` first")

// openCalendar connects only with a stored token so that ordinary commands
// never start the interactive browser flow.
func (a *app) openCalendar(ctx context.Context) (*google.CalendarClient, error) {
	authz := a.authorizer()
	if _, err := os.Stat(authz.TokenPath()); err != nil {
		return nil, errNotAuthorized
	}
	httpClient, err := authz.Client(ctx)
	if err != nil {
		return nil, err
	}
	opts := google.Options{Logger: a.logger.Named("calendar")}
	if opts.Index, err = index.OpenDir(a.dir); err != nil {
		a.logger.Warn("failed to open event index", zap.Error(err))
	}
	if opts.Colors, err = colors.OpenDir(a.dir); err != nil {
		a.logger.Warn("failed to open color cache", zap.Error(err))
	}
	if opts.Pending, err = overdue.OpenDir(a.dir); err != nil {
		a.logger.Warn("failed to open overdue table", zap.Error(err))
	}
	return google.NewClient(ctx, httpClient, a.cfg.Calendar, opts)
}

func (a *app) authorizer() *auth.Authorizer {
	return &auth.Authorizer{
		Dir:    a.dir,
		Scopes: google.Scopes,
		Prompt: os.Stderr,
		Logger: a.logger.Named("auth"),
	}
}

func (a *app) unsyncCalendar(ctx context.Context, taskID string) {
	if a.calendar == nil {
		return
	}
	if err := a.calendar.RemoveTask(ctx, taskID); err != nil {
		a.logger.Warn("calendar removal failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (a *app) Close() {
	if a.calendar != nil {
		if err := a.calendar.Save(); err != nil {
			a.logger.Warn("failed to save calendar state", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
