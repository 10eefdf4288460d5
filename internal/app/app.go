package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/newthinker/archivist/internal/config"
	"github.com/newthinker/archivist/internal/coordinator"
	"github.com/newthinker/archivist/internal/core"
	"github.com/newthinker/archivist/internal/journal"
	"github.com/newthinker/archivist/internal/lease"
	"github.com/newthinker/archivist/internal/metrics"
	"github.com/newthinker/archivist/internal/notifier"
	"github.com/newthinker/archivist/internal/notifier/webhook"
	"github.com/newthinker/archivist/internal/router"
	"github.com/newthinker/archivist/internal/storage/archive"
	"github.com/newthinker/archivist/internal/tracker"
	"go.uber.org/zap"
)

// App holds the components built from one configuration
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	driver      archive.Driver
	tracker     tracker.Tracker
	locker      lease.Locker
	journal     *journal.Store
	metrics     *metrics.Registry
	coordinator *coordinator.Coordinator
	router      *router.Router

	closers []func() error
}

// New builds every component cfg asks for. cfg must already be validated.
// Connections opened before a failure are closed again.
func New(cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err == nil {
			return
		}
		if cerr := a.Close(); cerr != nil {
			logger.Warn("closing partially built app", zap.Error(cerr))
		}
	}()

	if a.driver, err = newDriver(cfg.Backend, logger); err != nil {
		return nil, fmt.Errorf("creating %s driver: %w", cfg.Backend.Type, err)
	}
	if a.tracker, err = newTracker(cfg.Tracker, logger); err != nil {
		return nil, fmt.Errorf("creating tracker: %w", err)
	}
	if err := a.setupLease(cfg.Lease); err != nil {
		return nil, fmt.Errorf("creating lease backend: %w", err)
	}

	a.journal = journal.NewStore(cfg.Journal.MaxEntries, cfg.Journal.TTL)
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	a.coordinator = coordinator.New(a.driver, a.tracker, logger.Named("coordinator"))
	a.coordinator.SetJournal(a.journal)
	if a.locker != nil {
		a.coordinator.SetLocker(a.locker)
	}
	if a.metrics != nil {
		a.coordinator.SetMetrics(a.metrics)
	}
	if cfg.Alerts.Webhook.URL != "" {
		hook, err := webhook.New(cfg.Alerts.Webhook)
		if err != nil {
			return nil, fmt.Errorf("creating alert webhook: %w", err)
		}
		alerts := notifier.NewRegistry()
		if err := alerts.Register(hook); err != nil {
			return nil, err
		}
		a.coordinator.SetNotifier(alerts)
	}

	a.router = router.New(router.Config{AcceptedActions: cfg.Router.AcceptedActions}, a.coordinator, logger.Named("router"))
	if a.metrics != nil {
		a.router.SetMetrics(a.metrics)
	}

	logger.Info("archivist initialized",
		zap.String("backend", a.driver.Name()),
		zap.String("tracker", cfg.Tracker.Type),
		zap.String("lease", cfg.Lease.Backend),
		zap.Bool("metrics", a.metrics != nil),
		zap.Bool("alerts", cfg.Alerts.Webhook.URL != ""),
	)
	return a, nil
}

func newDriver(cfg config.BackendConfig, logger *zap.Logger) (archive.Driver, error) {
	switch cfg.Type {
	case config.BackendFilesystem:
		return archive.NewFilesystem(archive.FilesystemConfig{
			ActiveRoot:  cfg.Filesystem.ActiveRoot,
			ArchiveRoot: cfg.Filesystem.ArchiveRoot,
		}, logger)
	case config.BackendS3:
		return archive.NewObjectStore(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			KeyPrefix: cfg.S3.KeyPrefix,
			Policy: archive.StorageClassPolicy{
				Active:  cfg.S3.UnarchivedStorageClass,
				Archive: cfg.S3.ArchivedStorageClass,
			},
			MaxAttempts: cfg.S3.MaxAttempts,
			Timeout:     cfg.S3.Timeout,
		}, logger)
	}
	return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown backend %q", cfg.Type))
}

func newTracker(cfg config.TrackerConfig, logger *zap.Logger) (tracker.Tracker, error) {
	switch cfg.Type {
	case config.TrackerHTTP:
		return tracker.NewHTTP(tracker.HTTPConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, logger)
	case config.TrackerMemory:
		mem := tracker.NewMemory()
		for _, seed := range cfg.Objects {
			status, err := core.ParseStatus(seed.Status)
			if err != nil {
				return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("tracker object %s: %w", seed.ID, err))
			}
			mem.Put(core.ManagedObject{
				ID:       seed.ID,
				Status:   status,
				Location: core.Location{FilePath: seed.FilePath, ObjectKey: seed.ObjectKey},
			})
		}
		logger.Warn("using in-memory tracker, statuses are not persisted",
			zap.Int("objects", len(cfg.Objects)))
		return mem, nil
	}
	return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown tracker %q", cfg.Type))
}

func (a *App) setupLease(cfg config.LeaseConfig) error {
	switch cfg.Backend {
	case config.LeaseNone, "":
	case config.LeaseMemory:
		a.locker = lease.NewMemory()
	case config.LeaseRedis:
		l, err := lease.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		a.locker = l
		a.closers = append(a.closers, l.Close)
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown lease backend %q", cfg.Backend))
	}
	return nil
}

// Coordinator returns the archive coordinator
func (a *App) Coordinator() *coordinator.Coordinator { return a.coordinator }

// Router returns the request router
func (a *App) Router() *router.Router { return a.router }

// Tracker returns the status tracker in use
func (a *App) Tracker() tracker.Tracker { return a.tracker }

// Journal returns the operation journal
func (a *App) Journal() *journal.Store { return a.journal }

// Metrics returns the metrics registry, nil when metrics are disabled
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Submit routes one request, as the HTTP intake does
func (a *App) Submit(ctx context.Context, req core.OperationRequest) (coordinator.Result, error) {
	return a.router.Route(ctx, req)
}

// Close releases external connections
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
