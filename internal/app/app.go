package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"walupload/internal/config"
	"walupload/internal/discovery"
	"walupload/internal/journal"
	"walupload/internal/metrics"
	"walupload/internal/progress"
	"walupload/internal/state"
	"walupload/internal/storage"

	"go.uber.org/zap"
)

// ErrNotCompleted is returned by App.Run when the upload stopped in any state
// other than Completed.
var ErrNotCompleted = errors.New("upload not completed")

// App wires an Uploader to the configured store, log and part directory
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	log      journal.Log
	metrics  *metrics.Collector
	tracker  *progress.Tracker
	uploader *Uploader
}

// New creates the application from configuration
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	client, err := newClient(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	root, pattern := discovery.SplitPattern(cfg.Upload.Root, cfg.Upload.Pattern)
	finder := discovery.NewOS(root)
	transfer := storage.NewTransfer(client, finder.Filesystem(), storage.PutOptions{})

	log, err := journal.Open(journal.Backend(cfg.Upload.LogBackend), cfg.Upload.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload log: %w", err)
	}

	collector := metrics.New()
	tracker := progress.NewTracker()

	uploader, err := NewUploader(Options{
		Bucket:      cfg.Upload.Bucket,
		Key:         cfg.Upload.Key,
		Pattern:     pattern,
		MaxAttempts: cfg.Upload.MaxAttempts,
		Metrics:     collector,
		Tracker:     tracker,
	}, log, transfer, finder, logger)
	if err != nil {
		log.Close()
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		log:      log,
		metrics:  collector,
		tracker:  tracker,
		uploader: uploader,
	}

	return a, nil
}

func newClient(ctx context.Context, cfg config.Storage) (storage.Client, error) {
	storageCfg := storage.Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Secure:    cfg.Secure,
		PathStyle: cfg.PathStyle,
	}

	switch cfg.Driver {
	case config.DriverS3:
		client, err := storage.NewS3Client(ctx, storageCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.DriverMinIO, "":
		client, err := storage.NewMinIOClient(storageCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// Run executes the upload and returns its final state. The error is
// ErrNotCompleted when the upload ended in any state but Completed.
func (a *App) Run(ctx context.Context) (state.State, error) {
	a.logger.Info("Starting upload",
		zap.String("bucket", a.cfg.Upload.Bucket),
		zap.String("key", a.cfg.Upload.Key),
		zap.String("pattern", a.cfg.Upload.Pattern),
		zap.String("log", a.cfg.Upload.Log),
		zap.Int("max_attempts", a.cfg.Upload.MaxAttempts),
	)

	if addr := a.cfg.Upload.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.StartServer(ctx, addr); err != nil {
				a.logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	var display *progress.Display
	if a.cfg.Upload.ShowProgress && progress.IsTerminal(os.Stdout) {
		display = progress.NewDisplay(a.tracker, time.Second, os.Stdout)
		display.Start()
	} else if a.cfg.Upload.ShowProgress {
		a.logger.Debug("Progress display disabled (stdout is not a terminal)")
	}

	final, err := a.uploader.Run(ctx)

	if display != nil {
		display.Stop()
	}

	if err != nil {
		return final, err
	}
	if _, ok := final.(state.Completed); !ok {
		return final, fmt.Errorf("%w: stopped in %s state", ErrNotCompleted, final.Phase())
	}
	return final, nil
}

// Close releases the upload log
func (a *App) Close() error {
	if a.log != nil {
		return a.log.Close()
	}
	return nil
}
