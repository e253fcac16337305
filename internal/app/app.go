package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/iopestimator/internal/archive"
	"github.com/chrissnell/iopestimator/internal/controllers/restserver"
	"github.com/chrissnell/iopestimator/internal/log"
	"github.com/chrissnell/iopestimator/pkg/config"
	"github.com/chrissnell/iopestimator/pkg/estimate"
	"go.uber.org/zap"
)

// App represents the estimation server
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// NewEngine builds an estimation engine honouring the configured plausible
// range
func NewEngine(cfg *config.ConfigData) estimate.Engine {
	engine := estimate.NewEngine()
	engine.Validator.Min, engine.Validator.Max = cfg.Estimation.Range()
	return engine
}

// Run starts the REST server and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var store restserver.ReportStore
	if a.cfg.Archive.Enabled() {
		s, err := archive.Open(a.cfg.Archive.Driver, a.cfg.Archive.DSN, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open report archive: %w", err)
		}
		defer s.Close()
		store = s
		a.logger.Infow("report archive enabled", "driver", a.cfg.Archive.Driver)
	} else {
		a.logger.Info("archive.driver not set; estimates will not be archived")
	}

	ctrl, err := restserver.NewController(ctx, &wg, a.cfg.Server, NewEngine(a.cfg), store, a.logger)
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for the REST server to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
