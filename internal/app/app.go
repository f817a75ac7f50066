// Package app assembles the model, OCR, history and cache components shared
// by the HTTP and MCP entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/history"
	"github.com/symptom-dx-server/internal/model"
	"github.com/symptom-dx-server/internal/ocr"
	"github.com/symptom-dx-server/internal/service"
	"github.com/symptom-dx-server/internal/training"
)

// App holds the wired components.
type App struct {
	Config    domain.ConfigManager
	Logger    *logrus.Logger
	Lifecycle *model.Lifecycle
	Engine    *ocr.Engine
	History   history.Store
	Cache     *service.PredictionCache
	Service   *service.DiagnosisService
}

// New wires every component from configuration. A model that cannot be
// loaded or retrained is logged and left unpublished so the process can
// still start and report itself degraded.
func New(ctx context.Context, cm domain.ConfigManager, logger *logrus.Logger) (*App, error) {
	cfg := cm.GetConfig()
	a := &App{Config: cm, Logger: logger}

	store := model.NewArtifactStore(cfg.Model.ArtifactDir)
	var retrainer model.Retrainer
	if cfg.Model.DatasetPath != "" {
		retrainer = training.NewTrainer(cfg.Model, store, logger)
	}
	a.Lifecycle = model.NewLifecycle(
		model.NewLoader(store, logger),
		retrainer,
		model.LifecycleOptions{RetrainOnMissing: cfg.Model.RetrainOnMissing},
		logger,
	)
	if mc, err := a.Lifecycle.Load(ctx); err != nil {
		logger.WithError(err).Warn("No model available, predictions will fail until artifacts are provided")
	} else {
		logger.WithField("bundle_id", mc.BundleID).Info("Model ready")
	}

	a.Engine = ocr.NewEngine(cfg.OCR, logger)

	hist, err := history.Open(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	a.History = hist

	var client *redis.Client
	if cfg.Cache.RedisURL != "" {
		client, err = service.NewRedisClient(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-memory prediction cache only")
			client = nil
		}
	}
	a.Cache, err = service.NewPredictionCache(cfg.Cache, client, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create prediction cache: %w", err)
	}

	opts := []service.ServiceOption{service.WithCache(a.Cache)}
	if a.History != nil {
		opts = append(opts, service.WithHistory(a.History))
	}
	a.Service = service.NewDiagnosisService(a.Lifecycle, a.Engine, cfg.Model.TopK, logger, opts...)

	logger.WithFields(logrus.Fields{
		"ocr_methods":    a.Engine.Methods(),
		"history_driver": cfg.History.Driver,
		"redis":          client != nil,
	}).Info("Components initialized")
	return a, nil
}

// WatchArtifacts runs the artifact watcher in the background when enabled.
func (a *App) WatchArtifacts(ctx context.Context) {
	cfg := a.Config.GetModelConfig()
	if !cfg.WatchArtifacts {
		return
	}
	if err := os.MkdirAll(cfg.ArtifactDir, 0755); err != nil {
		a.Logger.WithError(err).Warn("Cannot create artifact directory, watcher disabled")
		return
	}

	w := model.NewWatcher(a.Lifecycle, cfg.ArtifactDir, cfg.WatchDebounce, a.Logger)
	go func() {
		if err := w.Run(ctx); err != nil {
			a.Logger.WithError(err).Warn("Artifact watcher stopped")
		}
	}()
}

// Close releases the history store and cache connections.
func (a *App) Close() error {
	var errs []error
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	return errors.Join(errs...)
}
