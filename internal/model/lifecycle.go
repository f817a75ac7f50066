package model

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/domain"
)

// Retrainer rebuilds and persists a model bundle from the labeled dataset.
type Retrainer interface {
	RetrainAndPersist(ctx context.Context) (*ModelContext, error)
}

// Loader reads persisted bundles.
type Loader struct {
	store  *ArtifactStore
	logger *logrus.Logger
}

// NewLoader creates a loader over store.
func NewLoader(store *ArtifactStore, logger *logrus.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// Store returns the underlying artifact store.
func (l *Loader) Store() *ArtifactStore {
	return l.store
}

// TryLoad succeeds only if all three artifacts decode and agree.
func (l *Loader) TryLoad() (*ModelContext, error) {
	mc, err := l.store.Load()
	if err != nil {
		l.logger.WithError(err).WithField("dir", l.store.Dir()).Warn("Failed to load model artifacts")
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"bundle_id": mc.BundleID,
		"classes":   mc.Encoder.Len(),
		"symptoms":  mc.Lexicon.Len(),
		"trees":     len(mc.Forest.Trees),
	}).Info("Model artifacts loaded")
	return mc, nil
}

// LifecycleOptions configures a Lifecycle.
type LifecycleOptions struct {
	RetrainOnMissing bool
}

// Lifecycle owns the currently published ModelContext. Loads and reloads are
// serialised; readers never block.
type Lifecycle struct {
	loader    *Loader
	retrainer Retrainer
	opts      LifecycleOptions
	logger    *logrus.Logger

	mu      sync.Mutex
	current atomic.Pointer[ModelContext]
}

// NewLifecycle creates a lifecycle. retrainer may be nil.
func NewLifecycle(loader *Loader, retrainer Retrainer, opts LifecycleOptions, logger *logrus.Logger) *Lifecycle {
	return &Lifecycle{
		loader:    loader,
		retrainer: retrainer,
		opts:      opts,
		logger:    logger,
	}
}

// Load publishes persisted artifacts, falling back to retraining when they
// cannot be loaded and retraining is enabled.
func (lc *Lifecycle) Load(ctx context.Context) (*ModelContext, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	mc, loadErr := lc.loader.TryLoad()
	if loadErr == nil {
		lc.current.Store(mc)
		return mc, nil
	}

	if !lc.opts.RetrainOnMissing || lc.retrainer == nil {
		return nil, domain.ModelUnavailable(loadErr)
	}

	lc.logger.WithError(loadErr).Info("Retraining model from dataset")
	mc, err := lc.retrainer.RetrainAndPersist(ctx)
	if err != nil {
		lc.logger.WithError(err).Error("Model retraining failed")
		return nil, domain.ModelUnavailable(fmt.Errorf("load: %v; retrain: %w", loadErr, err))
	}

	lc.current.Store(mc)
	lc.logger.WithField("bundle_id", mc.BundleID).Info("Retrained model published")
	return mc, nil
}

// Reload re-reads the artifacts without retraining. On failure the current
// context stays published and the error is returned.
func (lc *Lifecycle) Reload(ctx context.Context) (*ModelContext, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mc, err := lc.loader.TryLoad()
	if err != nil {
		return nil, err
	}

	prev := lc.current.Swap(mc)
	fields := logrus.Fields{"bundle_id": mc.BundleID}
	if prev != nil {
		fields["previous_bundle_id"] = prev.BundleID
	}
	lc.logger.WithFields(fields).Info("Model reloaded")
	return mc, nil
}

// Publish installs an already built context, e.g. after explicit training.
func (lc *Lifecycle) Publish(mc *ModelContext) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.current.Store(mc)
}

// Current returns the published context or ErrModelUnavailable.
func (lc *Lifecycle) Current() (*ModelContext, error) {
	mc := lc.current.Load()
	if mc == nil {
		return nil, domain.ModelUnavailable(nil)
	}
	return mc, nil
}

// Classifier predicts against whatever context is currently published.
type Classifier struct {
	lifecycle *Lifecycle
	topK      int
}

// NewClassifier creates a classifier returning topK ranked labels.
func NewClassifier(lifecycle *Lifecycle, topK int) *Classifier {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Classifier{lifecycle: lifecycle, topK: topK}
}

// Predict classifies vec with the current model.
func (c *Classifier) Predict(vec domain.FeatureVector) (*domain.PredictionResult, error) {
	mc, err := c.lifecycle.Current()
	if err != nil {
		return nil, err
	}
	return mc.Predict(vec, c.topK)
}
