package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/model"
)

// Trainer rebuilds model bundles from the dataset and persists them.
type Trainer struct {
	datasetPath string
	labelColumn string
	params      Params
	store       *model.ArtifactStore
	logger      *logrus.Logger
}

// NewTrainer creates a trainer writing into store.
func NewTrainer(cfg domain.ModelConfig, store *model.ArtifactStore, logger *logrus.Logger) *Trainer {
	return &Trainer{
		datasetPath: cfg.DatasetPath,
		labelColumn: cfg.Training.LabelColumn,
		params:      ParamsFromConfig(cfg.Training),
		store:       store,
		logger:      logger,
	}
}

// Train fits a new bundle from the dataset without persisting it.
func (t *Trainer) Train(ctx context.Context) (*model.ModelContext, *Dataset, error) {
	start := time.Now()

	ds, err := LoadDataset(t.datasetPath, t.labelColumn)
	if err != nil {
		return nil, nil, err
	}

	enc := model.NewLabelEncoder(ds.Labels)
	y := make([]int, ds.Len())
	for i, label := range ds.Labels {
		y[i], _ = enc.Encode(label)
	}

	forest, err := TrainForest(ctx, ds.Rows, y, enc.Len(), t.params)
	if err != nil {
		return nil, nil, fmt.Errorf("train forest: %w", err)
	}

	lex, err := domain.NewLexicon(ds.Symptoms)
	if err != nil {
		return nil, nil, err
	}
	mc, err := model.NewModelContext(uuid.New().String(), forest, enc, lex)
	if err != nil {
		return nil, nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"bundle_id": mc.BundleID,
		"samples":   ds.Len(),
		"symptoms":  len(ds.Symptoms),
		"classes":   enc.Len(),
		"trees":     len(forest.Trees),
		"duration":  time.Since(start).String(),
	}).Info("Model trained")
	return mc, ds, nil
}

// RetrainAndPersist trains a bundle and writes all three artifacts.
func (t *Trainer) RetrainAndPersist(ctx context.Context) (*model.ModelContext, error) {
	mc, _, err := t.Train(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := t.store.Save(mc); err != nil {
		return nil, fmt.Errorf("persist artifacts: %w", err)
	}
	t.logger.WithFields(logrus.Fields{
		"bundle_id": mc.BundleID,
		"dir":       t.store.Dir(),
	}).Info("Model artifacts saved")
	return mc, nil
}

// Accuracy returns the share of dataset rows mc labels correctly.
func Accuracy(mc *model.ModelContext, ds *Dataset) (float64, error) {
	if ds.Len() == 0 {
		return 0, fmt.Errorf("dataset has no rows")
	}
	vecs, err := alignRows(mc.Lexicon, ds)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, vec := range vecs {
		result, err := mc.Predict(vec, 1)
		if err != nil {
			return 0, err
		}
		if string(result.Prediction) == ds.Labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(ds.Len()), nil
}

// alignRows reorders dataset columns into lexicon order so a dataset with
// shuffled columns can still be scored.
func alignRows(lex *domain.Lexicon, ds *Dataset) ([]domain.FeatureVector, error) {
	if len(ds.Symptoms) != lex.Len() {
		return nil, fmt.Errorf("dataset has %d symptom columns, model has %d", len(ds.Symptoms), lex.Len())
	}
	mapping := make([]int, len(ds.Symptoms))
	for j, id := range ds.Symptoms {
		i, ok := lex.Index(id)
		if !ok {
			return nil, fmt.Errorf("dataset column %q not in model lexicon", id)
		}
		mapping[j] = i
	}
	out := make([]domain.FeatureVector, ds.Len())
	for r, row := range ds.Rows {
		vec := make(domain.FeatureVector, lex.Len())
		for j, b := range row {
			vec[mapping[j]] = b
		}
		out[r] = vec
	}
	return out, nil
}
