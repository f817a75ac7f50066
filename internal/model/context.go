package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/symptom-dx-server/internal/domain"
)

// DefaultTopK is the number of ranked predictions returned by default.
const DefaultTopK = 3

// ModelContext bundles a trained forest with the encoder and lexicon it was
// trained against. It is read-only once published.
type ModelContext struct {
	BundleID string
	Forest   *RandomForest
	Encoder  *LabelEncoder
	Lexicon  *domain.Lexicon
	LoadedAt time.Time
}

// NewModelContext checks that the three parts agree and returns a context.
func NewModelContext(bundleID string, forest *RandomForest, enc *LabelEncoder, lex *domain.Lexicon) (*ModelContext, error) {
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forest: %w", err)
	}
	if enc == nil || enc.Len() == 0 {
		return nil, fmt.Errorf("label encoder is empty")
	}
	if lex.Len() == 0 {
		return nil, fmt.Errorf("symptom lexicon is empty")
	}
	if forest.NumClasses != enc.Len() {
		return nil, fmt.Errorf("forest has %d classes but encoder has %d", forest.NumClasses, enc.Len())
	}
	if forest.NumFeatures != lex.Len() {
		return nil, fmt.Errorf("forest expects %d features but lexicon has %d", forest.NumFeatures, lex.Len())
	}
	return &ModelContext{
		BundleID: bundleID,
		Forest:   forest,
		Encoder:  enc,
		Lexicon:  lex,
		LoadedAt: time.Now().UTC(),
	}, nil
}

// Predict classifies vec and returns the primary label, the full
// distribution and the top k labels by probability. Ties rank by ascending
// code. k is clamped to the number of classes; k <= 0 means DefaultTopK.
func (mc *ModelContext) Predict(vec domain.FeatureVector, k int) (*domain.PredictionResult, error) {
	if len(vec) != mc.Lexicon.Len() {
		return nil, domain.InvalidInput(fmt.Sprintf("feature vector has length %d, lexicon has %d symptoms", len(vec), mc.Lexicon.Len()))
	}

	proba, err := mc.Forest.PredictProba(vec)
	if err != nil {
		return nil, err
	}

	dist := make([]domain.LabelProbability, len(proba))
	for code, p := range proba {
		label, err := mc.Encoder.Decode(code)
		if err != nil {
			return nil, err
		}
		dist[code] = domain.LabelProbability{Disease: label, Code: code, Probability: p}
	}

	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(dist) {
		k = len(dist)
	}

	ranked := make([]domain.LabelProbability, len(dist))
	copy(ranked, dist)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		return ranked[i].Code < ranked[j].Code
	})

	top := make([]domain.RankedPrediction, k)
	for i := 0; i < k; i++ {
		top[i] = domain.RankedPrediction{
			Disease:     ranked[i].Disease,
			Code:        ranked[i].Code,
			Probability: ranked[i].Probability,
			Confidence:  domain.ConfidencePercent(ranked[i].Probability),
		}
	}

	primary := dist[Argmax(proba)]
	return &domain.PredictionResult{
		Prediction:     primary.Disease,
		Confidence:     domain.ConfidencePercent(primary.Probability),
		TopPredictions: top,
		Distribution:   dist,
		ModelBundle:    mc.BundleID,
	}, nil
}
