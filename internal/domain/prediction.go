package domain

import "math"

// FeatureVector is the binary classifier input. Index i is 1 iff lexicon
// symptom i is present; its length always equals the lexicon size.
type FeatureVector []uint8

// Count returns the number of set features.
func (v FeatureVector) Count() int {
	n := 0
	for _, b := range v {
		if b != 0 {
			n++
		}
	}
	return n
}

// Key renders the vector as a compact bit string usable as a cache key.
func (v FeatureVector) Key() string {
	buf := make([]byte, len(v))
	for i, b := range v {
		if b != 0 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// DiseaseLabel is a canonical disease name as it appears in the training data.
type DiseaseLabel string

// LabelProbability pairs a label with its encoder code and probability.
type LabelProbability struct {
	Disease     DiseaseLabel `json:"disease"`
	Code        int          `json:"code"`
	Probability float64      `json:"probability"`
}

// RankedPrediction is a single top-k entry.
type RankedPrediction struct {
	Disease     DiseaseLabel `json:"disease"`
	Code        int          `json:"code"`
	Probability float64      `json:"probability"`
	Confidence  float64      `json:"confidence"`
}

// PredictionResult is the classifier output for one feature vector.
type PredictionResult struct {
	Prediction     DiseaseLabel       `json:"prediction"`
	Confidence     float64            `json:"confidence"`
	TopPredictions []RankedPrediction `json:"top_predictions"`
	// Distribution holds every known label in encoder code order.
	Distribution []LabelProbability `json:"distribution"`
	ModelBundle  string             `json:"model_bundle"`
}

// ConfidencePercent converts a probability into a percentage rounded to two
// decimal places.
func ConfidencePercent(p float64) float64 {
	return math.Round(p*100*100) / 100
}
