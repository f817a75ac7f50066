package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/features"
	"github.com/symptom-dx-server/internal/history"
	"github.com/symptom-dx-server/internal/matcher"
	"github.com/symptom-dx-server/internal/model"
)

// DisplayTextLimit is the number of characters of extracted text returned
// to clients before truncation.
const DisplayTextLimit = 500

// Extraction statuses
const (
	StatusOK              = "ok"
	StatusNoSymptomsFound = "no_symptoms_found"
)

// ModelProvider hands out the currently published model context.
type ModelProvider interface {
	Current() (*model.ModelContext, error)
}

// DiagnosisService runs the document → symptoms → prediction pipeline.
type DiagnosisService struct {
	models    ModelProvider
	extractor domain.TextExtractor
	history   history.Store
	cache     *PredictionCache
	topK      int
	logger    *logrus.Logger
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*DiagnosisService)

// WithHistory records every prediction in store.
func WithHistory(store history.Store) ServiceOption {
	return func(s *DiagnosisService) { s.history = store }
}

// WithCache memoizes predictions in cache.
func WithCache(cache *PredictionCache) ServiceOption {
	return func(s *DiagnosisService) { s.cache = cache }
}

// NewDiagnosisService creates the pipeline service. extractor may be nil
// when only manual prediction is needed.
func NewDiagnosisService(models ModelProvider, extractor domain.TextExtractor, topK int, logger *logrus.Logger, opts ...ServiceOption) *DiagnosisService {
	if topK <= 0 {
		topK = model.DefaultTopK
	}
	s := &DiagnosisService{
		models:    models,
		extractor: extractor,
		topK:      topK,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractionResult is the outcome of reading a document.
type ExtractionResult struct {
	Text         string                    `json:"-"`
	DisplayText  string                    `json:"extracted_text"`
	Symptoms     []string                  `json:"found_symptoms"`
	SymptomCount int                       `json:"symptom_count"`
	Status       string                    `json:"status"`
	Document     *domain.ExtractedDocument `json:"-"`
}

// PredictRequest carries a manual or document-derived symptom list.
type PredictRequest struct {
	Symptoms  []string
	Source    history.Source
	RequestID string
}

// PredictionOutcome is a prediction plus the symptom bookkeeping behind it.
// Selected echoes the trimmed request in its original order; Recognized is
// the lexicon-ordered subset the model actually saw.
type PredictionOutcome struct {
	Result     *domain.PredictionResult
	Selected   []string
	Recognized []string
	Unknown    []string
	RecordID   string
	Cached     bool
}

// DiagnosisOutcome combines extraction and prediction. Prediction is nil
// when no symptoms were found.
type DiagnosisOutcome struct {
	Extraction *ExtractionResult
	Prediction *PredictionOutcome
}

// Symptoms returns the lexicon of the current model.
func (s *DiagnosisService) Symptoms() ([]domain.Symptom, error) {
	mc, err := s.models.Current()
	if err != nil {
		return nil, err
	}
	return mc.Lexicon.Symptoms(), nil
}

// MatchText runs the symptom matcher against the current lexicon.
func (s *DiagnosisService) MatchText(text string) ([]string, error) {
	mc, err := s.models.Current()
	if err != nil {
		return nil, err
	}
	return matcher.Match(text, mc.Lexicon).Sorted(mc.Lexicon), nil
}

// ExtractSymptoms OCRs doc and matches the text against the lexicon. An
// empty match is reported through Status, not as an error.
func (s *DiagnosisService) ExtractSymptoms(ctx context.Context, doc domain.Document) (*ExtractionResult, error) {
	if s.extractor == nil {
		return nil, domain.ExtractionFailed("text extraction is not configured")
	}
	mc, err := s.models.Current()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	extracted, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}

	found := matcher.Match(extracted.Text, mc.Lexicon).Sorted(mc.Lexicon)
	status := StatusOK
	if len(found) == 0 {
		status = StatusNoSymptomsFound
	}

	s.logger.WithFields(logrus.Fields{
		"kind":          doc.Kind,
		"pages":         len(extracted.Pages),
		"text_length":   len(extracted.Text),
		"symptom_count": len(found),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Document processed")

	return &ExtractionResult{
		Text:         extracted.Text,
		DisplayText:  TruncateText(extracted.Text, DisplayTextLimit),
		Symptoms:     found,
		SymptomCount: len(found),
		Status:       status,
		Document:     extracted,
	}, nil
}

// Predict classifies a symptom list. Unknown identifiers are ignored and
// reported back.
func (s *DiagnosisService) Predict(ctx context.Context, req PredictRequest) (*PredictionOutcome, error) {
	symptoms := make([]string, 0, len(req.Symptoms))
	for _, id := range req.Symptoms {
		if id = strings.TrimSpace(id); id != "" {
			symptoms = append(symptoms, id)
		}
	}
	if len(symptoms) == 0 {
		return nil, domain.InvalidInput("No symptoms selected")
	}

	mc, err := s.models.Current()
	if err != nil {
		return nil, err
	}

	vec, unknown := features.FromIdentifiers(symptoms, mc.Lexicon)
	outcome := &PredictionOutcome{
		Selected:   symptoms,
		Recognized: features.Selected(vec, mc.Lexicon),
		Unknown:    unknown,
	}

	var key string
	if s.cache != nil {
		key = PredictionKey(mc.BundleID, vec, s.topK)
		if result, ok := s.cache.Get(ctx, key); ok {
			outcome.Result = result
			outcome.Cached = true
		}
	}
	if outcome.Result == nil {
		result, err := mc.Predict(vec, s.topK)
		if err != nil {
			return nil, err
		}
		outcome.Result = result
		if s.cache != nil {
			s.cache.Set(ctx, key, result)
		}
	}

	if len(unknown) > 0 {
		s.logger.WithFields(logrus.Fields{
			"request_id": req.RequestID,
			"unknown":    unknown,
		}).Debug("Ignoring unknown symptoms")
	}

	outcome.RecordID = s.record(ctx, req, outcome)
	return outcome, nil
}

// Diagnose extracts symptoms from doc and, when any are found, predicts.
func (s *DiagnosisService) Diagnose(ctx context.Context, doc domain.Document, requestID string) (*DiagnosisOutcome, error) {
	extraction, err := s.ExtractSymptoms(ctx, doc)
	if err != nil {
		return nil, err
	}
	out := &DiagnosisOutcome{Extraction: extraction}
	if extraction.Status == StatusNoSymptomsFound {
		return out, nil
	}

	prediction, err := s.Predict(ctx, PredictRequest{
		Symptoms:  extraction.Symptoms,
		Source:    history.SourceDocument,
		RequestID: requestID,
	})
	if err != nil {
		return nil, err
	}
	out.Prediction = prediction
	return out, nil
}

// record stores the prediction. History failures never fail the request.
func (s *DiagnosisService) record(ctx context.Context, req PredictRequest, outcome *PredictionOutcome) string {
	if s.history == nil {
		return ""
	}
	source := req.Source
	if source == "" {
		source = history.SourceManual
	}

	rec := history.RecordFromResult(req.RequestID, source, outcome.Selected, outcome.Unknown, outcome.Result)
	if err := s.history.Save(ctx, rec); err != nil {
		s.logger.WithFields(logrus.Fields{
			"request_id": req.RequestID,
			"error":      err.Error(),
		}).Warn("Failed to record prediction history")
		return ""
	}
	return rec.ID
}

// TruncateText cuts text to limit characters and appends "..." when
// anything was removed.
func TruncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
