package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/history"
	"github.com/symptom-dx-server/internal/model"
)

var fixtureSymptoms = []string{"itching", "skin_rash", "high_fever", "cough"}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fixtureContext returns a two-tree forest over fixtureSymptoms with
// classes Allergy=0, Common Cold=1, Fungal infection=2.
//
//	{}                  -> Allergy 75%
//	{itching}           -> Fungal infection 75%
//	{high_fever, cough} -> Common Cold 90%
func fixtureContext(t *testing.T) *model.ModelContext {
	t.Helper()
	leaf := func(v ...float64) model.Node { return model.Node{Feature: model.LeafFeature, Value: v} }
	forest := &model.RandomForest{
		NumClasses:  3,
		NumFeatures: len(fixtureSymptoms),
		Trees: []model.Tree{
			{Nodes: []model.Node{
				{Feature: 0, Left: 1, Right: 4},
				{Feature: 2, Left: 2, Right: 3},
				leaf(1, 0, 0),
				leaf(0, 1, 0),
				leaf(0, 0, 1),
			}},
			{Nodes: []model.Node{
				{Feature: 3, Left: 1, Right: 2},
				leaf(0.5, 0, 0.5),
				leaf(0, 0.8, 0.2),
			}},
		},
	}
	lex, err := domain.NewLexicon(fixtureSymptoms)
	require.NoError(t, err)
	mc, err := model.NewModelContext("bundle-fixture", forest,
		model.NewLabelEncoder([]string{"Allergy", "Common Cold", "Fungal infection"}), lex)
	require.NoError(t, err)
	return mc
}

type staticModels struct {
	mc  *model.ModelContext
	err error
}

func (s staticModels) Current() (*model.ModelContext, error) { return s.mc, s.err }

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, doc domain.Document) (*domain.ExtractedDocument, error) {
	args := m.Called(ctx, doc)
	if v := args.Get(0); v != nil {
		return v.(*domain.ExtractedDocument), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStore struct {
	mock.Mock
	history.Store
}

func (m *mockStore) Save(ctx context.Context, record *history.Record) error {
	args := m.Called(ctx, record)
	if args.Error(0) == nil {
		record.ID = "rec-1"
	}
	return args.Error(0)
}

func newService(t *testing.T, ex domain.TextExtractor, opts ...ServiceOption) *DiagnosisService {
	return NewDiagnosisService(staticModels{mc: fixtureContext(t)}, ex, 3, quietLogger(), opts...)
}

func TestPredict_RanksAndReportsUnknown(t *testing.T) {
	svc := newService(t, nil)

	out, err := svc.Predict(context.Background(), PredictRequest{
		Symptoms: []string{"cough", "glowing_skin", " high_fever "},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DiseaseLabel("Common Cold"), out.Result.Prediction)
	assert.InDelta(t, 90.0, out.Result.Confidence, 1e-9)
	require.Len(t, out.Result.TopPredictions, 3)
	assert.Equal(t, domain.DiseaseLabel("Fungal infection"), out.Result.TopPredictions[1].Disease)
	assert.Equal(t, []string{"cough", "glowing_skin", "high_fever"}, out.Selected)
	assert.Equal(t, []string{"high_fever", "cough"}, out.Recognized)
	assert.Equal(t, []string{"glowing_skin"}, out.Unknown)
	assert.Equal(t, "bundle-fixture", out.Result.ModelBundle)
}

func TestPredict_EmptyInputRejectedBeforeModel(t *testing.T) {
	svc := NewDiagnosisService(staticModels{err: domain.ModelUnavailable(nil)}, nil, 3, quietLogger())

	for _, symptoms := range [][]string{nil, {}, {"", "  "}} {
		_, err := svc.Predict(context.Background(), PredictRequest{Symptoms: symptoms})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestPredict_AllUnknownStillPredicts(t *testing.T) {
	svc := newService(t, nil)

	out, err := svc.Predict(context.Background(), PredictRequest{Symptoms: []string{"nonsense"}})
	require.NoError(t, err)

	assert.Equal(t, domain.DiseaseLabel("Allergy"), out.Result.Prediction)
	assert.Equal(t, []string{"nonsense"}, out.Selected)
	assert.Empty(t, out.Recognized)
	assert.Equal(t, []string{"nonsense"}, out.Unknown)
}

func TestPredict_ModelUnavailable(t *testing.T) {
	svc := NewDiagnosisService(staticModels{err: domain.ModelUnavailable(nil)}, nil, 3, quietLogger())

	_, err := svc.Predict(context.Background(), PredictRequest{Symptoms: []string{"cough"}})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestPredict_UsesCache(t *testing.T) {
	cache, err := NewPredictionCache(domain.CacheConfig{MaxItems: 10}, nil, quietLogger())
	require.NoError(t, err)
	svc := newService(t, nil, WithCache(cache))

	first, err := svc.Predict(context.Background(), PredictRequest{Symptoms: []string{"itching"}})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Predict(context.Background(), PredictRequest{Symptoms: []string{"itching", "unknown_thing"}})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, []string{"unknown_thing"}, second.Unknown)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.MemoryHits)
	assert.Equal(t, int64(1), stats.MemoryMisses)
}

func TestPredict_RecordsHistory(t *testing.T) {
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.MatchedBy(func(r *history.Record) bool {
		return r.Source == history.SourceManual &&
			r.Prediction == "Fungal infection" &&
			r.RequestID == "req-42" &&
			r.ModelBundle == "bundle-fixture"
	})).Return(nil).Once()

	svc := newService(t, nil, WithHistory(store))
	out, err := svc.Predict(context.Background(), PredictRequest{Symptoms: []string{"itching"}, RequestID: "req-42"})
	require.NoError(t, err)

	assert.Equal(t, "rec-1", out.RecordID)
	store.AssertExpectations(t)
}

func TestPredict_HistoryFailureIsNotFatal(t *testing.T) {
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	svc := newService(t, nil, WithHistory(store))
	out, err := svc.Predict(context.Background(), PredictRequest{Symptoms: []string{"itching"}})

	require.NoError(t, err)
	assert.Empty(t, out.RecordID)
	assert.Equal(t, domain.DiseaseLabel("Fungal infection"), out.Result.Prediction)
}

func TestExtractSymptoms(t *testing.T) {
	doc := domain.Document{Path: "/tmp/note.png", Kind: domain.DocumentImage}
	ex := &mockExtractor{}
	ex.On("Extract", mock.Anything, doc).Return(&domain.ExtractedDocument{
		Kind: domain.DocumentImage,
		Text: "Patient reports a cough with HIGH FEVER",
	}, nil)

	svc := newService(t, ex)
	res, err := svc.ExtractSymptoms(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []string{"high_fever", "cough"}, res.Symptoms)
	assert.Equal(t, 2, res.SymptomCount)
	assert.Equal(t, res.Text, res.DisplayText)
}

func TestExtractSymptoms_NoSymptomsIsStatus(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("Extract", mock.Anything, mock.Anything).Return(&domain.ExtractedDocument{Text: "nothing relevant"}, nil)

	svc := newService(t, ex)
	res, err := svc.ExtractSymptoms(context.Background(), domain.Document{Kind: domain.DocumentImage})
	require.NoError(t, err)

	assert.Equal(t, StatusNoSymptomsFound, res.Status)
	assert.Empty(t, res.Symptoms)
}

func TestExtractSymptoms_ExtractionFailed(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("Extract", mock.Anything, mock.Anything).Return(nil, domain.ExtractionFailed("all methods empty"))

	svc := newService(t, ex)
	_, err := svc.ExtractSymptoms(context.Background(), domain.Document{Kind: domain.DocumentImage})

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.NotErrorIs(t, err, domain.ErrNoSymptomsFound)
}

func TestExtractSymptoms_NoExtractor(t *testing.T) {
	svc := newService(t, nil)
	_, err := svc.ExtractSymptoms(context.Background(), domain.Document{})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestDiagnose(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("Extract", mock.Anything, mock.Anything).Return(&domain.ExtractedDocument{Text: "severe itching"}, nil)
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.MatchedBy(func(r *history.Record) bool {
		return r.Source == history.SourceDocument
	})).Return(nil)

	svc := newService(t, ex, WithHistory(store))
	out, err := svc.Diagnose(context.Background(), domain.Document{Kind: domain.DocumentImage}, "req-7")
	require.NoError(t, err)

	require.NotNil(t, out.Prediction)
	assert.Equal(t, domain.DiseaseLabel("Fungal infection"), out.Prediction.Result.Prediction)
	store.AssertExpectations(t)
}

func TestDiagnose_NoSymptomsSkipsPrediction(t *testing.T) {
	ex := &mockExtractor{}
	ex.On("Extract", mock.Anything, mock.Anything).Return(&domain.ExtractedDocument{Text: "zzz"}, nil)

	svc := newService(t, ex)
	out, err := svc.Diagnose(context.Background(), domain.Document{Kind: domain.DocumentImage}, "")
	require.NoError(t, err)

	assert.Equal(t, StatusNoSymptomsFound, out.Extraction.Status)
	assert.Nil(t, out.Prediction)
}

func TestMatchTextAndSymptoms(t *testing.T) {
	svc := newService(t, nil)

	found, err := svc.MatchText("skin rash and itching")
	require.NoError(t, err)
	assert.Equal(t, []string{"itching", "skin_rash"}, found)

	symptoms, err := svc.Symptoms()
	require.NoError(t, err)
	assert.Len(t, symptoms, len(fixtureSymptoms))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 500))

	exact := strings.Repeat("a", 500)
	assert.Equal(t, exact, TruncateText(exact, 500))

	long := strings.Repeat("b", 501)
	got := TruncateText(long, 500)
	assert.Equal(t, strings.Repeat("b", 500)+"...", got)

	assert.Equal(t, "éé...", TruncateText("ééé", 2))
}
