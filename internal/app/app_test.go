package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/config"
	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/logging"
	"github.com/symptom-dx-server/internal/model"
	"github.com/symptom-dx-server/internal/service"
)

const trainingCSV = `itching,skin_rash,high_fever,cough,prognosis
1,1,0,0,Fungal infection
1,0,0,0,Fungal infection
0,0,1,1,Common Cold
0,0,1,0,Common Cold
0,1,0,1,Allergy
0,1,0,0,Allergy
`

func newManager(t *testing.T, dir, dataset, historyDriver string) *config.Manager {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
model:
  artifact_dir: %s
  dataset_path: %s
  watch_artifacts: false
  training:
    n_estimators: 5
history:
  driver: %s
  sqlite_path: %s
`, filepath.Join(dir, "models"), dataset, historyDriver, filepath.Join(dir, "history.db"))), 0644))
	m, err := config.NewManagerWithFile(path)
	require.NoError(t, err)
	return m
}

func TestNew_RetrainsAndRecords(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "Training.csv")
	require.NoError(t, os.WriteFile(dataset, []byte(trainingCSV), 0644))
	ctx := context.Background()

	a, err := New(ctx, newManager(t, dir, dataset, "sqlite"), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	mc, err := a.Lifecycle.Current()
	require.NoError(t, err)
	assert.Equal(t, 4, mc.Lexicon.Len())
	assert.True(t, model.NewArtifactStore(filepath.Join(dir, "models")).Exists())

	outcome, err := a.Service.Predict(ctx, service.PredictRequest{Symptoms: []string{"itching"}, RequestID: "req-app"})
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.RecordID)

	count, err := a.History.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Len(t, a.Engine.Methods(), 3)
}

func TestNew_DegradedWithoutModel(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := New(ctx, newManager(t, dir, filepath.Join(dir, "missing.csv"), "none"), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.History)
	_, err = a.Lifecycle.Current()
	assert.Equal(t, domain.ErrCodeModelUnavailable, domain.ErrorCode(err))

	_, err = a.Service.Predict(ctx, service.PredictRequest{Symptoms: []string{"itching"}})
	assert.Error(t, err)
}

func TestNew_BadHistoryDriver(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), newManager(t, dir, "", "mongo"), logging.Discard())
	assert.Error(t, err)
}
