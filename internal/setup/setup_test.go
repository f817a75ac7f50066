package setup

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/config"
	"github.com/symptom-dx-server/internal/logging"
	"github.com/symptom-dx-server/internal/model"
)

const trainingCSV = `itching,skin_rash,high_fever,cough,prognosis
1,1,0,0,Fungal infection
1,0,0,0,Fungal infection
0,0,1,1,Common Cold
0,0,1,0,Common Cold
0,1,0,1,Allergy
0,1,0,0,Allergy
`

type testEnv struct {
	dir     string
	cli     *CLI
	out     *bytes.Buffer
	manager *config.Manager
}

func fakeLookPath(found ...string) LookPathFunc {
	return func(file string) (string, error) {
		for _, f := range found {
			if f == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", errors.New("not found")
	}
}

func newTestEnv(t *testing.T, withDataset bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "Training.csv")
	if withDataset {
		require.NoError(t, os.WriteFile(dataset, []byte(trainingCSV), 0644))
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
model:
  artifact_dir: %s
  dataset_path: %s
  training:
    n_estimators: 5
    bootstrap: false
history:
  driver: sqlite
  sqlite_path: %s
`, filepath.Join(dir, "models"), dataset, filepath.Join(dir, "history.db"))), 0644))

	manager, err := config.NewManagerWithFile(cfgPath)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cli := NewCLI(manager, logging.Discard())
	cli.out = out
	cli.lookPath = fakeLookPath("tesseract", "pdftoppm")
	return &testEnv{dir: dir, cli: cli, out: out, manager: manager}
}

func TestCLI_TrainThenStatus(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.cli.Run(ctx, []string{"train"}))
	assert.Contains(t, env.out.String(), "Training accuracy: 100.00%")
	assert.Contains(t, env.out.String(), "Diseases: 3")

	for _, name := range model.ArtifactFiles {
		_, err := os.Stat(filepath.Join(env.dir, "models", name))
		assert.NoError(t, err, name)
	}

	env.out.Reset()
	require.NoError(t, env.cli.Run(ctx, []string{"status"}))
	out := env.out.String()
	assert.Contains(t, out, "Bundle:")
	assert.Contains(t, out, "4 symptoms, 3 diseases, 5 trees")
	assert.Contains(t, out, "/usr/bin/tesseract")
	assert.NotContains(t, out, "Issues:")
}

func TestCLI_TrainMissingDataset(t *testing.T) {
	env := newTestEnv(t, false)
	err := env.cli.Run(context.Background(), []string{"train"})
	assert.Error(t, err)
}

func TestCLI_TrainDatasetFlag(t *testing.T) {
	env := newTestEnv(t, false)
	other := filepath.Join(env.dir, "other.csv")
	require.NoError(t, os.WriteFile(other, []byte(trainingCSV), 0644))

	require.NoError(t, env.cli.Run(context.Background(), []string{"train", "--dataset", other}))
	assert.Contains(t, env.out.String(), other)
}

func TestGetStatus_ReportsIssues(t *testing.T) {
	env := newTestEnv(t, false)
	loader := model.NewLoader(model.NewArtifactStore(filepath.Join(env.dir, "models")), logging.Discard())

	status := GetStatus(env.manager.GetConfig(), loader, fakeLookPath())

	assert.False(t, status.Ready())
	assert.Empty(t, status.BundleID)
	assert.Equal(t, "", status.Binaries["tesseract"])
	joined := strings.Join(status.Issues, "\n")
	assert.Contains(t, joined, "Model artifacts missing")
	assert.Contains(t, joined, "tesseract not found")
	assert.Contains(t, joined, "pdftoppm not found")
}

func TestValidate_DatasetIsEnough(t *testing.T) {
	env := newTestEnv(t, true)
	loader := model.NewLoader(model.NewArtifactStore(filepath.Join(env.dir, "models")), logging.Discard())

	valid, issues := Validate(env.manager, loader, fakeLookPath())
	assert.True(t, valid)
	assert.NotEmpty(t, issues)

	require.NoError(t, env.cli.Run(context.Background(), []string{"validate"}))
	assert.Contains(t, env.out.String(), "Configuration is valid")
}

func TestCLI_ValidateFails(t *testing.T) {
	env := newTestEnv(t, false)
	err := env.cli.Run(context.Background(), []string{"validate"})
	assert.Error(t, err)
	assert.Contains(t, env.out.String(), "Configuration has issues")
}

func TestCLI_HistoryExportImport(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	exportPath := filepath.Join(env.dir, "export.json")

	require.NoError(t, env.cli.Run(ctx, []string{"history", "export", exportPath}))
	assert.Contains(t, env.out.String(), "Exported 0 predictions")

	require.NoError(t, env.cli.Run(ctx, []string{"history", "import", exportPath}))
	assert.Contains(t, env.out.String(), "Imported 0 predictions")

	assert.Error(t, env.cli.Run(ctx, []string{"history", "purge"}))
}

func TestCLI_UnknownCommand(t *testing.T) {
	env := newTestEnv(t, false)
	assert.Error(t, env.cli.Run(context.Background(), []string{"frobnicate"}))
	assert.Contains(t, env.out.String(), "Usage:")
}

func TestCLI_ClaudeDesktop(t *testing.T) {
	env := newTestEnv(t, false)
	t.Setenv("XDG_CONFIG_HOME", env.dir)
	t.Setenv("HOME", env.dir)
	env.cli.reader = bufio.NewReader(strings.NewReader("y\n"))

	configPath, err := GetClaudeDesktopConfigPath()
	require.NoError(t, err)

	require.NoError(t, env.cli.Run(context.Background(), []string{"claude-desktop", "--binary", "/opt/bin/mcp-server"}))

	cfg, err := LoadClaudeDesktopConfig(configPath)
	require.NoError(t, err)
	entry, ok := cfg.MCPServers[MCPServerName]
	require.True(t, ok)
	assert.Equal(t, "/opt/bin/mcp-server", entry.Command)
	assert.Equal(t, "stderr", entry.Env["SYMPTOMDX_LOGGING_OUTPUT"])
	assert.Equal(t, filepath.Join(env.dir, "models"), entry.Env["SYMPTOMDX_MODEL_ARTIFACT_DIR"])
}

func TestRegisterMCPServer_PreservesOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude_desktop_config.json")
	require.NoError(t, SaveClaudeDesktopConfig(path, &ClaudeDesktopConfig{
		MCPServers: map[string]MCPServerConfig{"other": {Command: "/bin/other"}},
	}))

	require.NoError(t, RegisterMCPServer(path, "/bin/mcp-server", ""))

	cfg, err := LoadClaudeDesktopConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.MCPServers, 2)
	assert.Equal(t, "/bin/other", cfg.MCPServers["other"].Command)

	assert.Error(t, RegisterMCPServer(path, "", ""))
}

func TestCLI_HistoryMigrateRequiresPostgres(t *testing.T) {
	env := newTestEnv(t, false)
	err := env.cli.Run(context.Background(), []string{"history", "migrate", "up"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
