package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/history"
	"github.com/symptom-dx-server/internal/model"
	"github.com/symptom-dx-server/internal/training"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	config   domain.ConfigManager
	logger   *logrus.Logger
	out      io.Writer
	reader   *bufio.Reader
	lookPath LookPathFunc
}

// NewCLI creates a new setup CLI instance.
func NewCLI(config domain.ConfigManager, logger *logrus.Logger) *CLI {
	return &CLI{
		config:   config,
		logger:   logger,
		out:      os.Stdout,
		reader:   bufio.NewReader(os.Stdin),
		lookPath: exec.LookPath,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "train":
		return c.train(ctx, args[1:])
	case "status":
		return c.showStatus()
	case "validate":
		return c.validate()
	case "history":
		return c.history(ctx, args[1:])
	case "claude-desktop":
		return c.setupClaudeDesktop(args[1:])
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		c.showHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (c *CLI) showHelp() error {
	help := `
Symptom Diagnosis Server Setup

Usage:
  server setup <command> [options]

Commands:
  train [--dataset PATH]      Train a model bundle from the labeled CSV and save it
  status                      Show model, dataset and OCR tool status
  validate                    Validate configuration and environment
  history export FILE         Export prediction history as JSON
  history import FILE         Import a JSON export, skipping existing records
  history migrate up|down|version
                              Manage the Postgres history schema
  claude-desktop [--binary PATH] [--auto]
                              Register the MCP server with Claude Desktop

Examples:
  server setup train --dataset data/Training.csv
  server setup status
  server setup history export predictions.json
`
	fmt.Fprintln(c.out, help)
	return nil
}

func (c *CLI) loader() *model.Loader {
	return model.NewLoader(model.NewArtifactStore(c.config.GetModelConfig().ArtifactDir), c.logger)
}

// train fits a bundle, reports training accuracy and persists it.
func (c *CLI) train(ctx context.Context, args []string) error {
	cfg := *c.config.GetModelConfig()
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dataset", "-d":
			if i+1 < len(args) {
				cfg.DatasetPath = args[i+1]
				i++
			}
		}
	}
	if cfg.DatasetPath == "" {
		return fmt.Errorf("no dataset configured; pass --dataset or set model.dataset_path")
	}

	store := model.NewArtifactStore(cfg.ArtifactDir)
	trainer := training.NewTrainer(cfg, store, c.logger)

	fmt.Fprintf(c.out, "Training from %s ...\n", cfg.DatasetPath)
	mc, ds, err := trainer.Train(ctx)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	acc, err := training.Accuracy(mc, ds)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	bundleID, err := store.Save(mc)
	if err != nil {
		return fmt.Errorf("failed to save artifacts: %w", err)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "✓ Model bundle %s saved to %s\n", bundleID, store.Dir())
	fmt.Fprintf(c.out, "  Samples:  %d\n", ds.Len())
	fmt.Fprintf(c.out, "  Symptoms: %d\n", mc.Lexicon.Len())
	fmt.Fprintf(c.out, "  Diseases: %d\n", mc.Encoder.Len())
	fmt.Fprintf(c.out, "  Trees:    %d\n", len(mc.Forest.Trees))
	fmt.Fprintf(c.out, "  Training accuracy: %.2f%%\n", acc*100)
	return nil
}

// showStatus displays the current setup status.
func (c *CLI) showStatus() error {
	status := GetStatus(c.config.GetConfig(), c.loader(), c.lookPath)

	fmt.Fprintln(c.out, "Symptom Diagnosis Server Status")
	fmt.Fprintln(c.out, "===============================")
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "Model:")
	fmt.Fprintf(c.out, "  Artifact dir: %s\n", status.ArtifactDir)
	for _, name := range model.ArtifactFiles {
		fmt.Fprintf(c.out, "  %-20s %s\n", name+":", mark(status.ArtifactsPresent[name], "present", "missing"))
	}
	if status.BundleID != "" {
		fmt.Fprintf(c.out, "  Bundle: %s (%d symptoms, %d diseases, %d trees)\n",
			status.BundleID, status.SymptomCount, status.DiseaseCount, status.TreeCount)
	}
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "Dataset:")
	if status.DatasetPath == "" {
		fmt.Fprintln(c.out, "  - Not configured")
	} else {
		fmt.Fprintf(c.out, "  %s: %s\n", status.DatasetPath, mark(status.DatasetPresent, "present", "missing"))
	}
	fmt.Fprintln(c.out)

	fmt.Fprintln(c.out, "OCR tools:")
	names := make([]string, 0, len(status.Binaries))
	for name := range status.Binaries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := status.Binaries[name]
		fmt.Fprintf(c.out, "  %-10s %s\n", name+":", mark(path != "", path, "not found"))
	}
	if status.SidecarURL != "" {
		fmt.Fprintf(c.out, "  sidecar:   %s\n", status.SidecarURL)
	} else {
		fmt.Fprintln(c.out, "  sidecar:   - disabled")
	}
	fmt.Fprintln(c.out)

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
		fmt.Fprintln(c.out)
	}
	return nil
}

// validate checks the current configuration.
func (c *CLI) validate() error {
	fmt.Fprintln(c.out, "Validating configuration...")
	fmt.Fprintln(c.out)

	valid, issues := Validate(c.config, c.loader(), c.lookPath)
	if valid {
		fmt.Fprintln(c.out, "✓ Configuration is valid!")
		for _, issue := range issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
		return nil
	}

	fmt.Fprintln(c.out, "✗ Configuration has issues:")
	for _, issue := range issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	return fmt.Errorf("configuration is not valid")
}

func (c *CLI) history(ctx context.Context, args []string) error {
	if len(args) == 2 && args[0] == "migrate" {
		return c.migrate(args[1])
	}
	if len(args) != 2 || (args[0] != "export" && args[0] != "import") {
		return fmt.Errorf("usage: setup history export|import FILE or history migrate up|down|version")
	}

	store, err := history.Open(ctx, c.config.GetConfig().History)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	if store == nil {
		return fmt.Errorf("prediction history is disabled")
	}
	defer store.Close()

	path := args[1]
	if args[0] == "export" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		if err := store.ExportJSON(ctx, f); err != nil {
			return err
		}
		count, _ := store.Count(ctx)
		fmt.Fprintf(c.out, "✓ Exported %d predictions to %s\n", count, path)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	imported, skipped, err := store.ImportJSON(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "✓ Imported %d predictions (%d already present)\n", imported, skipped)
	return nil
}

// migrate runs the Postgres history migrations.
func (c *CLI) migrate(action string) error {
	cfg := c.config.GetConfig().History
	if !strings.EqualFold(cfg.Driver, history.DriverPostgres) || cfg.PostgresURL == "" {
		return fmt.Errorf("migrations apply only to the postgres history driver")
	}

	runner, err := history.NewMigrationRunner(cfg.PostgresURL, c.logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	switch action {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	case "version":
	default:
		return fmt.Errorf("unknown migrate action: %s", action)
	}
	if err != nil {
		return err
	}

	version, dirty, err := runner.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	fmt.Fprintf(c.out, "✓ History schema version %d (dirty: %t)\n", version, dirty)
	return nil
}

// setupClaudeDesktop registers the MCP server with Claude Desktop.
func (c *CLI) setupClaudeDesktop(args []string) error {
	var binaryPath string
	autoConfirm := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--binary", "-b":
			if i+1 < len(args) {
				binaryPath = args[i+1]
				i++
			}
		case "--auto", "-y":
			autoConfirm = true
		}
	}

	if binaryPath == "" {
		found, err := FindMCPBinary()
		if err != nil {
			return fmt.Errorf("could not find MCP server binary, pass --binary: %w", err)
		}
		binaryPath = found
	}

	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		return err
	}
	artifactDir := c.config.GetModelConfig().ArtifactDir

	fmt.Fprintln(c.out, "Claude Desktop Configuration")
	fmt.Fprintln(c.out, "============================")
	fmt.Fprintf(c.out, "Config file:   %s\n", configPath)
	fmt.Fprintf(c.out, "Server binary: %s\n", binaryPath)
	fmt.Fprintf(c.out, "Artifact dir:  %s\n", artifactDir)
	fmt.Fprintln(c.out)

	if !autoConfirm {
		fmt.Fprint(c.out, "Proceed with configuration? [Y/n]: ")
		response, _ := c.reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Configuration cancelled.")
			return nil
		}
	}

	if err := RegisterMCPServer(configPath, binaryPath, artifactDir); err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "✓ Claude Desktop configured successfully!")
	fmt.Fprintln(c.out, "  Restart Claude Desktop to load the new configuration.")
	return nil
}

func mark(ok bool, yes, no string) string {
	if ok {
		return "✓ " + yes
	}
	return "✗ " + no
}
