// Package setup provides model and environment setup utilities for the
// symptom diagnosis server.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/model"
)

// MCPServerName is the key used in desktop client configuration.
const MCPServerName = "symptom-dx"

// LookPathFunc resolves an executable on PATH.
type LookPathFunc func(file string) (string, error)

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Status describes the local model and tool installation.
type Status struct {
	ArtifactDir      string
	ArtifactsPresent map[string]bool
	BundleID         string
	SymptomCount     int
	DiseaseCount     int
	TreeCount        int
	DatasetPath      string
	DatasetPresent   bool
	Binaries         map[string]string // name -> resolved path, "" when missing
	SidecarURL       string
	Issues           []string
}

// Ready reports whether the server could serve predictions as configured.
func (s *Status) Ready() bool {
	return s.BundleID != "" || s.DatasetPresent
}

// GetStatus inspects artifacts, dataset and external binaries.
func GetStatus(cfg *domain.Config, loader *model.Loader, lookPath LookPathFunc) *Status {
	store := loader.Store()
	status := &Status{
		ArtifactDir:      store.Dir(),
		ArtifactsPresent: make(map[string]bool, len(model.ArtifactFiles)),
		DatasetPath:      cfg.Model.DatasetPath,
		Binaries:         make(map[string]string),
		SidecarURL:       cfg.OCR.Sidecar.URL,
		Issues:           []string{},
	}

	for _, name := range model.ArtifactFiles {
		_, err := os.Stat(store.Path(name))
		status.ArtifactsPresent[name] = err == nil
	}

	if store.Exists() {
		mc, err := loader.TryLoad()
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Model artifacts are unreadable: %v", err))
		} else {
			status.BundleID = mc.BundleID
			status.SymptomCount = mc.Lexicon.Len()
			status.DiseaseCount = mc.Encoder.Len()
			status.TreeCount = len(mc.Forest.Trees)
		}
	} else {
		status.Issues = append(status.Issues, fmt.Sprintf("Model artifacts missing in %s", store.Dir()))
	}

	if cfg.Model.DatasetPath != "" {
		if _, err := os.Stat(cfg.Model.DatasetPath); err == nil {
			status.DatasetPresent = true
		}
	}
	if status.BundleID == "" && !status.DatasetPresent {
		status.Issues = append(status.Issues, "No usable model and no training dataset; predictions will be unavailable")
	}

	for _, bin := range requiredBinaries(cfg) {
		path, err := lookPath(bin)
		if err != nil {
			status.Binaries[bin] = ""
			status.Issues = append(status.Issues, fmt.Sprintf("%s not found on PATH; related OCR methods will fail", bin))
			continue
		}
		status.Binaries[bin] = path
	}

	return status
}

func requiredBinaries(cfg *domain.Config) []string {
	pdftoppm := cfg.OCR.PDFToPPMBinary
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	return []string{"tesseract", pdftoppm}
}

// Validate checks configuration and environment. Missing binaries are
// reported but only a bad config or no model source makes it invalid.
func Validate(cm domain.ConfigManager, loader *model.Loader, lookPath LookPathFunc) (bool, []string) {
	if err := cm.Validate(); err != nil {
		return false, []string{fmt.Sprintf("Configuration invalid: %v", err)}
	}
	status := GetStatus(cm.GetConfig(), loader, lookPath)
	return status.Ready(), status.Issues
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing configuration, returning an
// empty one when the file does not exist.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClaudeDesktopConfig{MCPServers: make(map[string]MCPServerConfig)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ClaudeDesktopConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	return &config, nil
}

// SaveClaudeDesktopConfig writes config, creating the directory if needed.
func SaveClaudeDesktopConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RegisterMCPServer adds or replaces the symptom-dx entry in the desktop
// client config at configPath.
func RegisterMCPServer(configPath, binaryPath, artifactDir string) error {
	if binaryPath == "" {
		return fmt.Errorf("server binary path is required")
	}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}

	entry := MCPServerConfig{
		Command: binaryPath,
		Env:     map[string]string{"SYMPTOMDX_LOGGING_OUTPUT": "stderr"},
	}
	if artifactDir != "" {
		abs, err := filepath.Abs(artifactDir)
		if err == nil {
			artifactDir = abs
		}
		entry.Env["SYMPTOMDX_MODEL_ARTIFACT_DIR"] = artifactDir
	}
	config.MCPServers[MCPServerName] = entry

	return SaveClaudeDesktopConfig(configPath, config)
}

// FindMCPBinary looks for the MCP server binary next to the running
// executable, then on PATH.
func FindMCPBinary() (string, error) {
	const binaryName = "mcp-server"

	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), binaryName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}
	for _, loc := range []string{"./" + binaryName, "./build/" + binaryName} {
		if _, err := os.Stat(loc); err == nil {
			return filepath.Abs(loc)
		}
	}
	return "", fmt.Errorf("binary '%s' not found", binaryName)
}
