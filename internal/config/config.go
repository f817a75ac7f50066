package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/symptom-dx-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile creates a manager reading an explicit config file.
// An empty path falls back to the default search locations.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{file: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/symptom-dx-server/")
	}

	v.SetEnvPrefix("SYMPTOMDX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and env vars still apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_upload_bytes", 16*1024*1024)
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.upload_rate_limit", 2.0)
	v.SetDefault("server.upload_burst", 4)

	// Model defaults
	v.SetDefault("model.artifact_dir", "models")
	v.SetDefault("model.dataset_path", "Training.csv")
	v.SetDefault("model.top_k", 3)
	v.SetDefault("model.retrain_on_missing", true)
	v.SetDefault("model.watch_artifacts", true)
	v.SetDefault("model.watch_debounce", "2s")
	v.SetDefault("model.training.n_estimators", 100)
	v.SetDefault("model.training.min_samples_split", 2)
	v.SetDefault("model.training.max_depth", 0)
	v.SetDefault("model.training.max_features", "sqrt")
	v.SetDefault("model.training.bootstrap", true)
	v.SetDefault("model.training.random_state", 67)
	v.SetDefault("model.training.label_column", "prognosis")

	// OCR defaults
	v.SetDefault("ocr.method_timeout", "45s")
	v.SetDefault("ocr.rasterize_timeout", "120s")
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.temp_dir", "")
	v.SetDefault("ocr.pdftoppm_binary", "pdftoppm")
	v.SetDefault("ocr.raster_dpi", 200)
	v.SetDefault("ocr.max_concurrent_documents", 4)
	v.SetDefault("ocr.sidecar.url", "")
	v.SetDefault("ocr.sidecar.timeout", "45s")
	v.SetDefault("ocr.sidecar.rate_limit", 5.0)
	v.SetDefault("ocr.sidecar.burst", 2)
	v.SetDefault("ocr.breaker.max_requests", 3)
	v.SetDefault("ocr.breaker.interval", "60s")
	v.SetDefault("ocr.breaker.timeout", "30s")
	v.SetDefault("ocr.breaker.min_requests", 5)
	v.SetDefault("ocr.breaker.failure_ratio", 0.8)

	// Cache defaults
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// History defaults
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.sqlite_path", "data/history.db")
	v.SetDefault("history.postgres_url", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetModelConfig returns model artifact configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Model
}

// GetOCRConfig returns text extraction configuration
func (m *Manager) GetOCRConfig() *domain.OCRConfig {
	return &m.config.OCR
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	if config.Model.ArtifactDir == "" {
		return fmt.Errorf("model artifact directory is required")
	}
	if config.Model.TopK <= 0 {
		return fmt.Errorf("invalid top_k: %d", config.Model.TopK)
	}
	if config.Model.RetrainOnMissing && config.Model.DatasetPath == "" {
		return fmt.Errorf("dataset path is required when retrain_on_missing is enabled")
	}
	if config.Model.Training.NEstimators <= 0 {
		return fmt.Errorf("invalid n_estimators: %d", config.Model.Training.NEstimators)
	}
	if config.Model.Training.MinSamplesSplit < 2 {
		return fmt.Errorf("min_samples_split must be at least 2, got %d", config.Model.Training.MinSamplesSplit)
	}

	if config.OCR.MethodTimeout <= 0 {
		return fmt.Errorf("ocr method timeout must be positive")
	}

	switch strings.ToLower(config.History.Driver) {
	case "", "none":
	case "sqlite":
		if config.History.SQLitePath == "" {
			return fmt.Errorf("history sqlite path is required")
		}
	case "postgres":
		if config.History.PostgresURL == "" {
			return fmt.Errorf("history postgres URL is required")
		}
	default:
		return fmt.Errorf("unknown history driver: %s", config.History.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
