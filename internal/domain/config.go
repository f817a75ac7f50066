package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string        `mapstructure:"environment"`
	Server      ServerConfig  `mapstructure:"server"`
	Model       ModelConfig   `mapstructure:"model"`
	OCR         OCRConfig     `mapstructure:"ocr"`
	Cache       CacheConfig   `mapstructure:"cache"`
	History     HistoryConfig `mapstructure:"history"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	UploadDir       string        `mapstructure:"upload_dir"`
	UploadRateLimit float64       `mapstructure:"upload_rate_limit"` // uploads per second, 0 disables
	UploadBurst     int           `mapstructure:"upload_burst"`
}

// ModelConfig controls where artifacts live and how they are (re)built
type ModelConfig struct {
	ArtifactDir      string         `mapstructure:"artifact_dir"`
	DatasetPath      string         `mapstructure:"dataset_path"`
	TopK             int            `mapstructure:"top_k"`
	RetrainOnMissing bool           `mapstructure:"retrain_on_missing"`
	WatchArtifacts   bool           `mapstructure:"watch_artifacts"`
	WatchDebounce    time.Duration  `mapstructure:"watch_debounce"`
	Training         TrainingConfig `mapstructure:"training"`
}

// TrainingConfig holds random forest hyperparameters
type TrainingConfig struct {
	NEstimators     int    `mapstructure:"n_estimators"`
	MinSamplesSplit int    `mapstructure:"min_samples_split"`
	MaxDepth        int    `mapstructure:"max_depth"` // 0 means unlimited
	MaxFeatures     string `mapstructure:"max_features"`
	Bootstrap       bool   `mapstructure:"bootstrap"`
	RandomState     int64  `mapstructure:"random_state"`
	LabelColumn     string `mapstructure:"label_column"`
}

// OCRConfig represents text extraction configuration
type OCRConfig struct {
	MethodTimeout          time.Duration `mapstructure:"method_timeout"`
	RasterizeTimeout       time.Duration `mapstructure:"rasterize_timeout"`
	Languages              []string      `mapstructure:"languages"`
	TempDir                string        `mapstructure:"temp_dir"`
	PDFToPPMBinary         string        `mapstructure:"pdftoppm_binary"`
	RasterDPI              int           `mapstructure:"raster_dpi"`
	MaxConcurrentDocuments int           `mapstructure:"max_concurrent_documents"`
	Sidecar                SidecarConfig `mapstructure:"sidecar"`
	Breaker                BreakerConfig `mapstructure:"breaker"`
}

// SidecarConfig describes the EasyOCR-compatible HTTP sidecar
type SidecarConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

// BreakerConfig configures the per-method circuit breakers
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// CacheConfig represents prediction cache configuration
type CacheConfig struct {
	MaxItems    int           `mapstructure:"max_items"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// HistoryConfig selects the prediction history backend
type HistoryConfig struct {
	Driver      string `mapstructure:"driver"` // "sqlite", "postgres" or "none"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}
