package domain

import (
	"context"
)

// TextExtractor converts a document into merged OCR text
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (*ExtractedDocument, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetModelConfig() *ModelConfig
	GetOCRConfig() *OCRConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
