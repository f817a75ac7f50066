// Package history records every prediction the service makes so results can
// be reviewed and exported later.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/symptom-dx-server/internal/domain"
)

// Source tells how the symptoms of a prediction were obtained.
type Source string

const (
	SourceManual   Source = "manual"
	SourceDocument Source = "document"
)

// Record is one stored prediction.
type Record struct {
	ID              string                    `json:"id"`
	RequestID       string                    `json:"request_id,omitempty"`
	Source          Source                    `json:"source"`
	Symptoms        []string                  `json:"symptoms"`
	UnknownSymptoms []string                  `json:"unknown_symptoms,omitempty"`
	Prediction      string                    `json:"prediction"`
	Confidence      float64                   `json:"confidence"`
	TopPredictions  []domain.RankedPrediction `json:"top_predictions"`
	ModelBundle     string                    `json:"model_bundle"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// Store defines the interface for prediction history storage.
type Store interface {
	// Save inserts a record. A blank ID is assigned a new uuid.
	Save(ctx context.Context, record *Record) error

	// Get returns the record with id, or nil when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, limit, offset int) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes every record to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON loads an export, skipping IDs that already exist.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}

// maxExportLimit is the maximum number of records exported at once.
const maxExportLimit = 1000000

// RecordFromResult builds a record for a finished prediction.
func RecordFromResult(requestID string, source Source, symptoms, unknown []string, result *domain.PredictionResult) *Record {
	return &Record{
		RequestID:       requestID,
		Source:          source,
		Symptoms:        symptoms,
		UnknownSymptoms: unknown,
		Prediction:      string(result.Prediction),
		Confidence:      result.Confidence,
		TopPredictions:  result.TopPredictions,
		ModelBundle:     result.ModelBundle,
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads the columns selected by recordColumns.
func scanRecord(s scanner) (*Record, error) {
	r := &Record{}
	var source, symptoms, unknown, top string
	if err := s.Scan(
		&r.ID, &r.RequestID, &source, &symptoms, &unknown,
		&r.Prediction, &r.Confidence, &top, &r.ModelBundle, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Source = Source(source)
	if err := decodeColumn(symptoms, &r.Symptoms); err != nil {
		return nil, fmt.Errorf("decode symptoms: %w", err)
	}
	if err := decodeColumn(unknown, &r.UnknownSymptoms); err != nil {
		return nil, fmt.Errorf("decode unknown symptoms: %w", err)
	}
	if err := decodeColumn(top, &r.TopPredictions); err != nil {
		return nil, fmt.Errorf("decode top predictions: %w", err)
	}
	return r, nil
}

const recordColumns = `id, request_id, source, symptoms, unknown_symptoms,
	prediction, confidence, top_predictions, model_bundle, created_at`

// encodedColumns holds the JSON-encoded list columns of a record.
type encodedColumns struct {
	symptoms string
	unknown  string
	top      string
}

func encodeColumns(r *Record) (encodedColumns, error) {
	var out encodedColumns
	var err error
	if out.symptoms, err = encodeColumn(r.Symptoms); err != nil {
		return out, err
	}
	if out.unknown, err = encodeColumn(r.UnknownSymptoms); err != nil {
		return out, err
	}
	if out.top, err = encodeColumn(r.TopPredictions); err != nil {
		return out, err
	}
	return out, nil
}

func encodeColumn(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeColumn(raw string, v interface{}) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func writeExport(writer io.Writer, records []*Record) error {
	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(records),
		Records:    records,
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importRecords(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, r := range export.Records {
		if r.ID != "" {
			existing, err := s.Get(ctx, r.ID)
			if err != nil {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
			if existing != nil {
				skipped++
				continue
			}
		}
		if err := s.Save(ctx, r); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}
