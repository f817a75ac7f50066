// Package training builds model bundles from the labeled symptom dataset.
package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/symptom-dx-server/internal/domain"
)

// DefaultLabelColumn is the dataset column holding the disease label.
const DefaultLabelColumn = "prognosis"

// Dataset is the parsed training table. Symptoms are the feature columns in
// file order; Rows[i] is the feature vector of sample i with label Labels[i].
type Dataset struct {
	Symptoms []string
	Labels   []string
	Rows     []domain.FeatureVector
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// LoadDataset opens and parses the CSV at path.
func LoadDataset(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ParseDataset(f, labelColumn)
}

// isIndexColumn reports whether a header is an unnamed index artefact left by
// spreadsheet exports, such as "" or "Unnamed: 133".
func isIndexColumn(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.HasPrefix(name, "Unnamed:")
}

// dedupeHeader renames repeated column names to name.1, name.2 and so on.
// A generated name that is already taken gets suffixed again.
func dedupeHeader(header []string) []string {
	counts := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		if isIndexColumn(name) {
			out[i] = name
			continue
		}
		name = strings.TrimSpace(name)
		cur := counts[name]
		for cur > 0 {
			counts[name] = cur + 1
			name = fmt.Sprintf("%s.%d", name, cur)
			cur = counts[name]
		}
		out[i] = name
		counts[name] = cur + 1
	}
	return out
}

// ParseDataset reads a CSV whose header names the symptom columns plus the
// label column. Unnamed index columns are dropped and repeated column names
// are suffixed with .1, .2 and so on. Blank cells count as 0; any non-zero
// number counts as 1.
func ParseDataset(r io.Reader, labelColumn string) (*Dataset, error) {
	if labelColumn == "" {
		labelColumn = DefaultLabelColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	header = dedupeHeader(header)

	labelIdx := -1
	var featureCols []int
	ds := &Dataset{}
	for i, name := range header {
		switch {
		case name == labelColumn:
			labelIdx = i
		case isIndexColumn(name):
		default:
			featureCols = append(featureCols, i)
			ds.Symptoms = append(ds.Symptoms, name)
		}
	}
	if labelIdx < 0 {
		return nil, fmt.Errorf("label column %q not found", labelColumn)
	}
	if len(featureCols) == 0 {
		return nil, fmt.Errorf("dataset has no symptom columns")
	}
	if _, err := domain.NewLexicon(ds.Symptoms); err != nil {
		return nil, fmt.Errorf("invalid symptom columns: %w", err)
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if labelIdx >= len(record) {
			return nil, fmt.Errorf("line %d: missing label", line)
		}
		label := strings.TrimSpace(record[labelIdx])
		if label == "" {
			return nil, fmt.Errorf("line %d: empty label", line)
		}

		vec := make(domain.FeatureVector, len(featureCols))
		for j, col := range featureCols {
			if col >= len(record) {
				continue
			}
			cell := strings.TrimSpace(record[col])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[col], err)
			}
			if v != 0 {
				vec[j] = 1
			}
		}
		ds.Rows = append(ds.Rows, vec)
		ds.Labels = append(ds.Labels, label)
	}

	if ds.Len() == 0 {
		return nil, fmt.Errorf("dataset has no rows")
	}
	return ds, nil
}
