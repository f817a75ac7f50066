package model

import (
	"fmt"
	"sort"

	"github.com/symptom-dx-server/internal/domain"
)

// LabelEncoder maps disease labels to integer codes. Codes follow the sorted
// order of the distinct training labels and never change after training.
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

// NewLabelEncoder fits an encoder on the given labels.
func NewLabelEncoder(labels []string) *LabelEncoder {
	seen := make(map[string]bool, len(labels))
	classes := make([]string, 0)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)
	return encoderFromClasses(classes)
}

func encoderFromClasses(classes []string) *LabelEncoder {
	e := &LabelEncoder{Classes: classes, index: make(map[string]int, len(classes))}
	for i, c := range classes {
		e.index[c] = i
	}
	return e
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.Classes)
}

// Encode returns the code for label.
func (e *LabelEncoder) Encode(label string) (int, bool) {
	code, ok := e.index[label]
	return code, ok
}

// Decode returns the label for code.
func (e *LabelEncoder) Decode(code int) (domain.DiseaseLabel, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("label code %d out of range [0,%d)", code, len(e.Classes))
	}
	return domain.DiseaseLabel(e.Classes[code]), nil
}

// Labels returns the classes in code order.
func (e *LabelEncoder) Labels() []domain.DiseaseLabel {
	out := make([]domain.DiseaseLabel, len(e.Classes))
	for i, c := range e.Classes {
		out[i] = domain.DiseaseLabel(c)
	}
	return out
}
