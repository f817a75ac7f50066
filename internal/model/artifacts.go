package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/symptom-dx-server/internal/domain"
)

// Artifact file names inside the artifact directory.
const (
	ModelFile    = "disease_model.gob"
	EncoderFile  = "label_encoder.gob"
	SymptomsFile = "symptom_names.gob"
)

// ArtifactFiles lists every file a complete bundle consists of.
var ArtifactFiles = []string{ModelFile, EncoderFile, SymptomsFile}

// ErrArtifactsMissing is returned when at least one artifact file is absent.
var ErrArtifactsMissing = errors.New("model artifacts missing")

type forestEnvelope struct {
	BundleID  string
	CreatedAt time.Time
	Forest    RandomForest
}

type encoderEnvelope struct {
	BundleID string
	Classes  []string
}

type symptomsEnvelope struct {
	BundleID string
	Symptoms []string
}

// ArtifactStore persists model bundles as three gob files sharing a bundle id.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore returns a store rooted at dir.
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Dir returns the artifact directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Path returns the full path of an artifact file.
func (s *ArtifactStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether every artifact file is present.
func (s *ArtifactStore) Exists() bool {
	for _, name := range ArtifactFiles {
		if _, err := os.Stat(s.Path(name)); err != nil {
			return false
		}
	}
	return true
}

// Save writes the three artifacts of mc. A blank bundle id gets a new uuid.
// Each file is written to a temp file and renamed into place.
func (s *ArtifactStore) Save(mc *ModelContext) (string, error) {
	if mc == nil || mc.Forest == nil || mc.Encoder == nil || mc.Lexicon == nil {
		return "", fmt.Errorf("incomplete model context")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	bundleID := mc.BundleID
	if bundleID == "" {
		bundleID = uuid.New().String()
	}

	payloads := []struct {
		name  string
		value interface{}
	}{
		{SymptomsFile, symptomsEnvelope{BundleID: bundleID, Symptoms: mc.Lexicon.IDs()}},
		{EncoderFile, encoderEnvelope{BundleID: bundleID, Classes: mc.Encoder.Classes}},
		{ModelFile, forestEnvelope{BundleID: bundleID, CreatedAt: time.Now().UTC(), Forest: *mc.Forest}},
	}
	for _, p := range payloads {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(p.value); err != nil {
			return "", fmt.Errorf("encode %s: %w", p.name, err)
		}
		if err := writeFileAtomic(s.Path(p.name), buf.Bytes(), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	return bundleID, nil
}

// Load decodes all three artifacts and checks that they belong together.
func (s *ArtifactStore) Load() (*ModelContext, error) {
	for _, name := range ArtifactFiles {
		if _, err := os.Stat(s.Path(name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrArtifactsMissing, name)
			}
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
	}

	var fe forestEnvelope
	if err := decodeFile(s.Path(ModelFile), &fe); err != nil {
		return nil, err
	}
	var ee encoderEnvelope
	if err := decodeFile(s.Path(EncoderFile), &ee); err != nil {
		return nil, err
	}
	var se symptomsEnvelope
	if err := decodeFile(s.Path(SymptomsFile), &se); err != nil {
		return nil, err
	}

	if fe.BundleID == "" || fe.BundleID != ee.BundleID || fe.BundleID != se.BundleID {
		return nil, fmt.Errorf("artifact bundle mismatch: model=%q encoder=%q symptoms=%q", fe.BundleID, ee.BundleID, se.BundleID)
	}

	lex, err := domain.NewLexicon(se.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("invalid symptom names: %w", err)
	}
	forest := fe.Forest
	return NewModelContext(fe.BundleID, &forest, encoderFromClasses(ee.Classes), lex)
}

func decodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
