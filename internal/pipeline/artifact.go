package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is written into every artifact envelope.
const SchemaVersion = 1

// Artifact kinds.
const (
	KindTestsGenerated     = "tests_generated"
	KindTestsExecuted      = "tests_executed"
	KindTestsValidated     = "tests_validated"
	KindDeploymentDecision = "deployment_decision"
	KindRunState           = "run_state"
)

// requiredFields lists the payload keys a reader depends on per kind.
// Dotted keys name fields of nested objects.
var requiredFields = map[string][]string{
	KindTestsGenerated:     {"pr_number", "tests", "risk_assessment", "risk_assessment.risk_score"},
	KindTestsExecuted:      {"tests", "summary", "summary.pass_rate", "status"},
	KindTestsValidated:     {"coverage_percentage", "status", "ac_coverage"},
	KindDeploymentDecision: {"status", "confidence", "reasoning"},
	KindRunState:           {"run_id", "status", "stages"},
}

// ErrArtifactNotFound is returned when an artifact file does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// SchemaError reports an artifact whose envelope or fields are wrong.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string { return fmt.Sprintf("artifact %s: %s", e.Path, e.Reason) }

// ArtifactStore persists checkpoint documents on an afero filesystem.
type ArtifactStore struct {
	fs afero.Fs
}

// NewArtifactStore returns a store over fs. A nil fs uses the OS filesystem.
func NewArtifactStore(fs afero.Fs) *ArtifactStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ArtifactStore{fs: fs}
}

// Write marshals v, stamps the envelope and writes it atomically.
func (s *ArtifactStore) Write(path, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%s payload is not an object: %w", kind, err)
	}
	doc["schema"], _ = json.Marshal(kind)
	doc["version"], _ = json.Marshal(SchemaVersion)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Read loads the artifact at path into dst after checking its envelope and
// required fields. Files ending in .yaml or .yml are decoded as YAML.
func (s *ArtifactStore) Read(path, kind string, dst any) error {
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", kind, path, ErrArtifactNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		if data, err = yamlToJSON(data); err != nil {
			return &SchemaError{Path: path, Reason: err.Error()}
		}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return &SchemaError{Path: path, Reason: "not a JSON object: " + err.Error()}
	}
	if err := checkEnvelope(doc, kind); err != nil {
		return &SchemaError{Path: path, Reason: err.Error()}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &SchemaError{Path: path, Reason: "decode payload: " + err.Error()}
	}
	return nil
}

// Valid reports whether path holds a readable artifact of kind.
func (s *ArtifactStore) Valid(path, kind string) bool {
	var doc map[string]json.RawMessage
	return s.Read(path, kind, &doc) == nil
}

// checkEnvelope accepts documents without an envelope so that hand-written
// or legacy artifacts still load; a present envelope must match.
func checkEnvelope(doc map[string]json.RawMessage, kind string) error {
	if raw, ok := doc["schema"]; ok {
		var got string
		if err := json.Unmarshal(raw, &got); err != nil || got != kind {
			return fmt.Errorf("schema is %s, want %q", raw, kind)
		}
	}
	if raw, ok := doc["version"]; ok {
		var v int
		if err := json.Unmarshal(raw, &v); err != nil || v > SchemaVersion {
			return fmt.Errorf("unsupported version %s", raw)
		}
	}
	for _, f := range requiredFields[kind] {
		if !hasField(doc, f) {
			return fmt.Errorf("missing required field %q", f)
		}
	}
	return nil
}

func hasField(doc map[string]json.RawMessage, path string) bool {
	key, rest, nested := strings.Cut(path, ".")
	raw, ok := doc[key]
	if !ok || (nested && string(raw) == "null") {
		return false
	}
	if !nested {
		return true
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return false
	}
	return hasField(inner, rest)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}
