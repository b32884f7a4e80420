// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/artifact-organizer/pkg/types"
)

// Manifest is the on-disk YAML report of one organize run: which documents
// were read, which files each produced, and which documents failed.
type Manifest struct {
	RunID      string                 `yaml:"run_id,omitempty"`
	SourceDir  string                 `yaml:"source_dir"`
	DestDir    string                 `yaml:"dest_dir"`
	DryRun     bool                   `yaml:"dry_run,omitempty"`
	StartedAt  time.Time              `yaml:"started_at"`
	FinishedAt time.Time              `yaml:"finished_at"`
	Summary    types.Summary          `yaml:"summary"`
	Documents  []types.DocumentResult `yaml:"documents"`
}

// WriteManifest saves m as YAML at path, creating parent directories.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	return os.WriteFile(path, data, filePerm)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
