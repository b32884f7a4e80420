// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DefaultAllowedRoots are the top-level directory names a marker path may
// start with when no allow-list is configured.
var DefaultAllowedRoots = []string{"apps", "packages"}

// OrganizerConfig holds settings for an organize run.
type OrganizerConfig struct {
	// SourceDir is the directory of artifact documents, scanned recursively.
	SourceDir string `json:"source_dir" yaml:"source_dir"`

	// DestDir is the root of the organized output tree.
	DestDir string `json:"dest_dir" yaml:"dest_dir"`

	// AllowedRoots lists the top-level names a marker path must begin with
	// (default "apps", "packages").
	AllowedRoots []string `json:"allowed_roots" yaml:"allowed_roots"`

	// ExcludeDirs lists directory base names skipped while walking SourceDir
	// (e.g. ".git").
	ExcludeDirs []string `json:"exclude_dirs,omitempty" yaml:"exclude_dirs,omitempty"`

	// Atomic writes each output through a temporary file and a rename.
	Atomic bool `json:"atomic" yaml:"atomic"`

	// DryRun reports what would be written without touching DestDir.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// LedgerPath is the SQLite database recording runs and written files.
	// Empty disables the ledger.
	LedgerPath string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty"`

	// ManifestPath is where a YAML manifest of the run is written.
	// Empty disables the manifest.
	ManifestPath string `json:"manifest_path,omitempty" yaml:"manifest_path,omitempty"`

	// Strict makes per-document failures fail the run after all documents
	// have been attempted.
	Strict bool `json:"strict" yaml:"strict"`
}

// Roots returns the configured allow-list, or DefaultAllowedRoots when
// none is set.
func (c OrganizerConfig) Roots() []string {
	if len(c.AllowedRoots) == 0 {
		return DefaultAllowedRoots
	}
	return c.AllowedRoots
}
