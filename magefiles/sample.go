//go:build mage

package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/rogpeppe/go-internal/txtar"
)

const sampleDir = "samples"

//go:embed sample.txtar
var sampleArchive []byte

// Sample writes example artifact dumps into samples/dumps.
func Sample() error {
	ar := txtar.Parse(sampleArchive)
	dumps := filepath.Join(sampleDir, "dumps")
	for _, f := range ar.Files {
		path := filepath.Join(dumps, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Println("  ", path)
	}
	fmt.Printf("Wrote %d sample dumps.\n", len(ar.Files))
	return nil
}

// Organize builds the CLI and runs it over the sample dumps, recording the
// run in samples/ledger.db.
func Organize() error {
	mg.Deps(Build, Sample)
	return sh.RunV(filepath.Join(binDir, binName), "organize",
		"--ledger", filepath.Join(sampleDir, "ledger.db"),
		"--manifest", filepath.Join(sampleDir, "manifest.yaml"),
		filepath.Join(sampleDir, "dumps"),
		filepath.Join(sampleDir, "organized"),
	)
}
