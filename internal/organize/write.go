// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

var (
	errNotDir      = errors.New("not a directory")
	errEscapesDest = errors.New("path escapes destination directory")
)

// outputPath joins a marker path onto the destination root. Paths that are
// absolute or climb out of the root are rejected.
func (o *Organizer) outputPath(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == "" {
		return "", &WriteError{Path: rel, Err: errEscapesDest}
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, string(filepath.Separator)) || filepath.VolumeName(clean) != "" {
		return "", &WriteError{Path: rel, Err: errEscapesDest}
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &WriteError{Path: rel, Err: errEscapesDest}
	}
	return filepath.Join(o.destAbs, clean), nil
}

// writeFile creates the parent directories of dest and writes data,
// replacing any existing file.
func (o *Organizer) writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	if o.cfg.Atomic {
		if err := writeAtomic(dest, data); err != nil {
			return &WriteError{Path: dest, Err: err}
		}
		return nil
	}
	if err := os.WriteFile(dest, data, filePerm); err != nil {
		return &WriteError{Path: dest, Err: err}
	}
	return nil
}

// writeAtomic writes data to a temporary file in the destination directory
// and renames it over dest, so readers never observe a partial file.
func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", dest, err)
	}
	return nil
}
