// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/artifact-organizer/internal/logger"
)

// listDocuments walks the source tree in lexical order and returns every
// regular file (or symlink to one) as a document path. Directories named in
// ExcludeDirs and the destination tree itself are not descended into.
//
// An unreadable source root is fatal. Entries below the root that cannot be
// read are returned as DocumentErrors so the run can report them and go on.
func (o *Organizer) listDocuments(ctx context.Context) ([]string, []*DocumentError, error) {
	root := o.cfg.SourceDir
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, &SetupError{Op: "reading source", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, nil, &SetupError{Op: "reading source", Path: root, Err: errNotDir}
	}

	var (
		docs     []string
		problems []*DocumentError
	)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return &SetupError{Op: "reading source", Path: root, Err: err}
			}
			problems = append(problems, &DocumentError{Path: path, Op: "walk", Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := o.excludeDirs[strings.ToLower(d.Name())]; skip {
				logger.Debug("skipping excluded directory %s", path)
				return filepath.SkipDir
			}
			if o.isDestination(path) {
				logger.Debug("skipping destination directory %s", path)
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				problems = append(problems, &DocumentError{Path: path, Op: "walk", Err: err})
				return nil
			}
			if !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		docs = append(docs, path)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return docs, problems, nil
}

// isDestination reports whether dir is the destination root, which happens
// when the output tree is nested inside the source tree.
func (o *Organizer) isDestination(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return abs == o.destAbs
}
