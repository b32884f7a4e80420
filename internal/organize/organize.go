// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package organize turns a directory of artifact documents into a tree of
// files. Each document is split by the extract package and every embedded
// file is written under the destination root. A document that fails is
// reported and skipped; only setup failures abort a run.
package organize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/pdiddy/artifact-organizer/internal/extract"
	"github.com/pdiddy/artifact-organizer/internal/logger"
	"github.com/pdiddy/artifact-organizer/pkg/types"
)

var errInvalidUTF8 = errors.New("invalid UTF-8 text")

// Recorder persists a history of runs and the files they wrote.
// The ledger package provides the SQLite implementation.
type Recorder interface {
	StartRun(ctx context.Context, sourceDir, destDir string) (string, error)
	RecordFile(ctx context.Context, runID, document string, f types.WrittenFile) error
	FinishRun(ctx context.Context, runID string, s types.Summary) error
}

// Organizer runs the extract-and-write pipeline for one configuration.
type Organizer struct {
	cfg         types.OrganizerConfig
	extractor   *extract.Extractor
	recorder    Recorder
	destAbs     string
	excludeDirs map[string]struct{}
}

// New validates cfg and returns an Organizer. rec may be nil to disable the
// run history.
func New(cfg types.OrganizerConfig, rec Recorder) (*Organizer, error) {
	if strings.TrimSpace(cfg.SourceDir) == "" {
		return nil, fmt.Errorf("source directory is required")
	}
	if strings.TrimSpace(cfg.DestDir) == "" {
		return nil, fmt.Errorf("destination directory is required")
	}

	ex, err := extract.New(cfg.Roots()...)
	if err != nil {
		return nil, err
	}

	destAbs, err := filepath.Abs(cfg.DestDir)
	if err != nil {
		return nil, fmt.Errorf("resolving destination %s: %w", cfg.DestDir, err)
	}

	exclude := make(map[string]struct{}, len(cfg.ExcludeDirs))
	for _, name := range cfg.ExcludeDirs {
		name = strings.Trim(strings.TrimSpace(name), `/\`)
		if name != "" {
			exclude[strings.ToLower(name)] = struct{}{}
		}
	}

	return &Organizer{
		cfg:         cfg,
		extractor:   ex,
		recorder:    rec,
		destAbs:     destAbs,
		excludeDirs: exclude,
	}, nil
}

// Run processes every document under the source directory, printing one
// line per written file and per failed document to w, followed by a final
// line naming the destination. It returns an error only when the run
// cannot start or is cancelled; per-document failures are counted in the
// summary instead.
func (o *Organizer) Run(ctx context.Context, w io.Writer) (types.Summary, error) {
	var summary types.Summary
	started := time.Now().UTC()

	if !o.cfg.DryRun {
		if err := os.MkdirAll(o.destAbs, dirPerm); err != nil {
			return summary, &SetupError{Op: "creating destination", Path: o.cfg.DestDir, Err: err}
		}
	}

	docs, problems, err := o.listDocuments(ctx)
	if err != nil {
		return summary, err
	}

	var runID string
	if o.recorder != nil && !o.cfg.DryRun {
		runID, err = o.recorder.StartRun(ctx, o.cfg.SourceDir, o.destAbs)
		if err != nil {
			return summary, &SetupError{Op: "starting ledger run", Path: o.cfg.LedgerPath, Err: err}
		}
	}

	results := make([]types.DocumentResult, 0, len(docs)+len(problems))
	for _, p := range problems {
		fmt.Fprintf(w, "Error processing %s: %v\n", p.Path, p)
		summary.Failed++
		results = append(results, types.DocumentResult{Source: p.Path, Error: p.Error()})
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := o.processDocument(ctx, runID, doc, w)
		if err != nil {
			fmt.Fprintf(w, "Error processing %s: %v\n", doc, err)
			res.Error = err.Error()
			summary.Failed++
		} else {
			summary.Documents++
			if len(res.Files) == 0 {
				summary.Empty++
			}
		}
		summary.Files += len(res.Files)
		results = append(results, res)
	}

	if runID != "" {
		if err := o.recorder.FinishRun(ctx, runID, summary); err != nil {
			fmt.Fprintf(w, "warning: ledger run %s not finalized: %v\n", runID, err)
		}
	}

	if o.cfg.ManifestPath != "" {
		m := &Manifest{
			RunID:      runID,
			SourceDir:  o.cfg.SourceDir,
			DestDir:    o.destAbs,
			DryRun:     o.cfg.DryRun,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
			Summary:    summary,
			Documents:  results,
		}
		if err := WriteManifest(o.cfg.ManifestPath, m); err != nil {
			fmt.Fprintf(w, "warning: manifest write failed: %v\n", err)
		}
	}

	logger.Debug("documents: %d, empty: %d, failed: %d, files: %d",
		summary.Documents, summary.Empty, summary.Failed, summary.Files)
	fmt.Fprintf(w, "\nFiles have been organized in %s\n", o.cfg.DestDir)
	return summary, nil
}

// processDocument reads one document, extracts its files and writes them.
// Any error is returned as a *DocumentError; the files written before the
// error are kept in the result.
func (o *Organizer) processDocument(ctx context.Context, runID, doc string, w io.Writer) (types.DocumentResult, error) {
	res := types.DocumentResult{Source: doc}

	text, err := readDocument(doc)
	if err != nil {
		return res, err
	}

	files := o.extractor.Extract(text)
	logger.Debug("%s: %d embedded file(s)", doc, len(files))

	for _, f := range files {
		dest, err := o.outputPath(f.Path)
		if err != nil {
			return res, &DocumentError{Path: doc, Op: "write", Err: err}
		}

		data := []byte(f.Content)
		sum := sha256.Sum256(data)
		written := types.WrittenFile{
			Path:       f.Path,
			OutputPath: dest,
			Bytes:      len(data),
			SHA256:     hex.EncodeToString(sum[:]),
		}

		if o.cfg.DryRun {
			fmt.Fprintf(w, "Would create file: %s\n", dest)
			res.Files = append(res.Files, written)
			continue
		}

		if err := o.writeFile(dest, data); err != nil {
			return res, &DocumentError{Path: doc, Op: "write", Err: err}
		}
		res.Files = append(res.Files, written)
		fmt.Fprintf(w, "Created file: %s\n", dest)

		if runID != "" {
			if err := o.recorder.RecordFile(ctx, runID, doc, written); err != nil {
				return res, &DocumentError{Path: doc, Op: "record", Err: err}
			}
		}
	}

	return res, nil
}

// readDocument loads a document as UTF-8 text with any byte order mark
// removed.
func readDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &DocumentError{Path: path, Op: "read", Err: err}
	}
	if !utf8.Valid(data) {
		return "", &DocumentError{Path: path, Op: "decode", Err: errInvalidUTF8}
	}
	text, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", &DocumentError{Path: path, Op: "decode", Err: err}
	}
	return string(text), nil
}
