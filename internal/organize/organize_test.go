// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/artifact-organizer/pkg/types"
)

// --- test helpers ---

// loadArchive writes the src/ entries of a testdata archive into a source
// directory and returns it with the expected output tree from want/.
func loadArchive(t *testing.T, name string) (srcDir string, want map[string]string) {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	srcDir = filepath.Join(t.TempDir(), "src")
	want = map[string]string{}
	for _, f := range ar.Files {
		switch {
		case strings.HasPrefix(f.Name, "src/"):
			writeFile(t, srcDir, strings.TrimPrefix(f.Name, "src/"), string(f.Data))
		case strings.HasPrefix(f.Name, "want/"):
			want[strings.TrimPrefix(f.Name, "want/")] = strings.TrimSuffix(string(f.Data), "\n")
		default:
			t.Fatalf("unexpected archive entry %q", f.Name)
		}
	}
	return srcDir, want
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// readTree returns every regular file under dir keyed by slash-separated
// relative path.
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	got := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		got[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return got
}

func runOrganizer(t *testing.T, cfg types.OrganizerConfig, rec Recorder) (types.Summary, string) {
	t.Helper()
	o, err := New(cfg, rec)
	require.NoError(t, err)
	var log bytes.Buffer
	summary, err := o.Run(context.Background(), &log)
	require.NoError(t, err)
	return summary, log.String()
}

// fakeRecorder keeps ledger calls in memory.
type fakeRecorder struct {
	startErr  error
	recordErr error
	started   []string
	files     map[string][]types.WrittenFile
	finished  *types.Summary
}

func (f *fakeRecorder) StartRun(_ context.Context, sourceDir, destDir string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, sourceDir+"->"+destDir)
	return "run-1", nil
}

func (f *fakeRecorder) RecordFile(_ context.Context, runID, document string, wf types.WrittenFile) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	if f.files == nil {
		f.files = map[string][]types.WrittenFile{}
	}
	f.files[document] = append(f.files[document], wf)
	return nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, runID string, s types.Summary) error {
	f.finished = &s
	return nil
}

// --- golden runs ---

func TestRunGolden(t *testing.T) {
	tests := []struct {
		archive     string
		wantSummary types.Summary
	}{
		{"basic.txtar", types.Summary{Documents: 2, Empty: 1, Files: 2}},
		{"last_write_wins.txtar", types.Summary{Documents: 2, Files: 2}},
		{"nested.txtar", types.Summary{Documents: 2, Empty: 1, Files: 2}},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSuffix(tt.archive, ".txtar"), func(t *testing.T) {
			srcDir, want := loadArchive(t, tt.archive)
			destDir := filepath.Join(t.TempDir(), "out")

			summary, log := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

			assert.Equal(t, tt.wantSummary, summary)
			assert.Equal(t, want, readTree(t, destDir))
			assert.NotContains(t, log, "Error processing")
			assert.True(t, strings.HasSuffix(log, "\nFiles have been organized in "+destDir+"\n"),
				"log should end with the destination summary, got %q", log)
		})
	}
}

func TestRunReportsAbsolutePaths(t *testing.T) {
	srcDir, _ := loadArchive(t, "basic.txtar")
	destDir := filepath.Join(t.TempDir(), "out")

	_, log := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	abs, err := filepath.Abs(destDir)
	require.NoError(t, err)
	assert.Contains(t, log, "Created file: "+filepath.Join(abs, "apps", "web", "src", "index.ts")+"\n")
	assert.Contains(t, log, "Created file: "+filepath.Join(abs, "apps", "web", "src", "util.ts")+"\n")
	assert.Equal(t, 1, strings.Count(log, "Files have been organized in"))
}

func TestRunIsIdempotent(t *testing.T) {
	srcDir, want := loadArchive(t, "last_write_wins.txtar")
	destDir := filepath.Join(t.TempDir(), "out")
	cfg := types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}

	runOrganizer(t, cfg, nil)
	first := readTree(t, destDir)
	runOrganizer(t, cfg, nil)
	second := readTree(t, destDir)

	assert.Equal(t, want, first)
	assert.Equal(t, first, second)
}

func TestRunOverwritesExistingOutput(t *testing.T) {
	srcDir, _ := loadArchive(t, "basic.txtar")
	destDir := t.TempDir()
	writeFile(t, destDir, "apps/web/src/index.ts", "stale content that is much longer than the new one")

	runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	assert.Equal(t, `console.log("hi");`, readTree(t, destDir)["apps/web/src/index.ts"])
}

// --- failure isolation ---

func TestRunIsolatesDecodeErrors(t *testing.T) {
	srcDir := t.TempDir()
	bad := writeFile(t, srcDir, "a-binary.bin", "\xff\xfe\x00garbage")
	writeFile(t, srcDir, "b-good.txt", "// apps/ok/main.ts\nok();")
	destDir := filepath.Join(t.TempDir(), "out")

	summary, log := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	assert.Equal(t, types.Summary{Documents: 1, Failed: 1, Files: 1}, summary)
	assert.True(t, summary.HasFailures())
	assert.Equal(t, 2, summary.Total())
	assert.Contains(t, log, "Error processing "+bad+": decode: invalid UTF-8 text\n")
	assert.Equal(t, map[string]string{"apps/ok/main.ts": "ok();"}, readTree(t, destDir))
}

func TestRunIsolatesUnreadableDocuments(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced")
	}
	srcDir := t.TempDir()
	locked := writeFile(t, srcDir, "locked.txt", "// apps/x/y.ts\ny")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o644) })
	writeFile(t, srcDir, "open.txt", "// apps/x/z.ts\nz")
	destDir := t.TempDir()

	summary, log := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Documents)
	assert.Contains(t, log, "Error processing "+locked+": read: ")
	assert.Equal(t, map[string]string{"apps/x/z.ts": "z"}, readTree(t, destDir))
}

func TestRunWriteErrorSkipsRestOfDocument(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "a.txt", "// apps/blocked/file.ts\nx\n// apps/after/file.ts\ny")
	writeFile(t, srcDir, "b.txt", "// apps/fine/file.ts\nz")
	destDir := t.TempDir()
	// A regular file where a directory is needed makes the first write fail.
	writeFile(t, destDir, "apps/blocked", "not a directory")

	o, err := New(types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)
	require.NoError(t, err)
	var log bytes.Buffer
	summary, err := o.Run(context.Background(), &log)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Documents)
	assert.Contains(t, log.String(), "Error processing "+filepath.Join(srcDir, "a.txt")+": write: writing ")
	tree := readTree(t, destDir)
	assert.NotContains(t, tree, "apps/after/file.ts")
	assert.Equal(t, "z", tree["apps/fine/file.ts"])
}

func TestProcessDocumentWrapsWriteError(t *testing.T) {
	srcDir := t.TempDir()
	doc := writeFile(t, srcDir, "a.txt", "// apps/blocked/file.ts\nx")
	destDir := t.TempDir()
	writeFile(t, destDir, "apps/blocked", "file")

	o, err := New(types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)
	require.NoError(t, err)

	_, err = o.processDocument(context.Background(), "", doc, &bytes.Buffer{})
	require.Error(t, err)

	var docErr *DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, "write", docErr.Op)
	assert.Equal(t, doc, docErr.Path)

	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Contains(t, writeErr.Path, "blocked")
}

func TestRunNoMarkersIsNotAFailure(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "prose.txt", "just words\n# a heading\n")
	destDir := t.TempDir()

	summary, log := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	assert.Equal(t, types.Summary{Documents: 1, Empty: 1}, summary)
	assert.NotContains(t, log, "Error processing")
	assert.NotContains(t, log, "Created file")
	assert.Empty(t, readTree(t, destDir))
}

// --- setup errors ---

func TestRunDestinationCannotBeCreated(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "a.txt", "// apps/a/b.ts\nx")
	blocker := writeFile(t, t.TempDir(), "dest", "a file, not a directory")

	o, err := New(types.OrganizerConfig{SourceDir: srcDir, DestDir: filepath.Join(blocker, "out")}, nil)
	require.NoError(t, err)

	var log bytes.Buffer
	_, err = o.Run(context.Background(), &log)
	require.Error(t, err)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "creating destination", setupErr.Op)
	assert.Empty(t, log.String())
}

func TestRunMissingSource(t *testing.T) {
	o, err := New(types.OrganizerConfig{
		SourceDir: filepath.Join(t.TempDir(), "missing"),
		DestDir:   t.TempDir(),
	}, nil)
	require.NoError(t, err)

	_, err = o.Run(context.Background(), &bytes.Buffer{})
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRunSourceIsFile(t *testing.T) {
	src := writeFile(t, t.TempDir(), "file.txt", "x")
	o, err := New(types.OrganizerConfig{SourceDir: src, DestDir: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = o.Run(context.Background(), &bytes.Buffer{})
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.ErrorIs(t, err, errNotDir)
}

func TestRunCancelled(t *testing.T) {
	srcDir, _ := loadArchive(t, "basic.txtar")
	o, err := New(types.OrganizerConfig{SourceDir: srcDir, DestDir: t.TempDir()}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Run(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		cfg    types.OrganizerConfig
		errMsg string
	}{
		{"missing source", types.OrganizerConfig{DestDir: "out"}, "source directory is required"},
		{"missing destination", types.OrganizerConfig{SourceDir: "in"}, "destination directory is required"},
		{"bad root", types.OrganizerConfig{SourceDir: "in", DestDir: "out", AllowedRoots: []string{"a/b"}}, "invalid allowed root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

// --- options ---

func TestRunDryRun(t *testing.T) {
	srcDir, _ := loadArchive(t, "basic.txtar")
	destDir := filepath.Join(t.TempDir(), "out")
	rec := &fakeRecorder{}

	summary, log := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir, DryRun: true}, rec)

	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 2, strings.Count(log, "Would create file: "))
	assert.NotContains(t, log, "Created file")
	_, err := os.Stat(destDir)
	assert.True(t, os.IsNotExist(err), "dry run must not create the destination")
	assert.Empty(t, rec.started, "dry run must not start a ledger run")
}

func TestRunAtomic(t *testing.T) {
	srcDir, want := loadArchive(t, "nested.txtar")
	destDir := t.TempDir()
	writeFile(t, destDir, "packages/db/seed.py", "old")

	runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir, Atomic: true}, nil)

	assert.Equal(t, want, readTree(t, destDir), "no temporary files should be left behind")
	info, err := os.Stat(filepath.Join(destDir, "packages", "db", "seed.py"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
	}
}

func TestRunExcludeDirs(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "keep/a.txt", "// apps/a/a.ts\na")
	writeFile(t, srcDir, ".git/objects/b.txt", "// apps/b/b.ts\nb")
	writeFile(t, srcDir, "Node_Modules/c.txt", "// apps/c/c.ts\nc")
	destDir := t.TempDir()

	summary, _ := runOrganizer(t, types.OrganizerConfig{
		SourceDir:   srcDir,
		DestDir:     destDir,
		ExcludeDirs: []string{".git", "node_modules/"},
	}, nil)

	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, map[string]string{"apps/a/a.ts": "a"}, readTree(t, destDir))
}

func TestRunSkipsNestedDestination(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "dump.txt", "// apps/a/a.ts\na")
	destDir := filepath.Join(srcDir, "organized")

	runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)
	summary, _ := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	assert.Equal(t, 1, summary.Documents, "outputs from the first run must not be read as documents")
}

func TestRunCustomRoots(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "dump.txt", "// services/api/main.go\npackage main\n// apps/web/a.ts\nx")
	destDir := t.TempDir()

	runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir, AllowedRoots: []string{"services"}}, nil)

	assert.Equal(t, map[string]string{
		"services/api/main.go": "package main\n// apps/web/a.ts\nx",
	}, readTree(t, destDir))
}

func TestRunStripsByteOrderMark(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "bom.txt", "\ufeff// apps/a/a.ts\na")
	destDir := t.TempDir()

	runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	assert.Equal(t, map[string]string{"apps/a/a.ts": "a"}, readTree(t, destDir))
}

func TestRunSymlinkedDocument(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	srcDir := t.TempDir()
	target := writeFile(t, t.TempDir(), "real.txt", "// apps/l/link.ts\nlinked")
	require.NoError(t, os.Symlink(target, filepath.Join(srcDir, "link.txt")))
	destDir := t.TempDir()

	runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, nil)

	assert.Equal(t, map[string]string{"apps/l/link.ts": "linked"}, readTree(t, destDir))
}

// --- recorder and manifest ---

func TestRunRecordsFiles(t *testing.T) {
	srcDir, _ := loadArchive(t, "basic.txtar")
	destDir := t.TempDir()
	rec := &fakeRecorder{}

	summary, _ := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, rec)

	require.Len(t, rec.started, 1)
	doc := filepath.Join(srcDir, "chat-1.txt")
	require.Len(t, rec.files[doc], 2)
	assert.Equal(t, "apps/web/src/index.ts", rec.files[doc][0].Path)
	assert.Equal(t, len(`console.log("hi");`), rec.files[doc][0].Bytes)
	assert.Len(t, rec.files[doc][0].SHA256, 64)
	require.NotNil(t, rec.finished)
	assert.Equal(t, summary, *rec.finished)
}

func TestRunRecorderStartFailureIsFatal(t *testing.T) {
	srcDir, _ := loadArchive(t, "basic.txtar")
	destDir := t.TempDir()
	rec := &fakeRecorder{startErr: errors.New("database is locked")}

	o, err := New(types.OrganizerConfig{SourceDir: srcDir, DestDir: destDir}, rec)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), &bytes.Buffer{})

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Empty(t, readTree(t, destDir))
}

func TestRunRecorderFailureIsPerDocument(t *testing.T) {
	srcDir, _ := loadArchive(t, "basic.txtar")
	rec := &fakeRecorder{recordErr: errors.New("disk I/O error")}

	summary, log := runOrganizer(t, types.OrganizerConfig{SourceDir: srcDir, DestDir: t.TempDir()}, rec)

	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, log, "record: disk I/O error")
}

func TestRunWritesManifest(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, srcDir, "a.txt", "// apps/a/a.ts\na")
	bad := writeFile(t, srcDir, "b.txt", "\xff")
	destDir := t.TempDir()
	manifestPath := filepath.Join(t.TempDir(), "reports", "run.yaml")

	summary, _ := runOrganizer(t, types.OrganizerConfig{
		SourceDir:    srcDir,
		DestDir:      destDir,
		ManifestPath: manifestPath,
	}, nil)

	m, err := ReadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, summary, m.Summary)
	assert.Equal(t, srcDir, m.SourceDir)
	assert.False(t, m.StartedAt.IsZero())
	assert.False(t, m.FinishedAt.Before(m.StartedAt))
	require.Len(t, m.Documents, 2)

	assert.Equal(t, filepath.Join(srcDir, "a.txt"), m.Documents[0].Source)
	require.Len(t, m.Documents[0].Files, 1)
	assert.Equal(t, "apps/a/a.ts", m.Documents[0].Files[0].Path)
	assert.False(t, m.Documents[0].Failed())

	assert.Equal(t, bad, m.Documents[1].Source)
	assert.True(t, m.Documents[1].Failed())
	assert.Contains(t, m.Documents[1].Error, "decode")
}

func TestReadManifestErrors(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading manifest")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "summary: [unterminated")
	_, err = ReadManifest(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing manifest")
}

// --- output paths ---

func TestOutputPath(t *testing.T) {
	destDir := t.TempDir()
	o, err := New(types.OrganizerConfig{SourceDir: "in", DestDir: destDir}, nil)
	require.NoError(t, err)

	got, err := o.outputPath("apps/web/src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "apps", "web", "src", "index.ts"), got)

	for _, rel := range []string{"", ".", "..", "../etc/passwd", "apps/../../x", "/etc/passwd"} {
		t.Run(rel, func(t *testing.T) {
			_, err := o.outputPath(rel)
			var writeErr *WriteError
			require.ErrorAs(t, err, &writeErr)
			assert.ErrorIs(t, err, errEscapesDest)
		})
	}
}
