// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract splits an artifact document into the files embedded in it.
// A file starts at a marker line naming its path, either as a line comment
// ("// apps/web/src/index.ts", "# packages/db/schema.py") or as a bare path
// at the start of a line, and runs until the next marker or end of input.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/artifact-organizer/pkg/types"
)

// Matcher reports whether line is a marker and, if so, the path it names.
// Lines are passed already trimmed of surrounding whitespace.
type Matcher func(line string) (string, bool)

// rootRe restricts allow-listed roots to a single path segment.
var rootRe = regexp.MustCompile(`^[\w-]+$`)

// Extractor finds markers using an ordered list of matchers. The first
// matcher that accepts a line wins.
type Extractor struct {
	matchers []Matcher
}

var defaultExtractor = MustNew(types.DefaultAllowedRoots...)

// New returns an Extractor that recognizes paths rooted at one of roots.
// With no roots it uses types.DefaultAllowedRoots.
func New(roots ...string) (*Extractor, error) {
	if len(roots) == 0 {
		roots = types.DefaultAllowedRoots
	}
	quoted := make([]string, 0, len(roots))
	for _, r := range roots {
		if !rootRe.MatchString(r) {
			return nil, fmt.Errorf("invalid allowed root %q: must be a single directory name", r)
		}
		quoted = append(quoted, regexp.QuoteMeta(r))
	}

	// An optionally quoted path: root, at least one more path character,
	// and one or more dotted extensions. Anything after the path is ignored.
	path := `["']?(?:` + strings.Join(quoted, "|") + `)/[\w/-]+(?:\.\w+)+["']?`

	return &Extractor{
		matchers: []Matcher{
			regexpMatcher(regexp.MustCompile(`^(?://|#)\s+(` + path + `)`)),
			regexpMatcher(regexp.MustCompile(`^(` + path + `)`)),
		},
	}, nil
}

// MustNew is like New but panics on an invalid root.
func MustNew(roots ...string) *Extractor {
	e, err := New(roots...)
	if err != nil {
		panic(err)
	}
	return e
}

func regexpMatcher(re *regexp.Regexp) Matcher {
	return func(line string) (string, bool) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		p := NormalizePath(m[1])
		return p, p != ""
	}
}

// Extract returns the files embedded in text using the default allow-list.
func Extract(text string) []types.ExtractedFile {
	return defaultExtractor.Extract(text)
}

// Extract scans text line by line and returns the embedded files in the
// order their markers appear. A marker whose content is empty (for example
// one directly followed by another marker) produces no file. Duplicate
// paths are kept; the caller decides how to resolve them.
func (e *Extractor) Extract(text string) []types.ExtractedFile {
	lines := strings.Split(text, "\n")

	var (
		files       []types.ExtractedFile
		currentPath string
		content     []string
	)

	flush := func() {
		if currentPath != "" && len(content) > 0 {
			files = append(files, types.ExtractedFile{
				Path:    currentPath,
				Content: strings.TrimSpace(strings.Join(content, "\n")),
			})
		}
		content = nil
	}

	for i := 0; i < len(lines); {
		line := lines[i]

		p, ok := e.match(line)
		if !ok {
			if currentPath != "" {
				content = append(content, line)
			}
			i++
			continue
		}

		flush()
		currentPath = p

		// Skip blank and comment lines between the marker and its content,
		// stopping at the next marker.
		i++
		for i < len(lines) && e.isPreamble(lines[i]) {
			i++
		}
	}

	flush()
	return files
}

// match tries each matcher in order against the trimmed line.
func (e *Extractor) match(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	for _, m := range e.matchers {
		if p, ok := m(trimmed); ok {
			return p, true
		}
	}
	return "", false
}

// isPreamble reports whether line is blank or a comment that is not
// itself a marker.
func (e *Extractor) isPreamble(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if !isComment(trimmed) {
		return false
	}
	_, marker := e.match(trimmed)
	return !marker
}

func isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#")
}

// NormalizePath strips surrounding single or double quotes and whitespace
// from a marker path.
func NormalizePath(p string) string {
	return strings.TrimSpace(strings.Trim(p, `'"`))
}
