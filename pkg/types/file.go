// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ExtractedFile is one embedded file recovered from an artifact document.
type ExtractedFile struct {
	// Path is the relative output path named by the marker line
	// (e.g. "apps/web/src/index.ts"), already stripped of quotes and spaces.
	Path string `json:"path" yaml:"path"`

	// Content is the trimmed text between the marker and the next marker
	// or the end of the document.
	Content string `json:"content" yaml:"content"`
}

// WrittenFile records one ExtractedFile materialized on disk.
type WrittenFile struct {
	// Path is the relative path taken from the marker.
	Path string `json:"path" yaml:"path"`

	// OutputPath is the absolute path that was written.
	OutputPath string `json:"output_path" yaml:"output_path"`

	// Bytes is the size of the written content.
	Bytes int `json:"bytes" yaml:"bytes"`

	// SHA256 is the hex digest of the written content.
	SHA256 string `json:"sha256" yaml:"sha256"`
}

// DocumentResult is the outcome of processing one input document.
type DocumentResult struct {
	// Source is the path of the input document.
	Source string `json:"source" yaml:"source"`

	// Files lists the outputs written for this document, in marker order.
	Files []WrittenFile `json:"files,omitempty" yaml:"files,omitempty"`

	// Error holds the failure message when the document could not be processed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the document failed.
func (d DocumentResult) Failed() bool {
	return d.Error != ""
}

// Summary holds counts from one organize run.
type Summary struct {
	// Documents is the number of input documents that were processed
	// successfully, including those without markers.
	Documents int `json:"documents" yaml:"documents"`

	// Empty is the number of successful documents that contained no markers.
	Empty int `json:"empty" yaml:"empty"`

	// Failed is the number of documents skipped because of an error.
	Failed int `json:"failed" yaml:"failed"`

	// Files is the number of output files written (or planned in a dry run).
	Files int `json:"files" yaml:"files"`
}

// Total returns the number of documents attempted.
func (s Summary) Total() int {
	return s.Documents + s.Failed
}

// HasFailures reports whether any document failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}
