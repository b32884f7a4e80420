// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import "fmt"

// SetupError reports a failure that prevents the run from starting, such
// as a destination directory that cannot be created. It aborts the run.
type SetupError struct {
	Op   string
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// DocumentError reports why one input document was skipped. Op is one of
// "walk", "read", "decode", "write" or "record".
type DocumentError struct {
	Path string
	Op   string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// WriteError reports an output file or directory that could not be written.
// It is wrapped in the DocumentError of the document that produced it.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
