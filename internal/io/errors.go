package io

import "fmt"

// FormatError indicates a file whose extension is not a supported input
// format. The file may well exist and be readable; callers decide whether
// to skip it or abort the batch.
type FormatError struct {
	Path string
	Ext  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported file format '%s' for '%s'", e.Ext, e.Path)
}

// ReadError indicates a file with a supported extension that could not be
// parsed (corrupt workbook, undecodable bytes, malformed rows). The original
// cause is attached and available through errors.Unwrap.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read '%s': %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
