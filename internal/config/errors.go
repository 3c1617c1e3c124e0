package config

import (
	"fmt"
)

// ParseError reports a structural, referential, or value-range violation
// encountered while interpreting the configuration document. Every
// ParseError is terminal for the compilation attempt.
type ParseError struct {
	// File is the path of the offending document.
	File string

	// Message names the offending tag, entity, or raw text.
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// DiskError reports a failure of the lock-directory filesystem capability
// probe. It is distinct from ParseError: the document was fine, the disk
// was not.
type DiskError struct {
	// Path is the filesystem path the probe failed on.
	Path string

	// Message describes the failed operation.
	Message string

	// Err is the underlying filesystem error.
	Err error
}

// Error implements the error interface.
func (e *DiskError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *DiskError) Unwrap() error {
	return e.Err
}
