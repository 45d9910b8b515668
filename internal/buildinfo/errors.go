package buildinfo

import (
	"errors"
	"fmt"
)

// ErrMalformedArtifact is returned for build-info and source-map records
// that are missing required fields or violate section invariants.
var ErrMalformedArtifact = errors.New("malformed artifact")

// MalformedError locates a malformed field inside a record.
type MalformedError struct {
	Field  string // JSONPath of the offending value
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrMalformedArtifact, e.Field, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedArtifact
}

func malformed(field, format string, args ...any) error {
	return &MalformedError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
