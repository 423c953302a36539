package pipeline

import (
	"errors"
	"fmt"

	"github.com/dgallion1/examconv/internal/repair"
)

// FailureKind classifies why a file did not produce questions.
type FailureKind string

const (
	// DecodeFailure is reported as a warning only; the file still proceeds.
	DecodeFailure           FailureKind = "decode_failure"
	ExtractionFailure       FailureKind = "extraction_failure"
	SchemaValidationFailure FailureKind = "schema_validation_failure"
	TransportFailure        FailureKind = "transport_failure"
)

// FileError is a fatal per-file failure. It names the file and the kind.
type FileError struct {
	Filename string      `json:"filename"`
	Kind     FailureKind `json:"kind"`
	Err      error       `json:"-"`
}

func (e *FileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Filename, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Filename, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// classify maps a stage error onto the failure taxonomy. Anything that is
// not a repair or transport failure happened while reading the file or
// building the prompt.
func classify(filename string, err error) *FileError {
	kind := ExtractionFailure
	var (
		verr *repair.ValidationError
		terr *repair.TransportError
	)
	switch {
	case errors.As(err, &verr):
		kind = SchemaValidationFailure
	case errors.As(err, &terr):
		kind = TransportFailure
	}
	return &FileError{Filename: filename, Kind: kind, Err: err}
}
