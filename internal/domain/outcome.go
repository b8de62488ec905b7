package domain

import (
	"errors"
)

var (
	// ErrInvalidInput is returned for requests rejected before any external call
	ErrInvalidInput = errors.New("invalid input")

	// ErrOutputNotFound means the extractor reported success but no output
	// file could be located afterwards
	ErrOutputNotFound = errors.New("output file not found after download")
)

// ExtractionError carries the extractor's own failure message verbatim
type ExtractionError struct {
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// FailureKind classifies a failed outcome
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureInvalidInput   FailureKind = "invalid_input"
	FailureExtraction     FailureKind = "extraction_failed"
	FailureOutputNotFound FailureKind = "output_not_found"
	FailureInternal       FailureKind = "internal"
)

// Outcome is the result of a download: either a file path or an error
type Outcome struct {
	FilePath string
	Err      error
}

// Success builds a successful outcome
func Success(filePath string) Outcome {
	return Outcome{FilePath: filePath}
}

// Failure builds a failed outcome
func Failure(err error) Outcome {
	return Outcome{Err: err}
}

// Succeeded reports whether the download produced a file
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Message returns the failure text shown to the user, or "" on success
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Kind classifies the failure
func (o Outcome) Kind() FailureKind {
	var extractionErr *ExtractionError
	switch {
	case o.Err == nil:
		return FailureNone
	case errors.Is(o.Err, ErrInvalidInput):
		return FailureInvalidInput
	case errors.Is(o.Err, ErrOutputNotFound):
		return FailureOutputNotFound
	case errors.As(o.Err, &extractionErr):
		return FailureExtraction
	default:
		return FailureInternal
	}
}
