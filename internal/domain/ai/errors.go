package ai

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResponse is returned when the model answered without any content.
var ErrEmptyResponse = errors.New("ai returned empty response")

// ErrMalformedResponse is returned when the model content is not a single JSON object.
var ErrMalformedResponse = errors.New("ai returned malformed response")

// ReadError wraps a failure to read the image file, so callers can tell it from model errors.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read image %s: %v", e.Path, e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }
