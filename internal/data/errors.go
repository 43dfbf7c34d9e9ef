package data

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable marks a whole-adapter failure: network, file or
	// decoding. Other sources are unaffected.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrPersistence marks a failed write; the previously persisted file is
	// left intact.
	ErrPersistence = errors.New("persistence failure")
)

// SourceError describes why a source could not be fetched.
type SourceError struct {
	Source     string
	StatusCode int // HTTP status, 0 when not applicable
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: HTTP %d", ErrSourceUnavailable, e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", ErrSourceUnavailable, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

func unavailable(source string, err error) error {
	return &SourceError{Source: source, Err: err}
}
