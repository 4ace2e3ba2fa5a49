package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a missing credential or backing service.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup that found nothing.
	ErrNotFound = errors.New("not found")
)

// UpstreamError wraps a failure from an external collaborator (content store,
// vector index, embedding service, cache).
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
