package nikoget

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidResolver = errors.New("invalid resolver")
	// ErrNoMatch means no registered resolver accepted the URL.
	ErrNoMatch = errors.New("no resolver matched the URL")
)

// ResolveError means a resolver accepted a URL but could not produce descriptors from it:
// malformed identifier, missing remote data, unsupported path shape.
type ResolveError struct {
	Why string
}

func NewResolveError(format string, args ...any) *ResolveError {
	return &ResolveError{Why: fmt.Sprintf(format, args...)}
}

func (e *ResolveError) Error() string {
	return e.Why
}

// BrokenRegistryError retains a resolver load failure, surfaced whenever the registry's
// resolver set is iterated.
type BrokenRegistryError struct {
	Err error
}

func (e *BrokenRegistryError) Error() string {
	return fmt.Sprintf("resolver registry broken: %v", e.Err)
}

func (e *BrokenRegistryError) Unwrap() error {
	return e.Err
}
