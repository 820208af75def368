package endpoint

import (
	"errors"
	"fmt"
)

var (
	ErrNoEndpoints    = errors.New("no endpoints available")
	ErrUnknownService = errors.New("no direct url or discovery path configured")
)

// Resolution failure reasons.
const (
	ReasonInvalidURL  = "invalid direct url"
	ReasonNoPath      = "no discovery path"
	ReasonDiscovery   = "discovery failed"
	ReasonNoEndpoints = "no usable endpoints"
	ReasonCancelled   = "cancelled"
)

// ResolutionError reports that a service key could not be resolved to any
// endpoint. It is returned before any transport is opened.
type ResolutionError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %s: %v", e.Key, e.Reason, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
