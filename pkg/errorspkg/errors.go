// Package errorspkg provides common app errors.
package errorspkg

import "errors"

var (
	// ErrInternal indicates internal server error.
	ErrInternal = errors.New("internal")
	// ErrUnavailable indicates a transient failure, the request may be retried.
	ErrUnavailable = errors.New("temporarily unavailable, retry the request")
)
