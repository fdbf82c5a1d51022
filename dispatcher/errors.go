package dispatcher

import (
	stderrors "errors"
	"fmt"

	"github.com/c360/cse/errors"
	"github.com/c360/cse/resource"
)

// StatusError carries a response status code through the error return of a
// collaborator, so that lifecycle and storage failures surface with their own
// status instead of a generic one.
type StatusError struct {
	Code   resource.StatusCode
	Reason string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("rsc %d: %s", e.Code, e.Reason)
}

// Status builds a StatusError.
func Status(code resource.StatusCode, reason string) *StatusError {
	return &StatusError{Code: code, Reason: reason}
}

// statusFromError extracts a status code and debug text from a collaborator
// error. Storage sentinels map to their protocol statuses; StatusError codes
// pass through verbatim; anything else gets the fallback.
func statusFromError(err error, fallback resource.StatusCode) (resource.StatusCode, string) {
	if err == nil {
		return fallback, ""
	}
	var se *StatusError
	if stderrors.As(err, &se) {
		return se.Code, se.Reason
	}
	switch {
	case errors.IsNotFound(err):
		return resource.StatusNotFound, err.Error()
	case stderrors.Is(err, errors.ErrResourceExists):
		return resource.StatusConflict, err.Error()
	default:
		return fallback, err.Error()
	}
}
