package gateway

import (
	"fmt"
	"net/http"
)

// Error wraps a failed gateway call with the operation and, when the
// service answered at all, the HTTP status.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway: %s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func statusError(op string, resp *http.Response) *Error {
	return &Error{Op: op, Status: resp.StatusCode}
}
