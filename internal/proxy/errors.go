package proxy

import (
	"errors"
	"fmt"
)

// UpstreamError is returned when no response could be obtained from the hub.
type UpstreamError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed after %d attempt(s): %v", e.Target, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// errGaveUp stands in when the retry loop ends without a concrete error.
var errGaveUp = errors.New("giving up")

// upstreamError wraps err unless it already is an *UpstreamError.
func upstreamError(target string, attempts int, err error) *UpstreamError {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr
	}
	if err == nil {
		err = errGaveUp
	}
	return &UpstreamError{Target: target, Attempts: attempts, Err: err}
}
