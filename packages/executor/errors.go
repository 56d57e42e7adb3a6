package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/model"
)

// TimeoutError reports a call that did not complete within its deadline.
type TimeoutError struct {
	Method  model.Method
	URL     string
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out after %s (limit %s)", e.Method, e.URL, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// TransportError reports a call that failed before a response arrived:
// DNS failures, refused or reset connections, cancelled contexts.
type TransportError struct {
	Method model.Method
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Error kinds reported by Kind.
const (
	KindTimeout     = "timeout"
	KindTransport   = "transport"
	KindInvalidSpec = "invalid-spec"
	KindUnknown     = "error"
)

// Kind classifies an error returned by Run.
func Kind(err error) string {
	var timeoutErr *TimeoutError
	var transportErr *TransportError
	var specErr *model.InvalidSpecError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &specErr):
		return KindInvalidSpec
	}
	return KindUnknown
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
