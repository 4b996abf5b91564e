package videoapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Sentinel errors for video service client failures.
var (
	ErrInvalidResponse = errors.New("video service returned invalid response")
	ErrEmptyBody       = errors.New("video service returned empty body")
)

// TransportKind groups transport failures the way the classifier needs them.
type TransportKind int

const (
	TransportIO TransportKind = iota
	TransportTimeout
	TransportUnreachable
)

func (k TransportKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportUnreachable:
		return "unreachable"
	default:
		return "io"
	}
}

// TransportError is a failure below HTTP: the request never produced a
// response, or the response body could not be read.
type TransportError struct {
	Op   string
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from the video service.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// classifyError maps transport-level errors to a TransportError. Context
// cancellation is passed through untouched so callers can tell it apart.
func classifyError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransportError{Op: op, Kind: KindOf(err), Err: err}
}

// KindOf inspects a raw network error.
func KindOf(err error) TransportKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TransportTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return TransportUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return TransportUnreachable
	}

	return TransportIO
}
