package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"golang.org/x/net/http2"
)

// Kind classifies a transport failure. Kinds are decided once, here, so the
// engine never inspects error text.
type Kind string

const (
	// KindCancelled means the caller's context was cancelled. Not a failure.
	KindCancelled Kind = "CANCELLED"

	// KindRangeUnsupported means the server answered a ranged request with
	// 416, a non-2xx status or a 206 for some other range. Callers fall back
	// to unranged requests.
	KindRangeUnsupported Kind = "RANGE_UNSUPPORTED"

	// KindBenignTransient covers generic network-layer failures, HTTP/2
	// protocol errors and 405 Method Not Allowed. Retried silently.
	KindBenignTransient Kind = "BENIGN_TRANSIENT"

	// KindOtherTransient is any other recoverable failure: a transport error
	// that is not a known network-layer one, or a failing status on a
	// download. Surfaced as a warning and retried after a backoff.
	KindOtherTransient Kind = "OTHER_TRANSIENT"
)

// Error is a classified transport error.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("http: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("http: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("http: %s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or "" for a nil error.
// Errors that did not come from this package are classified by type.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return classify(err)
}

// wrap classifies a transport error. A done ctx always wins: whatever the
// transport reports after cancellation is a consequence of it.
func wrap(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return &Error{Kind: KindCancelled, Op: op, Err: ctx.Err()}
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

func statusError(op string, kind Kind, code int) error {
	return &Error{Kind: kind, Op: op, StatusCode: code}
}

func classify(err error) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}

	var (
		streamErr http2.StreamError
		goAway    http2.GoAwayError
		connErr   http2.ConnectionError
	)
	if errors.As(err, &streamErr) || errors.As(err, &goAway) || errors.As(err, &connErr) {
		return KindBenignTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindOtherTransient
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return KindBenignTransient
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindBenignTransient
	}

	return KindOtherTransient
}
