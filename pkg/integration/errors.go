package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-integration-client/pkg/httpclient"
)

// ErrorKind classifies a failed integration call.
type ErrorKind string

const (
	// KindServer is a response with status >= 500.
	KindServer ErrorKind = "server"
	// KindNotFound is a 404 response.
	KindNotFound ErrorKind = "not_found"
	// KindUnexpectedStatus is a login response that is neither 200 nor 401.
	KindUnexpectedStatus ErrorKind = "unexpected_status"
	// KindDecode is a non-empty body that is not valid JSON for the target type.
	KindDecode ErrorKind = "decode"
	// KindCanceled is a call aborted by its context.
	KindCanceled ErrorKind = "canceled"
	// KindInvalidArgument is a rejected argument; no request was sent.
	KindInvalidArgument ErrorKind = "invalid_argument"
	// KindTransport is a connection-level failure (DNS, refused, reset).
	KindTransport ErrorKind = "transport"
)

// ErrInvalidArgument is the sentinel every invalid-argument error unwraps to.
var ErrInvalidArgument = httpclient.ErrInvalidArgument

// Error is a classified integration failure.
type Error struct {
	Kind ErrorKind
	// Op is "<METHOD> <request uri>" of the failed call.
	Op string
	// StatusCode is zero when no response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	prefix := "integration"
	if e.Op != "" {
		prefix += ": " + e.Op
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s error (status %d): %s", prefix, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", prefix, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newServerError(op string, resp httpclient.Response) *Error {
	return &Error{
		Kind:       KindServer,
		Op:         op,
		StatusCode: resp.StatusCode(),
		Message:    "invalid status code returned from web API. Response: " + renderResponse(resp),
	}
}

func newNotFoundError(op string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Op:         op,
		StatusCode: 404,
		Message:    "request returned a NotFound response",
	}
}

func newUnexpectedStatusError(op string, resp httpclient.Response) *Error {
	return &Error{
		Kind:       KindUnexpectedStatus,
		Op:         op,
		StatusCode: resp.StatusCode(),
		Message:    "invalid status code returned from web API",
	}
}

func newDecodeError(op, target string, statusCode int, err error) *Error {
	return &Error{
		Kind:       KindDecode,
		Op:         op,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("decode response body as %s: %v", target, err),
		Err:        err,
	}
}

func newInvalidArgumentError(op string, err error) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: err}
}

// classifyCallError maps a transport failure to cancellation, invalid argument or transport.
func classifyCallError(ctx context.Context, op string, err error) *Error {
	if errors.Is(err, httpclient.ErrInvalidArgument) {
		return newInvalidArgumentError(op, err)
	}
	if ctxErr := contextErr(ctx); ctxErr != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		cause := err
		if ctxErr != nil && !errors.Is(err, ctxErr) {
			cause = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return &Error{Kind: KindCanceled, Op: op, Err: cause}
	}
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsServerError reports a 5xx response.
func IsServerError(err error) bool { return hasKind(err, KindServer) }

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsUnexpectedStatus reports a login response other than 200 or 401.
func IsUnexpectedStatus(err error) bool { return hasKind(err, KindUnexpectedStatus) }

// IsDecode reports an unparseable response body.
func IsDecode(err error) bool { return hasKind(err, KindDecode) }

// IsCanceled reports a call aborted by cancellation or deadline.
func IsCanceled(err error) bool { return hasKind(err, KindCanceled) }

// IsInvalidArgument reports an argument rejected before any request was sent.
func IsInvalidArgument(err error) bool {
	return hasKind(err, KindInvalidArgument) || errors.Is(err, ErrInvalidArgument)
}

// IsTransport reports a connection-level failure.
func IsTransport(err error) bool { return hasKind(err, KindTransport) }
