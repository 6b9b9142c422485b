package llms

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies runtime failures so callers can phrase user-facing
// messages without string matching.
type ErrorKind string

const (
	// KindUnavailable means the runtime could not be reached at all.
	KindUnavailable ErrorKind = "unavailable"

	// KindTimeout means the request exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindProtocol means the runtime answered with a bad status, malformed
	// JSON, or a payload missing required fields.
	KindProtocol ErrorKind = "protocol"
)

// Error is a classified runtime failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an llm Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == kind
}

// classifyTransport maps a transport-level failure to an Error.
// Context cancellation is passed through untouched so callers can tell a
// dropped session apart from a broken runtime.
func classifyTransport(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return fmt.Errorf("llm %s: %w", op, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

func protocolError(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}
