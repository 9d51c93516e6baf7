// Package backend abstracts the external text-generation service behind a
// single capability: given a prompt and context, return generated text or a
// classified failure. Concrete providers are swappable via configuration
// without orchestrator changes.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Request is the single request shape all providers accept.
type Request struct {
	Prompt    string // task instructions
	Context   string // unit source, child summaries, fidelity notes
	MaxTokens int
}

// Backend is the generation capability consumed by the orchestrator.
type Backend interface {
	// Name identifies the provider and model, e.g. "anthropic/claude-sonnet-4-5".
	Name() string

	// Model returns the model identifier, a component of every cache key.
	Model() string

	// Complete returns generated text for the request. Errors should be
	// (or wrap) *Error so the orchestrator can classify them.
	Complete(ctx context.Context, req Request) (string, error)
}

// FailureKind classifies a backend failure for retry decisions.
type FailureKind int

const (
	// FailureTransient failures (rate limit, timeout, transport) are retried.
	FailureTransient FailureKind = iota

	// FailurePermanent failures (auth, content rejection) are not retried.
	FailurePermanent
)

// Classifier decides whether a backend error is worth retrying. The exact
// transient/permanent boundary varies by provider, so it is pluggable
// rather than hard-coded.
type Classifier func(error) FailureKind

// Error is a classified backend failure.
type Error struct {
	Kind    FailureKind
	Status  int // HTTP status when applicable, else 0
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return "backend error: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Classify is the default classifier: classified errors carry their own
// kind; deadline and transport errors are transient; everything else is
// permanent, which keeps unknown failures from burning retries.
func Classify(err error) FailureKind {
	var berr *Error
	if errors.As(err, &berr) {
		return berr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}
	return FailurePermanent
}

// kindForStatus maps an HTTP status to a failure kind: 429 and 5xx are
// transient, other client errors are permanent.
func kindForStatus(status int) FailureKind {
	if status == http.StatusTooManyRequests || status >= 500 {
		return FailureTransient
	}
	return FailurePermanent
}

// statusError builds a classified error from an HTTP response status.
func statusError(status int, message string) *Error {
	return &Error{Kind: kindForStatus(status), Status: status, Message: message}
}

// transportError wraps a transport-level failure as transient.
func transportError(err error) *Error {
	return &Error{Kind: FailureTransient, Message: err.Error(), Err: err}
}
