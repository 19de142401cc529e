// Package llm abstracts the external generation call. Vendor-specific
// failure shapes are normalized to one result/error contract so the
// pipeline never branches on provider details.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyOutput indicates the provider returned a successful response with
// no usable text.
var ErrEmptyOutput = errors.New("provider returned empty output")

// Request is one generation call.
type Request struct {
	// Instruction is the system-level directive for the call.
	Instruction string
	// Input is the assembled user message: context blob, canon facts, and
	// chunk directives.
	Input string
	// Model overrides the client default when non-empty.
	Model string
}

// Result is the normalized success shape.
type Result struct {
	OutputText string
}

// ProviderError is the normalized failure shape for provider and transport
// errors. Retryable marks failures the caller may reasonably re-issue;
// nothing in this package retries implicitly.
type ProviderError struct {
	StatusCode int
	Message    string
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider call failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider call failed: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Client executes generation calls. Implementations must honor context
// cancellation; the call has no guaranteed completion time.
type Client interface {
	Generate(ctx context.Context, request Request) (Result, error)
}
